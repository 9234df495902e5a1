/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package generator

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/require"

	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
	"github.com/dataspace4health-lu/credential-generator/pkg/kms/keystore"
	"github.com/dataspace4health-lu/credential-generator/pkg/registration"
)

const testHost = "example.org"

const testCatalog = `
classes:
  ServiceOffering:
    attributes:
      providedBy:
        range: string
        required: true
      policy:
        range: string
      termsAndConditions:
        range: string
  ServiceAccessPoint:
    attributes:
      host:
        range: string
  InstantiatedVirtualResource:
    attributes:
      hostedOn:
        range: string
      instanceOf:
        range: string
      serviceAccessPoint:
        range: string
      maintainedBy:
        range: string
  LegalParticipant:
    attributes:
      legalName:
        range: string
        required: true
`

const testShapeGraph = `{
  "shapes": [
    {
      "@id": "gx:LegalParticipantShape",
      "sh:targetClass": {"@id": "gx:LegalParticipant"},
      "sh:property": [
        {
          "sh:path": {"@id": "gx:legalName"},
          "sh:datatype": {"@id": "xsd:string"},
          "sh:minCount": 1
        }
      ]
    }
  ]
}`

type memStore struct {
	pair *keystore.KeyPair
}

func (s *memStore) Load() (*keystore.KeyPair, error) { return s.pair, nil }

func (s *memStore) Save(pair *keystore.KeyPair) error {
	s.pair = pair
	return nil
}

type savedDocument struct {
	path     string
	fileName string
	document interface{}
}

type memSink struct {
	saves   []savedDocument
	failure error
}

func (s *memSink) Save(path, defaultFileName string, document interface{}) error {
	if s.failure != nil {
		return s.failure
	}

	s.saves = append(s.saves, savedDocument{path: path, fileName: defaultFileName, document: document})

	return nil
}

func newTestKeyStore(t *testing.T) *memStore {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	private := &jose.JSONWebKey{
		Key:       priv,
		KeyID:     keystore.KeyID(testHost),
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}

	public := &jose.JSONWebKey{
		Key:       pub,
		KeyID:     private.KeyID,
		Algorithm: private.Algorithm,
		Use:       "sig",
	}

	return &memStore{pair: &keystore.KeyPair{PublicKey: public, PrivateKey: private}}
}

func newOntologyServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/shapes", func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(testShapeGraph))
		require.NoError(t, err)
	})
	mux.HandleFunc("/implemented", func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(`["LegalParticipant"]`))
		require.NoError(t, err)
	})
	mux.HandleFunc("/catalog", func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(testCatalog))
		require.NoError(t, err)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func newTestGenerator(t *testing.T, sink *memSink) *Generator {
	t.Helper()

	server := newOntologyServer(t)

	registry := ontology.NewRegistry(ontology.RegistryConfig{
		ShapesURL:            server.URL + "/shapes",
		ImplementedShapesURL: server.URL + "/implemented",
		CatalogURL:           server.URL + "/catalog",
	})

	return New(Config{
		Registry: registry,
		Keys:     newTestKeyStore(t),
		Sink:     sink,
		Host:     testHost,
	})
}

func TestGenerateCredential(t *testing.T) {
	sink := &memSink{}
	gen := newTestGenerator(t, sink)

	result, err := gen.GenerateCredential(context.Background(), CredentialRequest{
		Version:     ontology.VersionLoire,
		SubjectType: "LegalParticipant",
		Collected:   map[string]interface{}{"gx:legalName": "ACME S.A."},
		BaseURL:     "https://example.org/issuer",
		OutputPath:  t.TempDir(),
	})
	require.NoError(t, err)

	require.Equal(t, "https://example.org/issuer/LegalParticipant.json", result.Document["id"])
	require.Equal(t, "did:web:"+testHost, result.Document["issuer"])

	subject, ok := result.Document["credentialSubject"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "ACME S.A.", subject["gx:legalName"])

	require.Len(t, sink.saves, 1)
	require.Equal(t, "LegalParticipant", sink.saves[0].fileName)
	require.Equal(t, result.Document, sink.saves[0].document)
	require.True(t, strings.HasSuffix(result.SavedTo, "LegalParticipant.json"))
}

func TestGenerateCredentialSignedProducesToken(t *testing.T) {
	sink := &memSink{}
	gen := newTestGenerator(t, sink)

	result, err := gen.GenerateCredential(context.Background(), CredentialRequest{
		Version:     ontology.VersionLoire,
		SubjectType: "LegalParticipant",
		Collected:   map[string]interface{}{"gx:legalName": "ACME S.A."},
		Sign:        true,
		OutputPath:  t.TempDir(),
	})
	require.NoError(t, err)

	require.Nil(t, result.Document)
	require.Equal(t, 3, len(strings.Split(result.Token, ".")))

	require.Len(t, sink.saves, 1)
	require.Equal(t, result.Token, sink.saves[0].document)
}

func TestGenerateCredentialSignedProducesProof(t *testing.T) {
	sink := &memSink{}
	gen := newTestGenerator(t, sink)

	result, err := gen.GenerateCredential(context.Background(), CredentialRequest{
		Version:     ontology.VersionTagus,
		SubjectType: "LegalParticipant",
		Collected:   map[string]interface{}{"gx:legalName": "ACME S.A."},
		Sign:        true,
	})
	require.NoError(t, err)
	require.Empty(t, result.Token)

	proof, ok := result.Document["proof"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, keystore.KeyID(testHost), proof["verificationMethod"])

	// nothing persisted without an output path
	require.Empty(t, sink.saves)
	require.Empty(t, result.SavedTo)
}

func TestGenerateServiceOfferingBundle(t *testing.T) {
	sink := &memSink{}
	gen := newTestGenerator(t, sink)

	result, err := gen.GenerateServiceOfferingBundle(context.Background(), BundleRequest{
		Version: ontology.VersionLoire,
		Collected: map[string]map[string]interface{}{
			"ServiceOffering": {
				"gx:providedBy": "did:web:example.org",
				"gx:termsAndConditions": map[string]interface{}{
					"gx:URL":  "https://example.org/terms",
					"gx:hash": "d04b98f4",
				},
			},
			"ServiceAccessPoint": {"gx:host": "sap.example.org"},
		},
		OutputPath: t.TempDir(),
	})
	require.NoError(t, err)

	require.Contains(t, result.Document["type"], "VerifiablePresentation")

	credentials, ok := result.Document["verifiableCredential"].([]interface{})
	require.True(t, ok)
	require.Len(t, credentials, 4)

	// the virtual resource carries the wired identifiers of its dependencies
	resource, ok := credentials[2].(map[string]interface{})
	require.True(t, ok)

	subject, ok := resource["credentialSubject"].(map[string]interface{})
	require.True(t, ok)

	offering := credentials[0].(map[string]interface{})
	accessPoint := credentials[1].(map[string]interface{})
	require.Equal(t, offering["id"], subject["gx:instanceOf"])
	require.Equal(t, accessPoint["id"], subject["gx:hostedOn"])
	require.Equal(t, accessPoint["id"], subject["gx:serviceAccessPoint"])

	terms := credentials[3].(map[string]interface{})
	require.Contains(t, terms["type"], "SOTermsAndConditions")

	require.Len(t, sink.saves, 1)
	require.Equal(t, "service-offering", sink.saves[0].fileName)
}

func TestGenerateRegistrationNumber(t *testing.T) {
	notary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"type": "gx:legalRegistrationNumber", "gx:vatID": "LU12345678"}`))
		require.NoError(t, err)
	}))
	t.Cleanup(notary.Close)

	sink := &memSink{}
	gen := newTestGenerator(t, sink)
	gen.registration = registration.New(registration.Config{LoireEndpoint: notary.URL})

	result, err := gen.GenerateRegistrationNumber(context.Background(), RegistrationRequest{
		Version:            ontology.VersionLoire,
		RegistrationType:   "vatID",
		RegistrationNumber: "LU12345678",
		OutputPath:         t.TempDir(),
	})
	require.NoError(t, err)

	require.Empty(t, result.Token)
	require.Equal(t, "LU12345678", result.Document["gx:vatID"])

	require.Len(t, sink.saves, 1)
	require.Equal(t, "LegalRegistrationNumber", sink.saves[0].fileName)
}

func TestGenerateCredentialUnknownTypeWritesNothing(t *testing.T) {
	sink := &memSink{}
	gen := newTestGenerator(t, sink)

	_, err := gen.GenerateCredential(context.Background(), CredentialRequest{
		Version:     ontology.VersionLoire,
		SubjectType: "NotAShape",
		OutputPath:  t.TempDir(),
	})
	require.ErrorIs(t, err, ontology.ErrUnknownType)
	require.Empty(t, sink.saves)
}

func TestGenerateCredentialSinkFailure(t *testing.T) {
	sink := &memSink{failure: errors.New("disk full")}
	gen := newTestGenerator(t, sink)

	_, err := gen.GenerateCredential(context.Background(), CredentialRequest{
		Version:     ontology.VersionLoire,
		SubjectType: "LegalParticipant",
		Collected:   map[string]interface{}{"gx:legalName": "ACME S.A."},
		OutputPath:  t.TempDir(),
	})
	require.ErrorContains(t, err, "disk full")
}

func TestSignDocumentExtendsChain(t *testing.T) {
	sink := &memSink{}
	gen := newTestGenerator(t, sink)

	first, err := gen.GenerateCredential(context.Background(), CredentialRequest{
		Version:     ontology.VersionTagus,
		SubjectType: "LegalParticipant",
		Collected:   map[string]interface{}{"gx:legalName": "ACME S.A."},
		Sign:        true,
	})
	require.NoError(t, err)

	second, err := gen.SignDocument(context.Background(), SignRequest{
		Version:  ontology.VersionTagus,
		Document: first.Document,
	})
	require.NoError(t, err)

	proofs, ok := second.Document["proof"].([]interface{})
	require.True(t, ok)
	require.Len(t, proofs, 2)
}
