/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package generator wires ontology normalization, shape composition, proof
// signing and persistence into one sequential generation workflow. Each call
// builds fresh schema and document objects; no state crosses requests.
package generator

import (
	"context"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/dataspace4health-lu/credential-generator/pkg/doc/credential"
	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
	"github.com/dataspace4health-lu/credential-generator/pkg/doc/proofchain"
	"github.com/dataspace4health-lu/credential-generator/pkg/kms/keystore"
	"github.com/dataspace4health-lu/credential-generator/pkg/registration"
	"github.com/dataspace4health-lu/credential-generator/pkg/storage/output"
)

var logger = log.New("credential-generator/generator")

const bundleFileName = "service-offering"

// Generator executes generation workflows end to end.
type Generator struct {
	registry     *ontology.Registry
	signer       *proofchain.Signer
	keys         keystore.Store
	sink         output.Sink
	registration *registration.Resolver
	host         string
}

// Config assembles a Generator from its collaborators.
type Config struct {
	Registry     *ontology.Registry
	Signer       *proofchain.Signer
	Keys         keystore.Store
	Sink         output.Sink
	Registration *registration.Resolver

	// Host anchors the default did:web issuer and key identifier.
	Host string
}

// New builds a Generator.
func New(config Config) *Generator {
	host := config.Host
	if host == "" {
		host = keystore.DefaultHost
	}

	signer := config.Signer
	if signer == nil {
		signer = proofchain.New()
	}

	return &Generator{
		registry:     config.Registry,
		signer:       signer,
		keys:         config.Keys,
		sink:         config.Sink,
		registration: config.Registration,
		host:         host,
	}
}

// CredentialRequest describes one single-credential generation workflow.
type CredentialRequest struct {
	Version     string
	SubjectType string
	Collected   map[string]interface{}

	BaseURL    string
	OutputPath string
	FileName   string

	Sign               bool
	VerificationMethod string
	PreviousProofs     []string
}

// BundleRequest describes one service-offering composite workflow.
type BundleRequest struct {
	Version   string
	Collected map[string]map[string]interface{}

	BaseURL    string
	OutputPath string

	Sign               bool
	VerificationMethod string
}

// RegistrationRequest describes one registration-number workflow.
type RegistrationRequest struct {
	Version            string
	VCID               string
	SubjectID          string
	RegistrationType   string
	RegistrationNumber string

	OutputPath string
}

// SignRequest signs or chain-extends an externally supplied document.
type SignRequest struct {
	Version            string
	Document           map[string]interface{}
	VerificationMethod string
	PreviousProofs     []string
}

// Result is the outcome of a successful workflow.
type Result struct {
	// Document is the generated document in JSON object form, nil when the
	// workflow produced a compact token instead.
	Document map[string]interface{}

	// Token is the compact token form, empty when Document is set.
	Token string

	// SavedTo is the resolved output location, empty when nothing was
	// persisted.
	SavedTo string
}

// GenerateCredential runs the single-credential workflow: resolve the shape,
// compose the document, optionally sign it, then persist.
func (g *Generator) GenerateCredential(ctx context.Context, req CredentialRequest) (*Result, error) {
	schema, err := g.registry.Resolve(ctx, req.Version, req.SubjectType)
	if err != nil {
		return nil, err
	}

	composed, err := credential.Compose(req.Version, req.SubjectType, req.Collected, schema.Preassigned,
		credential.WithBaseURL(req.BaseURL),
		credential.WithFileName(req.FileName),
		credential.WithIssuer(g.issuer()))
	if err != nil {
		return nil, err
	}

	doc, err := composed.ToMap()
	if err != nil {
		return nil, err
	}

	result := &Result{Document: doc}

	if req.Sign {
		signed, err := g.sign(ctx, SignRequest{
			Version:            req.Version,
			Document:           doc,
			VerificationMethod: req.VerificationMethod,
			PreviousProofs:     req.PreviousProofs,
		})
		if err != nil {
			return nil, err
		}

		result.Document = signed.Document
		result.Token = signed.Token
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = req.SubjectType
	}

	if err := g.persist(result, req.OutputPath, fileName); err != nil {
		return nil, err
	}

	return result, nil
}

// GenerateServiceOfferingBundle runs the composite workflow and wraps the
// generated documents in a verifiable presentation.
func (g *Generator) GenerateServiceOfferingBundle(ctx context.Context, req BundleRequest) (*Result, error) {
	schemas, err := g.registry.ResolveAll(ctx, req.Version)
	if err != nil {
		return nil, err
	}

	bundle, err := credential.ComposeServiceOffering(req.Version, schemas, req.Collected,
		credential.WithBaseURL(req.BaseURL),
		credential.WithIssuer(g.issuer()))
	if err != nil {
		return nil, err
	}

	presentation, err := credential.NewPresentation(req.Version, g.issuer(), bundle.Documents...)
	if err != nil {
		return nil, err
	}

	doc, err := presentation.ToMap()
	if err != nil {
		return nil, err
	}

	result := &Result{Document: doc}

	if req.Sign {
		signed, err := g.sign(ctx, SignRequest{
			Version:            req.Version,
			Document:           doc,
			VerificationMethod: req.VerificationMethod,
		})
		if err != nil {
			return nil, err
		}

		result.Document = signed.Document
		result.Token = signed.Token
	}

	if err := g.persist(result, req.OutputPath, bundleFileName); err != nil {
		return nil, err
	}

	return result, nil
}

// GenerateRegistrationNumber delegates to the notarization service and
// persists its pre-signed assertion untouched.
func (g *Generator) GenerateRegistrationNumber(ctx context.Context, req RegistrationRequest) (*Result, error) {
	assertion, err := g.registration.Resolve(ctx, req.Version,
		req.VCID, req.SubjectID, req.RegistrationType, req.RegistrationNumber)
	if err != nil {
		return nil, err
	}

	result := &Result{Token: assertion.Token}

	if assertion.Raw != nil {
		doc, err := assertion.Document()
		if err != nil {
			return nil, err
		}

		result.Document = doc
		result.Token = ""
	}

	if err := g.persist(result, req.OutputPath, "LegalRegistrationNumber"); err != nil {
		return nil, err
	}

	return result, nil
}

// SignDocument signs or chain-extends an externally supplied document
// without persisting it.
func (g *Generator) SignDocument(ctx context.Context, req SignRequest) (*Result, error) {
	signed, err := g.sign(ctx, req)
	if err != nil {
		return nil, err
	}

	return &Result{Document: signed.Document, Token: signed.Token}, nil
}

func (g *Generator) sign(_ context.Context, req SignRequest) (*proofchain.SignedDocument, error) {
	pair, err := keystore.LoadOrCreate(g.keys, g.host)
	if err != nil {
		return nil, err
	}

	verificationMethod := req.VerificationMethod
	if verificationMethod == "" {
		verificationMethod = pair.PrivateKey.KeyID
	}

	return g.signer.Sign(req.Document, req.Version, pair.PrivateKey, verificationMethod, req.PreviousProofs)
}

// persist writes the workflow outcome through the sink. Persistence runs
// last: a failed workflow never leaves partial output behind.
func (g *Generator) persist(result *Result, path, fileName string) error {
	if path == "" {
		return nil
	}

	var document interface{} = result.Document
	if result.Document == nil {
		document = result.Token
	}

	if err := g.sink.Save(path, fileName, document); err != nil {
		return fmt.Errorf("persist document: %w", err)
	}

	result.SavedTo = output.ResolvePath(path, fileName)

	logger.Infof("document saved to %s", result.SavedTo)

	return nil
}

func (g *Generator) issuer() string {
	return "did:web:" + g.host
}
