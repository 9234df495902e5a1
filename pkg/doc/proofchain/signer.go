/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofchain

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"

	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
)

// ErrKeyLoad is returned when the signing key material is missing or not
// usable for signing.
var ErrKeyLoad = errors.New("signing key not usable")

// Version-specific media types of the compact token strategy.
const (
	tokenType        = "vc+ld+json+jwt"
	tokenContentType = "application/vc+ld+json"
)

// SignedDocument is the terminal state of a successful signing operation:
// either a JSON document carrying an embedded proof (chain), or a compact
// token re-encoding the whole document.
type SignedDocument struct {
	Document map[string]interface{}
	Token    string
}

// Signer drives the proof-chain state machine. It is safe to reuse across
// sequential signing operations; it holds no per-document state.
type Signer struct {
	canon *Canonicalizer
	now   func() time.Time
	newID func() string
}

// Option configures a Signer.
type Option func(*Signer)

// WithCanonicalizer replaces the default canonicalizer.
func WithCanonicalizer(canon *Canonicalizer) Option {
	return func(s *Signer) {
		s.canon = canon
	}
}

// WithClock fixes the proof creation clock.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// New builds a Signer.
func New(opts ...Option) *Signer {
	s := &Signer{
		canon: NewCanonicalizer(nil),
		now:   time.Now,
		newID: func() string { return "urn:uuid:" + uuid.New().String() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sign produces a first signature for the document or extends its existing
// proof chain. The input document is never mutated: the operation either
// returns a fully signed copy or fails without side effects.
func (s *Signer) Sign(doc map[string]interface{}, version string, key *jose.JSONWebKey,
	verificationMethod string, previousProofs []string) (*SignedDocument, error) {
	if version != ontology.VersionTagus && version != ontology.VersionLoire {
		return nil, fmt.Errorf("%w: %q", ontology.ErrUnsupportedVersion, version)
	}

	if key == nil || key.Key == nil {
		return nil, fmt.Errorf("%w: no private key material", ErrKeyLoad)
	}

	if !key.IsPublic() && !key.Valid() {
		return nil, fmt.Errorf("%w: invalid JSON web key", ErrKeyLoad)
	}

	work, err := copyDocument(doc)
	if err != nil {
		return nil, err
	}

	proofs, err := extractProofs(work)
	if err != nil {
		return nil, err
	}

	delete(work, jsonldProof)

	if len(proofs) == 0 {
		return s.signFresh(work, version, key, verificationMethod)
	}

	return s.extendChain(work, proofs, version, key, verificationMethod, previousProofs)
}

// signFresh handles the NoProof state: exactly one proof via the
// version-specific strategy. Loire documents are re-encoded as a compact
// token whose payload is the document itself.
func (s *Signer) signFresh(doc map[string]interface{}, version string, key *jose.JSONWebKey,
	verificationMethod string) (*SignedDocument, error) {
	if version == ontology.VersionLoire {
		token, err := s.compactToken(doc, key, verificationMethod)
		if err != nil {
			return nil, err
		}

		return &SignedDocument{Token: token}, nil
	}

	proof, err := s.newProof(doc, version, key, verificationMethod, nil)
	if err != nil {
		return nil, err
	}

	doc[jsonldProof] = proof

	return &SignedDocument{Document: doc}, nil
}

// extendChain handles the HasProof states: the new proof covers the matched
// predecessor subset, carries a backward link to the last existing proof, and
// is appended to the full original sequence.
func (s *Signer) extendChain(doc map[string]interface{}, proofs []map[string]interface{},
	version string, key *jose.JSONWebKey, verificationMethod string,
	previousProofs []string) (*SignedDocument, error) {
	matched := proofs

	if len(previousProofs) > 0 {
		var err error

		matched, err = selectProofs(proofs, previousProofs)
		if err != nil {
			return nil, err
		}
	}

	proof, err := s.newProof(doc, version, key, verificationMethod, matched)
	if err != nil {
		return nil, err
	}

	last := proofs[len(proofs)-1]
	if _, ok := last[jsonldID].(string); !ok {
		last[jsonldID] = s.newID()
	}

	proof[jsonldID] = s.newID()
	proof[jsonldPreviousProof] = last[jsonldID]

	chain := make([]interface{}, 0, len(proofs)+1)

	for _, p := range proofs {
		chain = append(chain, p)
	}

	chain = append(chain, proof)
	doc[jsonldProof] = chain

	return &SignedDocument{Document: doc}, nil
}

// newProof builds one proof object over the document, optionally with the
// matched predecessor proofs attached as signing context.
func (s *Signer) newProof(doc map[string]interface{}, version string, key *jose.JSONWebKey,
	verificationMethod string, priorProofs []map[string]interface{}) (map[string]interface{}, error) {
	signDoc := doc

	if len(priorProofs) > 0 {
		signDoc = make(map[string]interface{}, len(doc)+1)

		for k, v := range doc {
			signDoc[k] = v
		}

		// json-gold only traverses generic JSON types; a typed slice would be
		// mistaken for a scalar during expansion.
		attached := make([]interface{}, len(priorProofs))
		for i, p := range priorProofs {
			attached[i] = p
		}

		signDoc[jsonldProof] = attached
	}

	var (
		jws string
		err error
	)

	switch version {
	case ontology.VersionTagus:
		jws, err = s.detachedJWS(signDoc, key)
	case ontology.VersionLoire:
		jws, err = s.compactToken(signDoc, key, verificationMethod)
	}

	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		jsonldType:               proofTypeJSONWebSignature2020,
		jsonldCreated:            s.now().UTC().Format(time.RFC3339),
		jsonldProofPurpose:       proofPurposeAssertion,
		jsonldVerificationMethod: verificationMethod,
		jsonldJWS:                jws,
	}, nil
}

// detachedJWS signs the SHA-256 digest of the canonicalized document and
// strips the payload segment from the compact serialization.
func (s *Signer) detachedJWS(doc map[string]interface{}, key *jose.JSONWebKey) (string, error) {
	canonical, err := s.canon.Canonicalize(doc)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(canonical)

	signer, err := newJoseSigner(key, nil)
	if err != nil {
		return "", err
	}

	object, err := signer.Sign(digest[:])
	if err != nil {
		return "", fmt.Errorf("sign document digest: %w", err)
	}

	compact, err := object.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize signature: %w", err)
	}

	parts := strings.Split(compact, ".")

	return parts[0] + ".." + parts[2], nil
}

// compactToken re-encodes the document as a signed JWT whose payload is the
// document itself.
func (s *Signer) compactToken(doc map[string]interface{}, key *jose.JSONWebKey,
	verificationMethod string) (string, error) {
	issuer := verificationMethod
	if i := strings.Index(issuer, "#"); i >= 0 {
		issuer = issuer[:i]
	}

	opts := (&jose.SignerOptions{}).
		WithType(jose.ContentType(tokenType)).
		WithContentType(jose.ContentType(tokenContentType)).
		WithHeader(jose.HeaderKey("iss"), issuer).
		WithHeader(jose.HeaderKey("kid"), verificationMethod)

	signer, err := newJoseSigner(key, opts)
	if err != nil {
		return "", err
	}

	token, err := jwt.Signed(signer).Claims(doc).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}

	return token, nil
}

func newJoseSigner(key *jose.JSONWebKey, opts *jose.SignerOptions) (jose.Signer, error) {
	algorithm, err := signatureAlgorithm(key)
	if err != nil {
		return nil, err
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: algorithm, Key: key.Key}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyLoad, err)
	}

	return signer, nil
}

// signatureAlgorithm picks the JWS algorithm: the key's declared algorithm
// when present, otherwise a default per key type.
func signatureAlgorithm(key *jose.JSONWebKey) (jose.SignatureAlgorithm, error) {
	if key.Algorithm != "" {
		return jose.SignatureAlgorithm(key.Algorithm), nil
	}

	switch k := key.Key.(type) {
	case *rsa.PrivateKey:
		return jose.PS256, nil
	case *ecdsa.PrivateKey:
		switch k.Curve {
		case elliptic.P256():
			return jose.ES256, nil
		case elliptic.P384():
			return jose.ES384, nil
		case elliptic.P521():
			return jose.ES512, nil
		}

		return "", fmt.Errorf("%w: unsupported curve %s", ErrKeyLoad, k.Curve.Params().Name)
	case ed25519.PrivateKey:
		return jose.EdDSA, nil
	default:
		return "", fmt.Errorf("%w: unsupported key type %T", ErrKeyLoad, key.Key)
	}
}

func copyDocument(doc map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	copied := make(map[string]interface{})
	if err := json.Unmarshal(raw, &copied); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}

	return copied, nil
}
