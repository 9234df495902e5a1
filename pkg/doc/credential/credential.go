/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package credential composes credential subjects from normalized shape
// schemas and wraps them in the version-specific verifiable credential
// envelope.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
)

var logger = log.New("credential-generator/credential")

const (
	vcType = "VerifiableCredential"
	vpType = "VerifiablePresentation"
)

// policyProperty legitimately allows an empty string: it denotes the default
// allow policy rather than a missing value. Do not generalize this exemption
// to other properties.
const policyProperty = "gx:policy"

// ErrMissingDependencyID is returned when a cross-shape wired identifier was
// not produced before the shape that depends on it, or when a ToBeFilled
// sentinel survives until emission.
var ErrMissingDependencyID = errors.New("missing dependency identifier")

// envelopeProfile fixes the context list and the date field of one ontology
// version. The two entries below are the only accepted profiles; version
// tokens are validated upstream by the ontology registry.
type envelopeProfile struct {
	contexts  []string
	dateField string
}

var envelopeProfiles = map[string]envelopeProfile{
	ontology.VersionTagus: {
		contexts: []string{
			"https://www.w3.org/2018/credentials/v1",
			"https://registry.lab.dataspace4health.lu/api/trusted-shape-registry/v1/shapes/jsonld/trustframework#",
		},
		dateField: "issuanceDate",
	},
	ontology.VersionLoire: {
		contexts: []string{
			"https://www.w3.org/ns/credentials/v2",
			"https://w3id.org/dataspace4health/development#",
		},
		dateField: "validFrom",
	},
}

// Document is a composed, not yet signed verifiable credential.
type Document struct {
	Context      []string               `json:"@context"`
	ID           string                 `json:"id"`
	Type         []string               `json:"type"`
	Issuer       string                 `json:"issuer,omitempty"`
	IssuanceDate string                 `json:"issuanceDate,omitempty"`
	ValidFrom    string                 `json:"validFrom,omitempty"`
	Subject      map[string]interface{} `json:"credentialSubject"`
	Proof        json.RawMessage        `json:"proof,omitempty"`
}

// ToMap returns the document in generic JSON object form, as consumed by the
// proof chain manager.
func (d *Document) ToMap() (map[string]interface{}, error) {
	return toMap(d)
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	doc := make(map[string]interface{})
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}

	return doc, nil
}

type options struct {
	baseURL  string
	fileName string
	issuer   string
	issuedAt *time.Time
	injected map[string]interface{}
}

// Option configures a composition request.
type Option func(*options)

// WithBaseURL supplies the base URL under which network-addressable
// credentials are hosted, enabling deterministic identifier derivation.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithFileName overrides the document file name used for deterministic
// identifier derivation.
func WithFileName(fileName string) Option {
	return func(o *options) {
		o.fileName = fileName
	}
}

// WithIssuer sets the issuer of the composed credential.
func WithIssuer(issuer string) Option {
	return func(o *options) {
		o.issuer = issuer
	}
}

// WithIssuedAt fixes the issuance timestamp. Defaults to the current time.
func WithIssuedAt(issuedAt time.Time) Option {
	return func(o *options) {
		t := issuedAt
		o.issuedAt = &t
	}
}

// WithInjected supplies preassigned values produced by the composition
// pipeline itself, such as identifiers wired between shapes. Injected values
// win over ontology-declared preassigned values.
func WithInjected(injected map[string]interface{}) Option {
	return func(o *options) {
		o.injected = injected
	}
}

// Compose merges preassigned and collected property values into a credential
// subject and wraps it in the version-specific envelope.
//
// Merge order, later wins: ontology-declared preassigned values, injected
// preassigned values, collected values. Collected entries holding an empty or
// whitespace-only string are dropped, except gx:policy.
func Compose(version, subjectType string, collected, preassigned map[string]interface{},
	opts ...Option) (*Document, error) {
	profile, ok := envelopeProfiles[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ontology.ErrUnsupportedVersion, version)
	}

	o := &options{}

	for _, opt := range opts {
		opt(o)
	}

	subject := make(map[string]interface{})

	for name, value := range preassigned {
		subject[name] = value
	}

	for name, value := range o.injected {
		subject[name] = value
	}

	for name, value := range collected {
		if dropped(name, value) {
			continue
		}

		if err := validateValue(name, value); err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}

		subject[name] = value
	}

	for name, value := range subject {
		if value == ontology.ToBeFilled {
			return nil, fmt.Errorf("%w: property %q still holds the wiring sentinel", ErrMissingDependencyID, name)
		}
	}

	id := deriveID(subjectType, o.baseURL, o.fileName)

	if _, ok := subject["id"]; !ok {
		subject["id"] = id
	}

	doc := &Document{
		Context: profile.contexts,
		ID:      id,
		Type:    []string{vcType, subjectType},
		Issuer:  o.issuer,
		Subject: subject,
	}

	issuedAt := time.Now().UTC()
	if o.issuedAt != nil {
		issuedAt = o.issuedAt.UTC()
	}

	switch profile.dateField {
	case "issuanceDate":
		doc.IssuanceDate = issuedAt.Format(time.RFC3339)
	case "validFrom":
		doc.ValidFrom = issuedAt.Format(time.RFC3339)
	}

	if err := checkEnvelope(version, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func dropped(name string, value interface{}) bool {
	str, ok := value.(string)
	if !ok {
		return false
	}

	if strings.TrimSpace(str) != "" {
		return false
	}

	return name != policyProperty
}
