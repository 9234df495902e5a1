/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package registration delegates registration-number verification to the
// external notarization service and returns its opaque, pre-signed assertion.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/mitchellh/mapstructure"

	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
)

var logger = log.New("credential-generator/registration")

// ErrRegistrationLookup is returned when the notarization service cannot
// verify the registration number.
var ErrRegistrationLookup = errors.New("registration lookup failed")

// registrationTypeNames normalizes Loire registration-type tokens to the
// notary's query vocabulary.
var registrationTypeNames = map[string]string{
	"vatID":   "vat-id",
	"leiCode": "lei-code",
	"EORI":    "eori",
	"taxID":   "tax-id",
	"EUID":    "euid",
}

const (
	defaultRetryInterval = 5 * time.Second
	defaultMaxAttempts   = 12

	defaultRequestTimeout = 30 * time.Second
)

// RetryPolicy bounds the Tagus-era retry loop. The notarization service is
// assumed eventually reachable, so transient failures are retried on a fixed
// delay, but every loop is capped by attempts and by context cancellation.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts uint64
}

// Assertion is the opaque, pre-signed registration evidence returned by the
// notary: either a JSON document or a signed compact token.
type Assertion struct {
	// Raw holds the JSON assertion document, nil when Token is set.
	Raw json.RawMessage

	// Token holds the compact token form, empty when Raw is set.
	Token string
}

// Document decodes the JSON assertion into generic object form.
func (a *Assertion) Document() (map[string]interface{}, error) {
	if a.Raw == nil {
		return nil, errors.New("assertion is a compact token, not a document")
	}

	doc := make(map[string]interface{})
	if err := json.Unmarshal(a.Raw, &doc); err != nil {
		return nil, fmt.Errorf("decode assertion: %w", err)
	}

	return doc, nil
}

// tagusRequest is the notarization request body of the Tagus era.
type tagusRequest struct {
	VCID               string `json:"vcId"`
	SubjectID          string `json:"subjectId"`
	RegistrationType   string `json:"type"`
	RegistrationNumber string `json:"number"`
}

// Resolver verifies registration numbers against the version-specific notary
// endpoint.
type Resolver struct {
	tagusEndpoint string
	loireEndpoint string
	client        *http.Client
	retry         RetryPolicy
}

// Config holds the notary endpoints and the retry policy of the Tagus path.
type Config struct {
	// TagusEndpoint accepts notarization POST requests (retried).
	TagusEndpoint string

	// LoireEndpoint serves registration-number lookups (not retried).
	LoireEndpoint string

	// HTTPClient is used for all notary calls.
	HTTPClient *http.Client

	// Retry bounds the Tagus retry loop; zero values select the defaults.
	Retry RetryPolicy
}

// New builds a Resolver.
func New(config Config) *Resolver {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	retry := config.Retry
	if retry.Interval <= 0 {
		retry.Interval = defaultRetryInterval
	}

	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}

	return &Resolver{
		tagusEndpoint: config.TagusEndpoint,
		loireEndpoint: config.LoireEndpoint,
		client:        client,
		retry:         retry,
	}
}

// Resolve verifies one registration number and returns the notary assertion.
func (r *Resolver) Resolve(ctx context.Context, version, vcID, subjectID,
	registrationType, registrationNumber string) (*Assertion, error) {
	switch version {
	case ontology.VersionTagus:
		return r.resolveTagus(ctx, vcID, subjectID, registrationType, registrationNumber)
	case ontology.VersionLoire:
		return r.resolveLoire(ctx, registrationType, registrationNumber)
	default:
		return nil, fmt.Errorf("%w: %q", ontology.ErrUnsupportedVersion, version)
	}
}

// resolveTagus POSTs the notarization request, retrying transient failures on
// a fixed delay until the policy or the context stops it.
func (r *Resolver) resolveTagus(ctx context.Context, vcID, subjectID,
	registrationType, registrationNumber string) (*Assertion, error) {
	body, err := json.Marshal(tagusRequest{
		VCID:               vcID,
		SubjectID:          subjectID,
		RegistrationType:   registrationType,
		RegistrationNumber: registrationNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal notarization request: %w", err)
	}

	var assertion *Assertion

	operation := func() error {
		var opErr error

		assertion, opErr = r.postNotarization(ctx, body)
		if opErr != nil {
			logger.Warnf("notarization attempt failed, will retry: %s", opErr)
		}

		return opErr
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retry.Interval), r.retry.MaxAttempts-1), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRegistrationLookup, err)
	}

	return assertion, nil
}

func (r *Resolver) postNotarization(ctx context.Context, body []byte) (*Assertion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tagusEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}

	return readAssertion(resp)
}

// resolveLoire issues a single lookup keyed by the normalized registration
// type. Failures surface immediately.
func (r *Resolver) resolveLoire(ctx context.Context, registrationType,
	registrationNumber string) (*Assertion, error) {
	normalized, ok := registrationTypeNames[registrationType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported registration type %q", ErrRegistrationLookup, registrationType)
	}

	query := url.Values{}
	query.Set("type", normalized)
	query.Set("number", registrationNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.loireEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRegistrationLookup, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRegistrationLookup, err)
	}

	assertion, err := readAssertion(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRegistrationLookup, err)
	}

	return assertion, nil
}

// readAssertion interprets the notary response as either a JSON assertion or
// a signed compact token in plain text.
func readAssertion(resp *http.Response) (*Assertion, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("failed to close response body: %s", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read notary response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("notary returned %d: %s", resp.StatusCode, body)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return &Assertion{Raw: body}, nil
	}

	return &Assertion{Token: strings.TrimSpace(string(body))}, nil
}

// Claims is the decoded form of a JSON notary assertion.
type Claims struct {
	RegistrationType   string `mapstructure:"type"`
	RegistrationNumber string `mapstructure:"number"`
	CountryCode        string `mapstructure:"countryCode"`
}

// DecodeClaims decodes a JSON assertion into typed claims.
func (a *Assertion) DecodeClaims() (*Claims, error) {
	doc, err := a.Document()
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	if err := mapstructure.Decode(doc, claims); err != nil {
		return nil, fmt.Errorf("decode assertion claims: %w", err)
	}

	return claims, nil
}
