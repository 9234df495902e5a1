/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
)

// Presentation wraps one or more composed credentials for disclosure.
type Presentation struct {
	Context              []string    `json:"@context"`
	ID                   string      `json:"id"`
	Type                 []string    `json:"type"`
	Holder               string      `json:"holder,omitempty"`
	VerifiableCredential []*Document `json:"verifiableCredential"`
}

// NewPresentation wraps the given credentials in a verifiable presentation
// envelope under the version profile of the credentials.
func NewPresentation(version, holder string, docs ...*Document) (*Presentation, error) {
	profile, ok := envelopeProfiles[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ontology.ErrUnsupportedVersion, version)
	}

	if len(docs) == 0 {
		return nil, errors.New("presentation needs at least one credential")
	}

	return &Presentation{
		Context:              profile.contexts,
		ID:                   "urn:uuid:" + uuid.New().String(),
		Type:                 []string{vpType},
		Holder:               holder,
		VerifiableCredential: docs,
	}, nil
}

// ToMap returns the presentation in generic JSON object form.
func (p *Presentation) ToMap() (map[string]interface{}, error) {
	return toMap(p)
}
