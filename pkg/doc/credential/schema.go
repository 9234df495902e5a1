/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// envelopeSchemaFormat is the structural JSON schema every composed envelope
// must satisfy. The date field slot differs between the two version profiles.
const envelopeSchemaFormat = `{
  "type": "object",
  "required": ["@context", "id", "type", "credentialSubject", "%s"],
  "properties": {
    "@context": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": 1
    },
    "id": {
      "type": "string",
      "format": "uri"
    },
    "type": {
      "type": "array",
      "items": [{"type": "string", "pattern": "^VerifiableCredential$"}],
      "additionalItems": {"type": "string"},
      "minItems": 2
    },
    "issuer": {
      "type": "string",
      "format": "uri"
    },
    "%s": {
      "type": "string",
      "format": "date-time"
    },
    "credentialSubject": {
      "type": "object"
    }
  }
}`

var envelopeSchemas = map[string]*gojsonschema.Schema{}

//nolint:gochecknoinits
func init() {
	for version, profile := range envelopeProfiles {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(
			fmt.Sprintf(envelopeSchemaFormat, profile.dateField, profile.dateField)))
		if err != nil {
			panic(fmt.Sprintf("invalid envelope schema for version %s: %s", version, err))
		}

		envelopeSchemas[version] = schema
	}
}

// checkEnvelope validates the composed document against the structural schema
// of its version profile.
func checkEnvelope(version string, doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal composed document: %w", err)
	}

	result, err := envelopeSchemas[version].Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate composed document: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))

		for _, resultErr := range result.Errors() {
			descriptions = append(descriptions, resultErr.String())
		}

		return fmt.Errorf("composed document failed structural validation: %s",
			strings.Join(descriptions, "; "))
	}

	return nil
}
