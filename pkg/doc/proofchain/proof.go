/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofchain

import (
	"errors"
	"fmt"
)

const (
	// proofTypeJSONWebSignature2020 is the embedded proof type produced by
	// both signing strategies.
	proofTypeJSONWebSignature2020 = "JsonWebSignature2020"

	proofPurposeAssertion = "assertionMethod"
)

// JSON keys of a proof node.
const (
	jsonldProof              = "proof"
	jsonldID                 = "id"
	jsonldType               = "type"
	jsonldCreated            = "created"
	jsonldVerificationMethod = "verificationMethod"
	jsonldProofPurpose       = "proofPurpose"
	jsonldJWS                = "jws"
	jsonldPreviousProof      = "previousProof"
)

// extractProofs reads the proof field of a document as an ordered sequence.
// A single proof object is normalized to a one-element sequence.
func extractProofs(doc map[string]interface{}) ([]map[string]interface{}, error) {
	raw, ok := doc[jsonldProof]
	if !ok || raw == nil {
		return nil, nil
	}

	switch value := raw.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{value}, nil
	case []interface{}:
		proofs := make([]map[string]interface{}, 0, len(value))

		for _, entry := range value {
			proof, ok := entry.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("proof entry of type %T is not an object", entry)
			}

			proofs = append(proofs, proof)
		}

		return proofs, nil
	default:
		return nil, fmt.Errorf("proof of type %T is neither an object nor a sequence", raw)
	}
}

// selectProofs filters the proof sequence to the entries matching the given
// identifiers. Every requested identifier must be present.
func selectProofs(proofs []map[string]interface{}, ids []string) ([]map[string]interface{}, error) {
	matched := make([]map[string]interface{}, 0, len(ids))

	for _, id := range ids {
		var found map[string]interface{}

		for _, proof := range proofs {
			if proofID, ok := proof[jsonldID].(string); ok && proofID == id {
				found = proof
				break
			}
		}

		if found == nil {
			return nil, fmt.Errorf("%w: %q", ErrPreviousProofNotFound, id)
		}

		matched = append(matched, found)
	}

	return matched, nil
}

// ErrPreviousProofNotFound is returned when a previous-proof selector names
// an identifier absent from the document's proof sequence.
var ErrPreviousProofNotFound = errors.New("previous proof not found")
