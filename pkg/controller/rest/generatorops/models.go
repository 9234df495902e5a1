/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package generatorops

import "github.com/dataspace4health-lu/credential-generator/pkg/generator"

// genericError is the error response body of all generation endpoints.
// swagger:response genericError
type genericError struct {
	// in: body
	Message string `json:"message"`
}

// generationResponse is the success body of the generation endpoints.
// swagger:response generationRes
type generationResponse struct {
	// in: body
	Document map[string]interface{} `json:"document,omitempty"`
	// in: body
	Token string `json:"token,omitempty"`
	// in: body
	SavedTo string `json:"savedTo,omitempty"`
}

func newGenerationResponse(result *generator.Result) *generationResponse {
	return &generationResponse{
		Document: result.Document,
		Token:    result.Token,
		SavedTo:  result.SavedTo,
	}
}
