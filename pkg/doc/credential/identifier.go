/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"strings"

	"github.com/google/uuid"
)

const documentExtension = ".json"

// addressableTypes names the credential subject types that are hosted as
// URL-addressable documents. Only these use deterministic identifiers, and
// only when a base URL was supplied for the request.
var addressableTypes = map[string]bool{
	"LegalParticipant":        true,
	"LegalRegistrationNumber": true,
	"ServiceOffering":         true,
}

// deriveID derives the credential identifier. Addressable types with a base
// URL get a deterministic identifier so externally hosted credentials are
// reproducible across runs; everything else gets a fresh opaque identifier.
func deriveID(subjectType, baseURL, fileName string) string {
	if baseURL != "" && addressableTypes[subjectType] {
		base := strings.TrimSuffix(baseURL, "/")

		if fileName != "" {
			if !strings.HasSuffix(fileName, documentExtension) {
				fileName += documentExtension
			}

			return base + "/" + fileName
		}

		return base + "/" + subjectType + documentExtension
	}

	return "urn:uuid:" + uuid.New().String()
}
