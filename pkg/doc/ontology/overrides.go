/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ontology

// override is a curated correction applied on top of the raw schema: a
// friendlier description for the interactive collector, and in some cases a
// widened required flag where the published cardinality is known to be wrong.
type override struct {
	description string
	required    bool
}

// propertyOverrides is static, versioned policy, not user input. Entries are
// keyed by ontology version, then by property name.
var propertyOverrides = map[string]map[string]override{
	VersionTagus: {
		"gx:legalName": {
			description: "Legally binding name of the organization",
			required:    true,
		},
		"gx:headquarterAddress": {
			description: "Physical location of the headquarters in ISO 3166-2 format",
			required:    true,
		},
		"gx:legalAddress": {
			description: "Physical location of the legal seat in ISO 3166-2 format",
			required:    true,
		},
		"gx:termsAndConditions": {
			description: "Resolvable link to the terms and conditions document",
		},
		"gx:policy": {
			description: "Access policy expressed in ODRL (leave empty for the default allow policy)",
		},
		"gx:dataAccountExport": {
			description: "Means to export the data out of the service",
			required:    true,
		},
	},
	VersionLoire: {
		"gx:legalName": {
			description: "Legally binding name of the organization",
		},
		"gx:policy": {
			description: "Access policy expressed in ODRL (leave empty for the default allow policy)",
		},
	},
}

func applyOverrides(version string, schema *ShapeSchema) {
	overrides := propertyOverrides[version]

	for name, constraint := range schema.Properties {
		entry, ok := overrides[name]
		if !ok {
			continue
		}

		if entry.description != "" {
			constraint.Description = entry.description
		}

		if entry.required {
			constraint.Required = true
		}

		schema.Properties[name] = constraint
	}
}
