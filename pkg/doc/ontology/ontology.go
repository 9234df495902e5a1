/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ontology normalizes the two supported remote schema dialects into a
// canonical property-constraint model consumed by the credential composer.
package ontology

import (
	"context"
	"errors"
)

const (
	// VersionTagus is the SHACL-based trust framework dialect.
	VersionTagus = "22.10"

	// VersionLoire is the LinkML-based type catalog dialect.
	VersionLoire = "24.04"
)

// ToBeFilled is the sentinel preassigned value for properties whose final
// value is derived by cross-shape wiring. The composer must overwrite every
// occurrence before a credential is emitted.
const ToBeFilled = "TO_BE_FILLED_LATER"

var (
	// ErrUnsupportedVersion is returned for any version token other than the
	// two supported ontology dialects.
	ErrUnsupportedVersion = errors.New("unsupported ontology version")

	// ErrUnknownType is returned when the requested credential subject type is
	// absent from the resolved shape map.
	ErrUnknownType = errors.New("unknown credential subject type")

	// ErrOntologyFetch is returned on transport or parse failure while
	// resolving a remote ontology. Fetch failures are fatal and never retried.
	ErrOntologyFetch = errors.New("ontology fetch failed")
)

// Range is the canonical value range of a property constraint.
type Range string

// Canonical property ranges, the union of both dialects' datatypes.
const (
	RangeString   Range = "string"
	RangeInteger  Range = "integer"
	RangeFloat    Range = "float"
	RangeBoolean  Range = "boolean"
	RangeDatetime Range = "datetime"
)

// PropertyConstraint describes a single property a credential subject of some
// type needs a value for. Instances are immutable once produced.
type PropertyConstraint struct {
	Name        string
	Description string
	Range       Range
	Required    bool
}

// ShapeSchema is the normalized shape of one credential subject type in one
// ontology version. It is built fresh on every fetch and is read-only once
// returned.
type ShapeSchema struct {
	Type string

	// Properties holds the constraints a value must still be collected for.
	Properties map[string]PropertyConstraint

	// Preassigned holds values fixed by the ontology itself (hasValue and
	// equivalents) plus the ToBeFilled sentinels for wired identifiers.
	Preassigned map[string]interface{}
}

// Source normalizes one remote ontology dialect into shape schemas keyed by
// credential subject type.
type Source interface {
	FetchAndNormalize(ctx context.Context) (map[string]*ShapeSchema, error)
}

// neverCollected lists properties that are never surfaced to the interactive
// collector in either dialect. Their values are auto-wired between shapes, so
// they enter the schema as ToBeFilled preassigned entries instead.
var neverCollected = []string{
	"gx:hostedOn",
	"gx:instanceOf",
	"gx:serviceAccessPoint",
}

// withholdWiredProperties moves never-collected properties out of the
// constraint map and marks them preassigned with the ToBeFilled sentinel.
func withholdWiredProperties(schema *ShapeSchema) {
	for _, name := range neverCollected {
		if _, ok := schema.Properties[name]; !ok {
			continue
		}

		delete(schema.Properties, name)
		schema.Preassigned[name] = ToBeFilled
	}
}
