/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
)

// ServiceOfferingShapes is the fixed generation order of the service-offering
// composite bundle. Dependency shapes precede their dependents.
var ServiceOfferingShapes = []string{
	"ServiceOffering",
	"ServiceAccessPoint",
	"InstantiatedVirtualResource",
}

// shapeDependencies is the static table wiring one generated shape's subject
// identifier into a later shape's preassigned property.
var shapeDependencies = map[string]map[string]string{
	"InstantiatedVirtualResource": {
		"gx:hostedOn":           "ServiceAccessPoint",
		"gx:instanceOf":         "ServiceOffering",
		"gx:serviceAccessPoint": "ServiceAccessPoint",
	},
}

const (
	termsProperty    = "gx:termsAndConditions"
	termsSubjectType = "SOTermsAndConditions"
)

// termsReference is the URL/hash pair embedded in the service offering's
// terms property.
type termsReference struct {
	URL  string `mapstructure:"gx:URL"`
	Hash string `mapstructure:"gx:hash"`
}

// Bundle is an ordered sequence of composed documents forming one composite
// credential set.
type Bundle struct {
	Documents []*Document
	ByType    map[string]*Document
}

// ComposeServiceOffering generates the service-offering composite bundle:
// the fixed shape sequence with cross-shape identifier wiring, followed by a
// synthesized terms-and-conditions subject derived from the offering's terms
// reference.
func ComposeServiceOffering(version string, schemas map[string]*ontology.ShapeSchema,
	collected map[string]map[string]interface{}, opts ...Option) (*Bundle, error) {
	bundle, err := ComposeShapes(version, ServiceOfferingShapes, schemas, collected, opts...)
	if err != nil {
		return nil, err
	}

	terms, err := synthesizeTerms(version, bundle.Documents[0], opts...)
	if err != nil {
		return nil, err
	}

	if terms != nil {
		bundle.Documents = append(bundle.Documents, terms)
		bundle.ByType[termsSubjectType] = terms
	}

	return bundle, nil
}

// ComposeShapes generates the given shapes in declared order, wiring each
// generated subject identifier into the preassigned slots of later shapes per
// the static dependency table. The set of already-generated identifiers is
// passed forward as an immutable input to every composition call.
func ComposeShapes(version string, order []string, schemas map[string]*ontology.ShapeSchema,
	collected map[string]map[string]interface{}, opts ...Option) (*Bundle, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("no shapes to compose")
	}

	bundle := &Bundle{
		Documents: make([]*Document, 0, len(order)),
		ByType:    make(map[string]*Document, len(order)),
	}

	generated := make(map[string]string, len(order))

	for _, shape := range order {
		schema, ok := schemas[shape]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ontology.ErrUnknownType, shape)
		}

		injected, err := dependencyIdentifiers(shape, generated)
		if err != nil {
			return nil, err
		}

		shapeOpts := make([]Option, 0, len(opts)+1)
		shapeOpts = append(shapeOpts, opts...)
		shapeOpts = append(shapeOpts, WithInjected(injected))

		doc, err := Compose(version, shape, collected[shape], schema.Preassigned, shapeOpts...)
		if err != nil {
			return nil, fmt.Errorf("compose shape %q: %w", shape, err)
		}

		if id, ok := doc.Subject["id"].(string); ok {
			generated[shape] = id
		}

		bundle.Documents = append(bundle.Documents, doc)
		bundle.ByType[shape] = doc
	}

	return bundle, nil
}

// dependencyIdentifiers resolves the wired identifiers a shape depends on
// from the already-generated subject identifiers.
func dependencyIdentifiers(shape string, generated map[string]string) (map[string]interface{}, error) {
	deps := shapeDependencies[shape]
	if len(deps) == 0 {
		return nil, nil
	}

	injected := make(map[string]interface{}, len(deps))

	for property, producer := range deps {
		id, ok := generated[producer]
		if !ok {
			return nil, fmt.Errorf("%w: shape %q needs the identifier of %q for %s",
				ErrMissingDependencyID, shape, producer, property)
		}

		injected[property] = id
	}

	return injected, nil
}

// synthesizeTerms builds the trailing terms-and-conditions subject from the
// URL/hash pair embedded in the offering's terms property. A missing or
// malformed reference degrades to a skip with a warning.
func synthesizeTerms(version string, offering *Document, opts ...Option) (*Document, error) {
	raw, ok := offering.Subject[termsProperty]
	if !ok {
		logger.Warnf("service offering carries no %s property, skipping terms-and-conditions subject", termsProperty)
		return nil, nil
	}

	ref := termsReference{}
	if err := mapstructure.Decode(raw, &ref); err != nil || ref.URL == "" {
		logger.Warnf("service offering %s property is not a URL/hash reference, "+
			"skipping terms-and-conditions subject", termsProperty)

		return nil, nil
	}

	preassigned := map[string]interface{}{
		"gx:URL":  ref.URL,
		"gx:hash": ref.Hash,
	}

	return Compose(version, termsSubjectType, nil, preassigned, opts...)
}
