/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
)

func serviceOfferingSchemas() map[string]*ontology.ShapeSchema {
	return map[string]*ontology.ShapeSchema{
		"ServiceOffering": {
			Type:        "ServiceOffering",
			Properties:  map[string]ontology.PropertyConstraint{},
			Preassigned: map[string]interface{}{},
		},
		"ServiceAccessPoint": {
			Type:        "ServiceAccessPoint",
			Properties:  map[string]ontology.PropertyConstraint{},
			Preassigned: map[string]interface{}{},
		},
		"InstantiatedVirtualResource": {
			Type:       "InstantiatedVirtualResource",
			Properties: map[string]ontology.PropertyConstraint{},
			Preassigned: map[string]interface{}{
				"gx:hostedOn":           ontology.ToBeFilled,
				"gx:instanceOf":         ontology.ToBeFilled,
				"gx:serviceAccessPoint": ontology.ToBeFilled,
			},
		},
	}
}

func TestComposeServiceOffering(t *testing.T) {
	collected := map[string]map[string]interface{}{
		"ServiceOffering": {
			"gx:name": "Object storage",
			"gx:termsAndConditions": map[string]interface{}{
				"gx:URL":  "https://example.org/terms.pdf",
				"gx:hash": "d8e8fca2dc0f896fd7cb4cb0031ba249",
			},
		},
		"ServiceAccessPoint": {
			"gx:host": "storage.example.org",
		},
	}

	bundle, err := ComposeServiceOffering(ontology.VersionTagus, serviceOfferingSchemas(), collected,
		WithIssuer("did:web:example.org"))
	require.NoError(t, err)
	require.Len(t, bundle.Documents, 4)

	offering := bundle.ByType["ServiceOffering"]
	accessPoint := bundle.ByType["ServiceAccessPoint"]
	resource := bundle.ByType["InstantiatedVirtualResource"]

	// wired identifiers match the generated subject identifiers
	require.Equal(t, accessPoint.Subject["id"], resource.Subject["gx:hostedOn"])
	require.Equal(t, accessPoint.Subject["id"], resource.Subject["gx:serviceAccessPoint"])
	require.Equal(t, offering.Subject["id"], resource.Subject["gx:instanceOf"])

	terms := bundle.ByType["SOTermsAndConditions"]
	require.NotNil(t, terms)
	require.Equal(t, []string{"VerifiableCredential", "SOTermsAndConditions"}, terms.Type)
	require.Equal(t, "https://example.org/terms.pdf", terms.Subject["gx:URL"])
	require.Equal(t, "d8e8fca2dc0f896fd7cb4cb0031ba249", terms.Subject["gx:hash"])
}

func TestComposeServiceOfferingWithoutTerms(t *testing.T) {
	bundle, err := ComposeServiceOffering(ontology.VersionTagus, serviceOfferingSchemas(), nil,
		WithIssuer("did:web:example.org"))
	require.NoError(t, err)

	// synthesis is skipped, not fatal
	require.Len(t, bundle.Documents, 3)
	require.NotContains(t, bundle.ByType, "SOTermsAndConditions")
}

func TestComposeShapesDependencyOrder(t *testing.T) {
	schemas := serviceOfferingSchemas()

	// dependent before its producers is not supported
	_, err := ComposeShapes(ontology.VersionTagus,
		[]string{"InstantiatedVirtualResource", "ServiceAccessPoint", "ServiceOffering"},
		schemas, nil, WithIssuer("did:web:example.org"))
	require.ErrorIs(t, err, ErrMissingDependencyID)
}

func TestComposeShapesUnknownShape(t *testing.T) {
	_, err := ComposeShapes(ontology.VersionTagus, []string{"Ghost"},
		serviceOfferingSchemas(), nil, WithIssuer("did:web:example.org"))
	require.ErrorIs(t, err, ontology.ErrUnknownType)
}
