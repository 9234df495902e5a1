/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ontology

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const testTypeCatalog = `
classes:
  Resource:
    abstract: true
    attributes:
      name:
        range: string
  ServiceOffering:
    description: A service offered within the data space
    attributes:
      providedBy:
        description: Participant providing the service
        range: string
        required: true
      policy:
        range: string
  InstantiatedVirtualResource:
    attributes:
      hostedOn:
        range: string
      serviceAccessPoint:
        range: string
      maintainedBy:
        range: string
  LegalParticipant:
    attributes:
      legalName:
        range: string
        required: true
      employeeCount:
        range: integer
      registrationIssued:
        range: datetime
      termsKind:
        equals_string: standard
`

func newCatalogRegistry(t *testing.T) *Registry {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(testTypeCatalog))
		require.NoError(t, err)
	}))
	t.Cleanup(server.Close)

	return NewRegistry(RegistryConfig{CatalogURL: server.URL})
}

func TestLinkmlResolveAll(t *testing.T) {
	registry := newCatalogRegistry(t)

	schemas, err := registry.ResolveAll(context.Background(), VersionLoire)
	require.NoError(t, err)

	// abstract classes are dropped
	require.NotContains(t, schemas, "Resource")
	require.Len(t, schemas, 3)

	participant := schemas["LegalParticipant"]
	require.NotNil(t, participant)

	// attribute names are namespaced with the fixed prefix
	require.Contains(t, participant.Properties, "gx:legalName")
	require.True(t, participant.Properties["gx:legalName"].Required)
	require.Equal(t, RangeInteger, participant.Properties["gx:employeeCount"].Range)
	require.Equal(t, RangeDatetime, participant.Properties["gx:registrationIssued"].Range)

	// equals_string values are preassigned by the ontology
	require.NotContains(t, participant.Properties, "gx:termsKind")
	require.Equal(t, "standard", participant.Preassigned["gx:termsKind"])
}

func TestLinkmlNeverSurfacedProperties(t *testing.T) {
	registry := newCatalogRegistry(t)

	schema, err := registry.Resolve(context.Background(), VersionLoire, "InstantiatedVirtualResource")
	require.NoError(t, err)

	for _, name := range neverCollected {
		require.NotContains(t, schema.Properties, name)
	}

	require.Equal(t, ToBeFilled, schema.Preassigned["gx:serviceAccessPoint"])
}

func TestLinkmlParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte("classes: [not: a: catalog"))
		require.NoError(t, err)
	}))
	t.Cleanup(server.Close)

	registry := NewRegistry(RegistryConfig{CatalogURL: server.URL})

	_, err := registry.ResolveAll(context.Background(), VersionLoire)
	require.ErrorIs(t, err, ErrOntologyFetch)
}
