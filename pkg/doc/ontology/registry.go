/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ontology

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultFetchTimeout = 30 * time.Second

// Registry resolves shape schemas for the supported ontology versions. The
// composer and signer never branch on dialect again after normalization.
type Registry struct {
	sources map[string]Source
}

// RegistryConfig holds the remote endpoints of both ontology dialects.
type RegistryConfig struct {
	// ShapesURL serves the SHACL shape graph (Tagus).
	ShapesURL string

	// ImplementedShapesURL serves the ordered allow-list of implemented
	// shape names (Tagus).
	ImplementedShapesURL string

	// CatalogURL serves the LinkML YAML type catalog (Loire).
	CatalogURL string

	// HTTPClient is used for all ontology fetches. A default client with a
	// fetch timeout is created when nil.
	HTTPClient *http.Client
}

// NewRegistry builds a registry with one normalizing source per dialect.
func NewRegistry(config RegistryConfig) *Registry {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	return &Registry{
		sources: map[string]Source{
			VersionTagus: &shaclSource{
				shapesURL:      config.ShapesURL,
				implementedURL: config.ImplementedShapesURL,
				client:         client,
			},
			VersionLoire: &linkmlSource{
				catalogURL: config.CatalogURL,
				client:     client,
			},
		},
	}
}

// ResolveAll fetches and normalizes every shape of the given ontology version.
func (r *Registry) ResolveAll(ctx context.Context, version string) (map[string]*ShapeSchema, error) {
	source, ok := r.sources[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}

	return source.FetchAndNormalize(ctx)
}

// Resolve fetches the shape schema of a single credential subject type.
func (r *Registry) Resolve(ctx context.Context, version, credentialSubjectType string) (*ShapeSchema, error) {
	schemas, err := r.ResolveAll(ctx, version)
	if err != nil {
		return nil, err
	}

	schema, ok := schemas[credentialSubjectType]
	if !ok {
		return nil, fmt.Errorf("%w: %q in version %s", ErrUnknownType, credentialSubjectType, version)
	}

	return schema, nil
}
