/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package proofchain produces the first cryptographic proof of a credential
// document or extends an existing proof chain with a referentially linked
// successor.
package proofchain

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bluele/gcache"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/piprate/json-gold/ld"
)

var logger = log.New("credential-generator/proofchain")

const (
	canonicalizationAlgorithm = "URDNA2015"
	canonicalizationFormat    = "application/n-quads"

	contextCacheSize  = 32
	remoteLoadTimeout = 30 * time.Second
)

// Canonicalizer produces the URDNA2015 canonical form of a JSON-LD document,
// the signature base of the embedded-proof strategy.
type Canonicalizer struct {
	loader ld.DocumentLoader
}

// NewCanonicalizer builds a canonicalizer with a caching document loader.
// The well-known envelope contexts are embedded so canonicalization works
// without network access; anything else is fetched once and cached.
func NewCanonicalizer(client *http.Client) *Canonicalizer {
	if client == nil {
		client = &http.Client{Timeout: remoteLoadTimeout}
	}

	return &Canonicalizer{loader: newCachingDocumentLoader(client)}
}

// Canonicalize returns the canonical N-Quads form of the document.
func (c *Canonicalizer) Canonicalize(doc map[string]interface{}) ([]byte, error) {
	proc := ld.NewJsonLdProcessor()

	options := ld.NewJsonLdOptions("")
	options.ProcessingMode = ld.JsonLd_1_1
	options.Algorithm = canonicalizationAlgorithm
	options.Format = canonicalizationFormat
	options.ProduceGeneralizedRdf = true
	options.DocumentLoader = c.loader

	view, err := proc.Normalize(doc, options)
	if err != nil {
		return nil, fmt.Errorf("normalize JSON-LD document: %w", err)
	}

	canonical, ok := view.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected normalization result of type %T", view)
	}

	return []byte(canonical), nil
}

type cachingDocumentLoader struct {
	cache  gcache.Cache
	remote ld.DocumentLoader
}

func newCachingDocumentLoader(client *http.Client) *cachingDocumentLoader {
	return &cachingDocumentLoader{
		cache:  gcache.New(contextCacheSize).LRU().Build(),
		remote: ld.NewDefaultDocumentLoader(client),
	}
}

func (l *cachingDocumentLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	if embedded, ok := embeddedContexts[strings.TrimSuffix(u, "#")]; ok {
		parsed, err := ld.DocumentFromReader(strings.NewReader(embedded))
		if err != nil {
			return nil, fmt.Errorf("parse embedded context %s: %w", u, err)
		}

		return &ld.RemoteDocument{DocumentURL: u, Document: parsed}, nil
	}

	if cached, err := l.cache.Get(u); err == nil {
		if doc, ok := cached.(*ld.RemoteDocument); ok {
			return doc, nil
		}
	}

	remote, err := l.remote.LoadDocument(u)
	if err != nil {
		return nil, err
	}

	if err := l.cache.Set(u, remote); err != nil {
		logger.Warnf("failed to cache context document %s: %s", u, err)
	}

	return remote, nil
}

// embeddedContexts holds trimmed term maps of the envelope contexts, keyed by
// URL without a trailing fragment marker.
var embeddedContexts = map[string]string{
	"https://www.w3.org/2018/credentials/v1": `{
	  "@context": {
	    "@version": 1.1,
	    "@protected": true,
	    "id": "@id",
	    "type": "@type",
	    "@vocab": "https://www.w3.org/2018/credentials#",
	    "proof": {"@id": "https://w3id.org/security#proof", "@type": "@id", "@container": "@graph"}
	  }
	}`,
	"https://www.w3.org/ns/credentials/v2": `{
	  "@context": {
	    "@version": 1.1,
	    "@protected": true,
	    "id": "@id",
	    "type": "@type",
	    "@vocab": "https://www.w3.org/ns/credentials#",
	    "proof": {"@id": "https://w3id.org/security#proof", "@type": "@id", "@container": "@graph"}
	  }
	}`,
	"https://registry.lab.dataspace4health.lu/api/trusted-shape-registry/v1/shapes/jsonld/trustframework": `{
	  "@context": {
	    "@version": 1.1,
	    "id": "@id",
	    "type": "@type",
	    "gx": "https://registry.lab.dataspace4health.lu/api/trusted-shape-registry/v1/shapes/jsonld/trustframework#",
	    "@vocab": "https://registry.lab.dataspace4health.lu/api/trusted-shape-registry/v1/shapes/jsonld/trustframework#"
	  }
	}`,
	"https://w3id.org/dataspace4health/development": `{
	  "@context": {
	    "@version": 1.1,
	    "id": "@id",
	    "type": "@type",
	    "gx": "https://w3id.org/dataspace4health/development#",
	    "@vocab": "https://w3id.org/dataspace4health/development#"
	  }
	}`,
}
