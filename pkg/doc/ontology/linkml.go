/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ontology

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"gopkg.in/yaml.v3"
)

// attributePrefix namespaces every LinkML attribute so both dialects produce
// the same property naming scheme.
const attributePrefix = "gx:"

// linkmlSource fetches the Loire YAML type catalog and flattens it into shape
// schemas. Classes are processed in lexicographic order for determinism.
type linkmlSource struct {
	catalogURL string
	client     *http.Client
}

type linkmlCatalog struct {
	Classes map[string]linkmlClass `yaml:"classes"`
}

type linkmlClass struct {
	Abstract    bool                       `yaml:"abstract"`
	Description string                     `yaml:"description"`
	Attributes  map[string]linkmlAttribute `yaml:"attributes"`
}

type linkmlAttribute struct {
	Description  string `yaml:"description"`
	Range        string `yaml:"range"`
	Required     bool   `yaml:"required"`
	EqualsString string `yaml:"equals_string"`
}

func (s *linkmlSource) FetchAndNormalize(ctx context.Context) (map[string]*ShapeSchema, error) {
	body, err := fetchDocument(ctx, s.client, s.catalogURL, "application/yaml")
	if err != nil {
		return nil, err
	}

	catalog := &linkmlCatalog{}
	if err := yaml.Unmarshal(body, catalog); err != nil {
		return nil, fmt.Errorf("%w: parse type catalog: %s", ErrOntologyFetch, err)
	}

	names := make([]string, 0, len(catalog.Classes))

	for name, class := range catalog.Classes {
		if class.Abstract {
			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)

	schemas := make(map[string]*ShapeSchema, len(names))

	for _, name := range names {
		schema := normalizeClass(name, catalog.Classes[name])

		applyOverrides(VersionLoire, schema)
		withholdWiredProperties(schema)

		schemas[name] = schema
	}

	return schemas, nil
}

func normalizeClass(name string, class linkmlClass) *ShapeSchema {
	schema := &ShapeSchema{
		Type:        name,
		Properties:  make(map[string]PropertyConstraint, len(class.Attributes)),
		Preassigned: make(map[string]interface{}),
	}

	for attrName, attr := range class.Attributes {
		prefixed := attributePrefix + attrName

		if attr.EqualsString != "" {
			schema.Preassigned[prefixed] = attr.EqualsString
			continue
		}

		schema.Properties[prefixed] = PropertyConstraint{
			Name:        prefixed,
			Description: attr.Description,
			Range:       linkmlRange(attr.Range),
			Required:    attr.Required,
		}
	}

	return schema
}

func linkmlRange(name string) Range {
	switch name {
	case "integer", "int":
		return RangeInteger
	case "float", "double", "decimal":
		return RangeFloat
	case "boolean":
		return RangeBoolean
	case "datetime", "date":
		return RangeDatetime
	default:
		return RangeString
	}
}
