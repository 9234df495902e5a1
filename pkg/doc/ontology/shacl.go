/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ontology

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/mitchellh/mapstructure"
)

var logger = log.New("credential-generator/ontology")

// labelLevelShape is resolved by target class instead of node identifier: the
// published shape graph names its node after the criteria list, not after the
// shape itself.
const labelLevelShape = "ServiceOfferingLabelLevel1"

// shaclSource fetches the Tagus shape graph plus the implemented-shapes
// allow-list and flattens both into shape schemas.
type shaclSource struct {
	shapesURL      string
	implementedURL string
	client         *http.Client
}

// shapeGraph is the wire form of the trusted shape registry response.
type shapeGraph struct {
	Shapes []shapeNode `json:"shapes"`
}

type shapeNode struct {
	ID          string        `json:"@id"`
	TargetClass interface{}   `json:"sh:targetClass"`
	Property    []interface{} `json:"sh:property"`
}

// shaclProperty is decoded from a raw property node via mapstructure. Path,
// Datatype and HasValue may arrive either as strings or as {"@id": ...} maps.
type shaclProperty struct {
	Path        interface{} `mapstructure:"sh:path"`
	Name        string      `mapstructure:"sh:name"`
	Description string      `mapstructure:"sh:description"`
	Datatype    interface{} `mapstructure:"sh:datatype"`
	MinCount    int         `mapstructure:"sh:minCount"`
	HasValue    interface{} `mapstructure:"sh:hasValue"`
}

func (s *shaclSource) FetchAndNormalize(ctx context.Context) (map[string]*ShapeSchema, error) {
	graph, err := s.fetchGraph(ctx)
	if err != nil {
		return nil, err
	}

	implemented, err := s.fetchImplemented(ctx)
	if err != nil {
		return nil, err
	}

	schemas := make(map[string]*ShapeSchema, len(implemented))

	for _, name := range implemented {
		node, err := findShapeNode(graph, name)
		if err != nil {
			return nil, err
		}

		schema, err := normalizeShapeNode(name, node)
		if err != nil {
			return nil, err
		}

		applyOverrides(VersionTagus, schema)
		withholdWiredProperties(schema)

		schemas[name] = schema
	}

	return schemas, nil
}

func (s *shaclSource) fetchGraph(ctx context.Context) (*shapeGraph, error) {
	body, err := fetchDocument(ctx, s.client, s.shapesURL, "application/json")
	if err != nil {
		return nil, err
	}

	graph := &shapeGraph{}
	if err := json.Unmarshal(body, graph); err != nil {
		return nil, fmt.Errorf("%w: parse shape graph: %s", ErrOntologyFetch, err)
	}

	return graph, nil
}

func (s *shaclSource) fetchImplemented(ctx context.Context) ([]string, error) {
	body, err := fetchDocument(ctx, s.client, s.implementedURL, "application/json")
	if err != nil {
		return nil, err
	}

	var implemented []string
	if err := json.Unmarshal(body, &implemented); err != nil {
		return nil, fmt.Errorf("%w: parse implemented shapes: %s", ErrOntologyFetch, err)
	}

	return implemented, nil
}

// findShapeNode locates the graph node of an allow-listed shape. Nodes are
// matched by the "<name>Shape" identifier convention, except the label-level
// shape which is matched by its target class.
func findShapeNode(graph *shapeGraph, name string) (*shapeNode, error) {
	for i := range graph.Shapes {
		node := &graph.Shapes[i]

		if name == labelLevelShape {
			if termName(termID(node.TargetClass)) == name {
				return node, nil
			}

			continue
		}

		if termName(node.ID) == name+"Shape" {
			return node, nil
		}
	}

	return nil, fmt.Errorf("%w: no shape node for %q", ErrUnknownType, name)
}

func normalizeShapeNode(name string, node *shapeNode) (*ShapeSchema, error) {
	schema := &ShapeSchema{
		Type:        name,
		Properties:  make(map[string]PropertyConstraint),
		Preassigned: make(map[string]interface{}),
	}

	for _, raw := range node.Property {
		prop := shaclProperty{}
		if err := mapstructure.Decode(raw, &prop); err != nil {
			return nil, fmt.Errorf("%w: decode property of %s: %s", ErrOntologyFetch, name, err)
		}

		path := termID(prop.Path)
		if path == "" {
			logger.Warnf("skipping property without sh:path in shape %s", name)
			continue
		}

		if prop.HasValue != nil {
			schema.Preassigned[path] = termID(prop.HasValue)
			continue
		}

		schema.Properties[path] = PropertyConstraint{
			Name:        path,
			Description: firstNonEmpty(prop.Description, prop.Name),
			Range:       xsdRange(termID(prop.Datatype)),
			Required:    prop.MinCount >= 1,
		}
	}

	return schema, nil
}

// termID extracts an identifier from a JSON-LD term that is serialized either
// as a plain string or as a node reference object.
func termID(term interface{}) string {
	switch value := term.(type) {
	case string:
		return value
	case map[string]interface{}:
		if id, ok := value["@id"].(string); ok {
			return id
		}
	}

	return ""
}

// termName strips namespace prefixes and IRI bases from a term identifier.
func termName(id string) string {
	if i := strings.LastIndexAny(id, "#/"); i >= 0 {
		id = id[i+1:]
	}

	if i := strings.LastIndex(id, ":"); i >= 0 {
		id = id[i+1:]
	}

	return id
}

func xsdRange(datatype string) Range {
	switch termName(datatype) {
	case "integer", "int", "long":
		return RangeInteger
	case "float", "double", "decimal":
		return RangeFloat
	case "boolean":
		return RangeBoolean
	case "dateTime", "date":
		return RangeDatetime
	default:
		return RangeString
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func fetchDocument(ctx context.Context, client *http.Client, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %s", ErrOntologyFetch, err)
	}

	req.Header.Add("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrOntologyFetch, rawURL, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("failed to close response body: %s", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %s", ErrOntologyFetch, rawURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrOntologyFetch, rawURL, resp.StatusCode)
	}

	return body, nil
}
