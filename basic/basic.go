// Package basic performs the generic structural layer of HSI validation:
// loading the canonical schema and checking payload conformance against it.
// Cross-field integrity rules the schema language cannot express live in the
// parent package's strict layer.
package basic

import (
	"bytes"
	"fmt"
	"os"

	gojson "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://hsi.schemas.local/hsi-1.0.schema.json"

// LoadSchema compiles the canonical HSI schema for BASIC validation. AJV-only
// `$data` constraints (enum: {"$data": "/window_ids"}) are stripped first so
// that a standard Draft 2020-12 validator can evaluate the rest; the dynamic
// cross-references they encoded are enforced by the strict layer instead.
func LoadSchema(data []byte) (*jsonschema.Schema, error) {
	var node any
	if err := gojson.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("basic: schema is not valid JSON: %w", err)
	}
	stripped, err := gojson.Marshal(stripDataRefs(node))
	if err != nil {
		return nil, fmt.Errorf("basic: re-encoding stripped schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	if err := c.AddResource(schemaURL, bytes.NewReader(stripped)); err != nil {
		return nil, fmt.Errorf("basic: schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("basic: schema compile failed: %w", err)
	}
	return compiled, nil
}

// LoadSchemaFile reads and compiles a schema from disk.
func LoadSchemaFile(path string) (*jsonschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("basic: reading schema: %w", err)
	}
	return LoadSchema(data)
}

// Validate checks a decoded payload against the compiled schema.
func Validate(schema *jsonschema.Schema, payload any) error {
	return schema.Validate(payload)
}

// stripDataRefs walks the schema tree and drops enum constraints whose value
// is an AJV `$data` pointer rather than a list.
func stripDataRefs(node any) any {
	switch t := node.(type) {
	case map[string]any:
		if enum, ok := t["enum"].(map[string]any); ok {
			if _, ok := enum["$data"]; ok {
				delete(t, "enum")
			}
		}
		for k, v := range t {
			t[k] = stripDataRefs(v)
		}
		return t
	case []any:
		for i := range t {
			t[i] = stripDataRefs(t[i])
		}
		return t
	default:
		return node
	}
}
