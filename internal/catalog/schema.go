// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package catalog

import (
	"bytes"
	"encoding/json"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
)

// schemaCache holds the compiled schema to avoid recompilation.
var schemaCache *jschema.Schema

// SchemaID is the $id stamped into the generated schema.
const SchemaID = "https://chattermon.dev/schemas/catalog.schema.json"

// GenerateSchema generates a JSON Schema from the Dataset struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Dataset{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Chattermon Species Catalog"
	schema.Description = "Schema for species catalog dataset files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_MARSHAL_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateDataset validates raw dataset JSON against the generated
// schema and unmarshals it.
func ValidateDataset(data []byte) (*Dataset, error) {
	if len(data) == 0 {
		return nil, oops.Code("CATALOG_EMPTY").Errorf("catalog dataset is empty")
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, oops.Code("CATALOG_INVALID_JSON").Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, oops.Code("CATALOG_SCHEMA_INVALID").Wrap(err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, oops.Code("CATALOG_DECODE_FAILED").Wrap(err)
	}
	return &ds, nil
}

// compiledSchema returns the cached compiled schema or compiles it.
func compiledSchema() (*jschema.Schema, error) {
	if schemaCache != nil {
		return schemaCache, nil
	}

	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	schemaDoc, err := jschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, oops.Code("SCHEMA_PARSE_FAILED").Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("catalog.schema.json", schemaDoc); err != nil {
		return nil, oops.Code("SCHEMA_RESOURCE_FAILED").Wrap(err)
	}
	sch, err := c.Compile("catalog.schema.json")
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
	}

	schemaCache = sch
	return sch, nil
}

// ResetSchemaCache clears the cached schema. Used for testing.
func ResetSchemaCache() {
	schemaCache = nil
}
