// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := catalog.GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, catalog.SchemaID, doc["$id"])
	assert.Equal(t, "Chattermon Species Catalog", doc["title"])
}

func TestValidateDataset(t *testing.T) {
	t.Run("accepts the embedded dataset", func(t *testing.T) {
		catalog.ResetSchemaCache()
		ds, err := catalog.ValidateDataset(testDataset("1.0.0"))
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", ds.FormatVersion)
		assert.Len(t, ds.Species, 2)
	})

	t.Run("rejects a document missing required fields", func(t *testing.T) {
		_, err := catalog.ValidateDataset([]byte(`{"species": []}`))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CATALOG_SCHEMA_INVALID")
	})

	t.Run("rejects wrongly typed fields", func(t *testing.T) {
		_, err := catalog.ValidateDataset([]byte(`{
			"format_version": 1,
			"default_levels": [1, 50],
			"tiers": [],
			"species": []
		}`))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CATALOG_SCHEMA_INVALID")
	})
}
