package schemas

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemas_ValidJSON(t *testing.T) {
	for _, name := range []string{DocumentSchema, PolicySchema} {
		t.Run(name, func(t *testing.T) {
			data, err := schemaFiles.ReadFile(name)
			require.NoError(t, err)

			var v map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &v))
			assert.Contains(t, v, "$schema")
			assert.Contains(t, v, "title")
		})
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantError bool
	}{
		{name: "flat", payload: `{"twitter": "Open house Sunday"}`},
		{name: "nested tones", payload: `{"instagram": {"casual": "Hey!", "luxury": "Refined living"}}`},
		{name: "lists and nulls", payload: `{"carousel": ["one", "two", null]}`},
		{name: "empty object", payload: `{}`, wantError: true},
		{name: "number leaf", payload: `{"twitter": 42}`, wantError: true},
		{name: "top-level array", payload: `["twitter"]`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument([]byte(tt.payload))
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.NotEmpty(t, validationErr.Errors)
			assert.Equal(t, DocumentSchema, validationErr.Schema)
		})
	}
}

func TestValidatePolicy(t *testing.T) {
	valid := `{
		"jurisdiction": "test",
		"prohibited_terms": [{"id": "a", "term": "adults only", "category": "familial-status", "severity": "hard"}],
		"limits": [{"field": "twitter", "max_chars": 280}]
	}`
	assert.NoError(t, ValidatePolicy([]byte(valid)))

	invalid := `{
		"jurisdiction": "test",
		"prohibited_terms": [{"id": "a", "term": "x", "pattern": "y", "category": "weather", "severity": "medium"}]
	}`
	err := ValidatePolicy([]byte(invalid))
	require.Error(t, err)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.GreaterOrEqual(t, len(validationErr.Errors), 2)
	assert.Contains(t, err.Error(), "policy.schema.json")
}

func TestValidateEmbedded_UnknownSchema(t *testing.T) {
	err := ValidateEmbedded("nope.schema.json", []byte(`{}`))
	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
}

func TestValidateDocument_MalformedPayload(t *testing.T) {
	err := ValidateDocument([]byte(`{ invalid json }`))
	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}
