package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchemaFromStruct(t *testing.T) {
	type params struct {
		Query      string  `json:"query" description:"free-text query"`
		MaxResults int     `json:"max_results,omitempty"`
		Cutoff     *string `json:"cutoff"`
		Internal   string  `json:"-"`
	}

	schema := CreateSchema(params{})
	assert.Equal(t, "object", schema["type"])

	props := schema["properties"].(map[string]any)
	require.Contains(t, props, "query")
	require.Contains(t, props, "max_results")
	require.Contains(t, props, "cutoff")
	assert.NotContains(t, props, "Internal")

	query := props["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "free-text query", query["description"])
	assert.Equal(t, "integer", props["max_results"].(map[string]any)["type"])

	// Only the non-pointer, non-omitempty field is required.
	assert.Equal(t, []string{"query"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
			"flag":  map[string]any{"type": "boolean"},
		},
		"required": []string{"name"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"name": "x"}, schema))
	// JSON-decoded numbers arrive as float64.
	assert.NoError(t, ValidateParameters(map[string]any{"name": "x", "count": float64(3)}, schema))
	// Extra fields are allowed.
	assert.NoError(t, ValidateParameters(map[string]any{"name": "x", "other": 1}, schema))

	err := ValidateParameters(map[string]any{"count": 1}, schema)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	err = ValidateParameters(map[string]any{"name": 42}, schema)
	require.Error(t, err)

	err = ValidateParameters(map[string]any{"name": "x", "count": 1.5}, schema)
	require.Error(t, err)

	err = ValidateParameters(map[string]any{"name": "x", "flag": "yes"}, schema)
	require.Error(t, err)
}

func TestValidateParametersRequiredAsAnySlice(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"id": map[string]any{"type": "string"}},
		"required":   []any{"id"},
	}
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"id": "a"}, schema))
}
