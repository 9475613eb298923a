package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

func TestStrategySchema_ValidJSON(t *testing.T) {
	require.NotEmpty(t, StrategySchema)

	var schemaObj map[string]interface{}
	err := json.Unmarshal(StrategySchema, &schemaObj)
	require.NoError(t, err, "embedded schema should be valid JSON")

	_, hasSchema := schemaObj["$schema"]
	_, hasProps := schemaObj["properties"]
	assert.True(t, hasSchema, "schema should declare $schema")
	assert.True(t, hasProps, "schema should declare properties")
}

func TestStrategySchema_Compiles(t *testing.T) {
	loader := gojsonschema.NewBytesLoader(StrategySchema)
	_, err := gojsonschema.NewSchema(loader)
	assert.NoError(t, err, "embedded schema should compile")
}

func TestStrategySchema_AcceptsMinimalDefinition(t *testing.T) {
	doc := `{
		"id": "example",
		"name": "Example",
		"domains": ["example.com"],
		"selectors": {"apply_button": ["#apply"]},
		"workflow": {"application": [{"name": "apply", "action": "click"}]}
	}`

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(StrategySchema),
		gojsonschema.NewStringLoader(doc),
	)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "minimal definition should pass: %v", result.Errors())
}

func TestStrategySchema_RejectsMissingName(t *testing.T) {
	doc := `{
		"id": "example",
		"domains": ["example.com"],
		"selectors": {"apply_button": ["#apply"]},
		"workflow": {"application": [{"name": "apply", "action": "click"}]}
	}`

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(StrategySchema),
		gojsonschema.NewStringLoader(doc),
	)
	require.NoError(t, err)
	assert.False(t, result.Valid())
}
