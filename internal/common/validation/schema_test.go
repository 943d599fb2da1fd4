package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["order_id"],
	"properties": {
		"order_id": {"type": "string", "minLength": 1},
		"plan_type": {"type": "string", "enum": ["nbn", "opticomm", "mobile"]}
	}
}`

func TestSchema_ValidateBytes(t *testing.T) {
	schema := MustCompile(testSchema)

	tests := []struct {
		name       string
		document   string
		valid      bool
		errorField string
	}{
		{"valid document", `{"order_id":"ORD-1"}`, true, ""},
		{"missing order id", `{"success":true}`, false, "order_id"},
		{"empty order id", `{"order_id":""}`, false, "order_id"},
		{"numeric order id", `{"order_id":12}`, false, "order_id"},
		{"unknown enum", `{"order_id":"ORD-1","plan_type":"dsl"}`, false, "plan_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := schema.ValidateBytes([]byte(tt.document))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			if tt.errorField != "" {
				assert.True(t, result.HasErrors(tt.errorField), "errors: %v", result.GetErrorMessages())
				assert.NotEmpty(t, result.GetErrorsForField(tt.errorField))
			}
		})
	}
}

func TestSchema_ValidateBytes_NotJSON(t *testing.T) {
	schema := MustCompile(testSchema)

	_, err := schema.ValidateBytes([]byte("<html>bad gateway</html>"))
	assert.Error(t, err)
}

func TestSchema_ValidateInput(t *testing.T) {
	schema := MustCompile(testSchema)

	result, err := schema.ValidateInput(map[string]interface{}{"order_id": "ORD-9"})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.GetErrorMessages())
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}
