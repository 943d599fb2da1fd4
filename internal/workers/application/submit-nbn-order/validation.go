package submitnbnorder

import "nbn-order-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["applicationId"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1},
		"cycleId": {"type": "string"}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
