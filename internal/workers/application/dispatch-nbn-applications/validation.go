package dispatchnbnapplications

import "nbn-order-workers/internal/common/validation"

// The timer-started process carries no variables; cycleId may be supplied to
// correlate a manually started instance.
var inputSchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"cycleId": {"type": "string", "minLength": 1}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
