// internal/workers/application/create-application-record/validation.go
package createapplicationrecord

import "nbn-order-workers/internal/common/validation"

// New applications start in prelim, or directly in order when the caller
// has already collected everything the carrier needs.
var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["customerId", "planId", "address1", "city", "state", "postcode"],
	"properties": {
		"customerId": {"type": "string", "minLength": 1},
		"planId": {"type": "string", "minLength": 1},
		"address1": {"type": "string", "minLength": 1},
		"address2": {"type": "string"},
		"city": {"type": "string", "minLength": 1},
		"state": {"type": "string", "minLength": 2, "maxLength": 3},
		"postcode": {"type": "string", "pattern": "^[0-9]{4}$"},
		"status": {"type": "string", "enum": ["prelim", "order"]}
	}
}`)
