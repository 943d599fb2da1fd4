// internal/workers/application/create-application-record/models.go
package createapplicationrecord

import (
	"context"

	"nbn-order-workers/internal/models"
)

type Input struct {
	CustomerID string `json:"customerId"`
	PlanID     string `json:"planId"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	Postcode   string `json:"postcode"`
	Status     string `json:"status,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	CreatedAt         string `json:"createdAt"` // ISO 8601
}

// ApplicationStore is satisfied by store.ApplicationStore.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	Get(ctx context.Context, id string) (*models.Application, error)
}
