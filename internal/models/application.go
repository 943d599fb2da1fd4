package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatus           = errors.New("INVALID_APPLICATION_STATUS")
	ErrInvalidStatusTransition = errors.New("INVALID_STATUS_TRANSITION")
	ErrInvalidPlanType         = errors.New("INVALID_PLAN_TYPE")
	ErrOrderIDInvariant        = errors.New("ORDER_ID_INVARIANT_VIOLATED")
)

// ApplicationStatus is the closed set of lifecycle states an application moves through.
type ApplicationStatus string

const (
	StatusPrelim      ApplicationStatus = "prelim"
	StatusOrder       ApplicationStatus = "order"
	StatusComplete    ApplicationStatus = "complete"
	StatusOrderFailed ApplicationStatus = "order_failed"
)

// ParseApplicationStatus rejects anything outside the known states.
func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	switch s := ApplicationStatus(strings.TrimSpace(raw)); s {
	case StatusPrelim, StatusOrder, StatusComplete, StatusOrderFailed:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Terminal reports whether the order pipeline is done with the status.
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case StatusComplete, StatusOrderFailed:
		return true
	case StatusPrelim, StatusOrder:
		return false
	default:
		return false
	}
}

// pipelineTransitions lists the moves the order pipeline itself may make.
// Re-entry into order (prelim -> order, order_failed -> order) belongs to
// operators and is written by other components.
var pipelineTransitions = map[ApplicationStatus]map[ApplicationStatus]bool{
	StatusPrelim:      {},
	StatusOrder:       {StatusComplete: true, StatusOrderFailed: true},
	StatusComplete:    {},
	StatusOrderFailed: {},
}

// CanTransition checks if from->to is a pipeline transition.
func CanTransition(from, to ApplicationStatus) bool {
	nexts := pipelineTransitions[from]
	return nexts != nil && nexts[to]
}

// Value implements driver.Valuer.
func (s ApplicationStatus) Value() (driver.Value, error) {
	if _, err := ParseApplicationStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

// Scan implements sql.Scanner so an unknown status fails at read time.
func (s *ApplicationStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidStatus, src)
	}
	parsed, err := ParseApplicationStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// PlanType identifies the carrier product family of a plan.
type PlanType string

const (
	PlanTypeNBN      PlanType = "nbn"
	PlanTypeOpticomm PlanType = "opticomm"
	PlanTypeMobile   PlanType = "mobile"
)

// PlanTypes in display order.
var PlanTypes = []PlanType{PlanTypeNBN, PlanTypeOpticomm, PlanTypeMobile}

func ParsePlanType(raw string) (PlanType, error) {
	switch t := PlanType(strings.TrimSpace(raw)); t {
	case PlanTypeNBN, PlanTypeOpticomm, PlanTypeMobile:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlanType, raw)
	}
}

type Plan struct {
	ID          string   `json:"id"`
	Type        PlanType `json:"type"`
	Name        string   `json:"name"`
	MonthlyCost int64    `json:"monthlyCost"` // cents
}

type Customer struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Application is a customer's request for a telecom service.
type Application struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customerId"`
	PlanID     string            `json:"planId"`
	Address1   string            `json:"address1"`
	Address2   string            `json:"address2,omitempty"`
	City       string            `json:"city"`
	State      string            `json:"state"`
	Postcode   string            `json:"postcode"`
	Status     ApplicationStatus `json:"status"`
	OrderID    *string           `json:"orderId,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`

	Plan     Plan     `json:"plan"`
	Customer Customer `json:"customer"`
}

// FullAddress joins the non-empty address parts with ", ".
func (a *Application) FullAddress() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Address1, a.Address2, a.City, a.State, a.Postcode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// EligibleForOrder reports whether the order pipeline should submit the application.
func (a *Application) EligibleForOrder() bool {
	return a.Plan.Type == PlanTypeNBN && a.Status == StatusOrder
}

// CheckInvariants enforces order_id != nil iff status == complete.
func (a *Application) CheckInvariants() error {
	hasOrder := a.OrderID != nil && *a.OrderID != ""
	if hasOrder != (a.Status == StatusComplete) {
		return fmt.Errorf("%w: application %s status=%s hasOrderId=%t", ErrOrderIDInvariant, a.ID, a.Status, hasOrder)
	}
	return nil
}

// StatusUpdate is the single terminal write the order pipeline applies.
type StatusUpdate struct {
	ApplicationID string
	Status        ApplicationStatus
	OrderID       *string
}

// CompleteOrder builds the order -> complete update.
func (a *Application) CompleteOrder(orderID string) (StatusUpdate, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return StatusUpdate{}, fmt.Errorf("%w: complete requires an order id", ErrOrderIDInvariant)
	}
	if !CanTransition(a.Status, StatusComplete) {
		return StatusUpdate{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, a.Status, StatusComplete)
	}
	return StatusUpdate{ApplicationID: a.ID, Status: StatusComplete, OrderID: &orderID}, nil
}

// FailOrder builds the order -> order_failed update. order_id stays null.
func (a *Application) FailOrder() (StatusUpdate, error) {
	if !CanTransition(a.Status, StatusOrderFailed) {
		return StatusUpdate{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, a.Status, StatusOrderFailed)
	}
	return StatusUpdate{ApplicationID: a.ID, Status: StatusOrderFailed}, nil
}

// Apply mutates the in-memory record after the store accepted the update.
func (a *Application) Apply(u StatusUpdate) {
	a.Status = u.Status
	a.OrderID = u.OrderID
}
