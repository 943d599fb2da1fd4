// Package store is the Postgres-backed application store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nbn-order-workers/internal/models"
)

var (
	ErrNotFound       = errors.New("APPLICATION_NOT_FOUND")
	ErrStatusConflict = errors.New("APPLICATION_STATUS_CONFLICT")
)

const applicationColumns = `a.id, a.customer_id, a.plan_id, a.address_1, COALESCE(a.address_2, ''),
	a.city, a.state, a.postcode, a.status, a.order_id, a.created_at, a.updated_at,
	p.id, p.type, p.name, p.monthly_cost, c.id, c.first_name, c.last_name`

const applicationJoins = `FROM applications a
	JOIN plans p ON p.id = a.plan_id
	JOIN customers c ON c.id = a.customer_id`

// ApplicationStore reads and writes applications joined with their plan and customer.
type ApplicationStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewApplicationStore(db *sql.DB) *ApplicationStore {
	return &ApplicationStore{db: db, now: time.Now}
}

// SelectEligible returns every nbn application in order status, oldest first.
// The whole set is returned in one query.
func (s *ApplicationStore) SelectEligible(ctx context.Context) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` ` + applicationJoins + `
		WHERE p.type = $1 AND a.status = $2
		ORDER BY a.created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, string(models.PlanTypeNBN), string(models.StatusOrder))
	if err != nil {
		return nil, fmt.Errorf("select eligible applications: %w", err)
	}
	defer rows.Close()

	return scanApplications(rows)
}

// Get loads one application with its plan and customer.
func (s *ApplicationStore) Get(ctx context.Context, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` ` + applicationJoins + ` WHERE a.id = $1`

	app, err := scanApplication(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	return app, nil
}

// UpdateStatus writes status and order_id in one statement. The write only
// lands while the row is still in order status; otherwise ErrStatusConflict.
func (s *ApplicationStore) UpdateStatus(ctx context.Context, u models.StatusUpdate) error {
	var orderID interface{}
	if u.OrderID != nil {
		orderID = *u.OrderID
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = $1, order_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		string(u.Status), orderID, s.now().UTC(), u.ApplicationID, string(models.StatusOrder),
	)
	if err != nil {
		return fmt.Errorf("update application %s: %w", u.ApplicationID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application %s: %w", u.ApplicationID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s is no longer in %s status", ErrStatusConflict, u.ApplicationID, models.StatusOrder)
	}
	return nil
}

// ListFilter narrows a listing page. A nil PlanType lists everything.
type ListFilter struct {
	PlanType *models.PlanType
	Page     int
	PerPage  int
}

type Page struct {
	Items   []*models.Application
	Total   int
	Page    int
	PerPage int
}

func (p *Page) LastPage() int {
	if p.Total == 0 || p.PerPage <= 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// From and To are 1-based positions of the first and last item, 0 when empty.
func (p *Page) From() int {
	if len(p.Items) == 0 {
		return 0
	}
	return (p.Page-1)*p.PerPage + 1
}

func (p *Page) To() int {
	if len(p.Items) == 0 {
		return 0
	}
	return p.From() + len(p.Items) - 1
}

// ListPage returns one page ordered by creation time, oldest first.
func (s *ApplicationStore) ListPage(ctx context.Context, f ListFilter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 15
	}

	var where string
	args := []interface{}{}
	if f.PlanType != nil {
		where = ` WHERE p.type = $1`
		args = append(args, string(*f.PlanType))
	}

	var total int
	countQuery := `SELECT COUNT(*) ` + applicationJoins + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}

	page := &Page{Total: total, Page: f.Page, PerPage: f.PerPage}
	if total == 0 {
		return page, nil
	}

	n := len(args)
	listQuery := fmt.Sprintf(`SELECT %s %s%s ORDER BY a.created_at ASC, a.id ASC LIMIT $%d OFFSET $%d`,
		applicationColumns, applicationJoins, where, n+1, n+2)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	if page.Items, err = scanApplications(rows); err != nil {
		return nil, err
	}
	return page, nil
}

// Create inserts a new application. An empty ID gets a uuid and an empty
// status defaults to prelim.
func (s *ApplicationStore) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.Status == "" {
		app.Status = models.StatusPrelim
	}
	if err := app.CheckInvariants(); err != nil {
		return err
	}

	now := s.now().UTC()
	var address2, orderID interface{}
	if strings.TrimSpace(app.Address2) != "" {
		address2 = app.Address2
	}
	if app.OrderID != nil {
		orderID = *app.OrderID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications
			(id, customer_id, plan_id, address_1, address_2, city, state, postcode, status, order_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		app.ID, app.CustomerID, app.PlanID, app.Address1, address2,
		app.City, app.State, app.Postcode, string(app.Status), orderID, now,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}

	app.CreatedAt = now
	app.UpdatedAt = now
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app      models.Application
		orderID  sql.NullString
		planType string
	)
	err := row.Scan(
		&app.ID, &app.CustomerID, &app.PlanID, &app.Address1, &app.Address2,
		&app.City, &app.State, &app.Postcode, &app.Status, &orderID, &app.CreatedAt, &app.UpdatedAt,
		&app.Plan.ID, &planType, &app.Plan.Name, &app.Plan.MonthlyCost,
		&app.Customer.ID, &app.Customer.FirstName, &app.Customer.LastName,
	)
	if err != nil {
		return nil, err
	}

	if app.Plan.Type, err = models.ParsePlanType(planType); err != nil {
		return nil, fmt.Errorf("application %s: %w", app.ID, err)
	}
	if orderID.Valid {
		app.OrderID = &orderID.String
	}
	return &app, nil
}

func scanApplications(rows *sql.Rows) ([]*models.Application, error) {
	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}
