package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/validation"
	"nbn-order-workers/internal/models"
	"nbn-order-workers/internal/store"
)

var listQuerySchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"plan_type": {"type": "string", "enum": ["nbn", "opticomm", "mobile"]},
		"page": {"type": "string", "pattern": "^[1-9][0-9]{0,8}$"}
	}
}`)

var fieldMessages = map[string]string{
	"plan_type": "The selected plan type is invalid.",
	"page":      "The page must be a positive integer.",
}

type applicationItem struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customer_name"`
	Address         string          `json:"address"`
	PlanType        models.PlanType `json:"plan_type"`
	PlanName        string          `json:"plan_name"`
	State           string          `json:"state"`
	PlanMonthlyCost string          `json:"plan_monthly_cost"`
	OrderID         *string         `json:"order_id,omitempty"`
}

type pageLinks struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type pageMeta struct {
	CurrentPage int `json:"current_page"`
	From        int `json:"from"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	To          int `json:"to"`
	Total       int `json:"total"`
}

type listResponse struct {
	Data  []applicationItem `json:"data"`
	Links pageLinks         `json:"links"`
	Meta  pageMeta          `json:"meta"`
}

type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func (s *Server) listApplications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// validated before anything reaches the store; blank values mean no filter
	params := map[string]interface{}{}
	for _, key := range []string{"plan_type", "page"} {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			params[key] = v
		}
	}
	if errs := validateQuery(params); len(errs) > 0 {
		if _, bad := errs["plan_type"]; bad {
			s.logger.Debug("Listing query rejected", map[string]interface{}{
				"errorCode": string(errors.ErrCodeInvalidPlanType),
				"error":     errors.NewInvalidPlanTypeError(query.Get("plan_type")).Error(),
			})
		}
		first := ""
		for _, key := range []string{"plan_type", "page"} {
			if msgs, ok := errs[key]; ok {
				first = msgs[0]
				break
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Message: first, Errors: errs})
		return
	}

	filter := store.ListFilter{Page: 1, PerPage: s.pageSize}
	if raw, ok := params["plan_type"].(string); ok {
		planType := models.PlanType(raw)
		filter.PlanType = &planType
	}
	if raw, ok := params["page"].(string); ok {
		filter.Page, _ = strconv.Atoi(raw)
	}

	page, err := s.lister.ListPage(r.Context(), filter)
	if err != nil {
		s.logger.Error("application listing failed", map[string]interface{}{
			"error":     err.Error(),
			"errorCode": string(errors.ErrCodeSelectionFailed),
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server Error"})
		return
	}

	resp := listResponse{
		Data:  make([]applicationItem, 0, len(page.Items)),
		Links: s.links(r, page),
		Meta: pageMeta{
			CurrentPage: page.Page,
			From:        page.From(),
			LastPage:    page.LastPage(),
			PerPage:     page.PerPage,
			To:          page.To(),
			Total:       page.Total,
		},
	}
	for _, app := range page.Items {
		resp.Data = append(resp.Data, toItem(app))
	}
	writeJSON(w, http.StatusOK, resp)
}

func validateQuery(params map[string]interface{}) map[string][]string {
	result, err := listQuerySchema.ValidateInput(params)
	if err != nil || result.Valid {
		return nil
	}
	errs := map[string][]string{}
	for _, ve := range result.Errors {
		msg, ok := fieldMessages[ve.Field]
		if !ok {
			msg = ve.Message
		}
		errs[ve.Field] = append(errs[ve.Field], msg)
	}
	return errs
}

func toItem(app *models.Application) applicationItem {
	item := applicationItem{
		ID:              app.ID,
		CustomerName:    app.Customer.FullName(),
		Address:         app.FullAddress(),
		PlanType:        app.Plan.Type,
		PlanName:        app.Plan.Name,
		State:           app.State,
		PlanMonthlyCost: FormatCents(app.Plan.MonthlyCost),
	}
	if app.Status == models.StatusComplete && app.OrderID != nil {
		orderID := *app.OrderID
		item.OrderID = &orderID
	}
	return item
}

func (s *Server) links(r *http.Request, page *store.Page) pageLinks {
	build := func(n int) string {
		q := url.Values{}
		if pt := strings.TrimSpace(r.URL.Query().Get("plan_type")); pt != "" {
			q.Set("plan_type", pt)
		}
		q.Set("page", strconv.Itoa(n))
		return s.baseURL + r.URL.Path + "?" + q.Encode()
	}

	links := pageLinks{First: build(1), Last: build(page.LastPage())}
	if page.Page > 1 {
		prev := build(page.Page - 1)
		links.Prev = &prev
	}
	if page.Page < page.LastPage() {
		next := build(page.Page + 1)
		links.Next = &next
	}
	return links
}

// FormatCents renders cents as dollars with thousands separators, e.g. $1,234.50.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	dollars := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	for i, c := range dollars {
		if i > 0 && (len(dollars)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}

	frac := strconv.FormatInt(cents%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + "$" + b.String() + "." + frac
}
