package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
	"spendwise/internal/services"
)

const maxBodyBytes = 1 << 20

var errBadBody = core.Invalid("Invalid request body")

// decodeJSON reads a single JSON object from the body into dst. An empty body
// leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		return errBadBody
	}
	return nil
}

// expenseRequest is the body of create and update calls. Pointers tell
// absent fields apart from empty ones.
type expenseRequest struct {
	Amount      *core.Money `json:"amount"`
	Category    *string     `json:"category"`
	Description *string     `json:"description"`
	PaymentMode *string     `json:"paymentMode"`
	Date        *string     `json:"date"`
}

// toExpense builds the expense to create. Absent required fields stay zero so
// the service reports them together.
func (req expenseRequest) toExpense() (core.Expense, error) {
	var e core.Expense
	if req.Amount != nil {
		e.Amount = *req.Amount
	}
	if req.Category != nil {
		e.Category = strings.TrimSpace(*req.Category)
	}
	if req.Description != nil {
		e.Description = strings.TrimSpace(*req.Description)
	}
	if req.PaymentMode != nil {
		pm, err := core.ParsePaymentMode(*req.PaymentMode)
		if err != nil {
			return e, err
		}
		e.PaymentMode = pm
	}
	if req.Date != nil && strings.TrimSpace(*req.Date) != "" {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			return e, err
		}
		e.Date = d
	}
	return e, nil
}

func (req expenseRequest) toPatch() (core.ExpensePatch, error) {
	p := core.ExpensePatch{Amount: req.Amount}
	if req.Category != nil {
		c := strings.TrimSpace(*req.Category)
		p.Category = &c
	}
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		p.Description = &d
	}
	if req.PaymentMode != nil {
		pm, err := core.ParsePaymentMode(*req.PaymentMode)
		if err != nil {
			return p, err
		}
		p.PaymentMode = &pm
	}
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	return p, nil
}

// budgetRequest keeps limit raw so that only JSON numbers are accepted.
type budgetRequest struct {
	Category string          `json:"category"`
	Limit    json.RawMessage `json:"limit"`
}

func (req budgetRequest) toBudget() (core.Budget, error) {
	raw := strings.TrimSpace(string(req.Limit))
	if strings.TrimSpace(req.Category) == "" || raw == "" || !isJSONNumber(raw) {
		return core.Budget{}, services.ErrMissingBudgetFields
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return core.Budget{}, services.ErrMissingBudgetFields
	}
	if d.IsNegative() {
		return core.Budget{}, core.ErrInvalidLimit
	}
	return core.Budget{Category: strings.TrimSpace(req.Category), Limit: core.NewMoney(d)}, nil
}

func isJSONNumber(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '-' || (c >= '0' && c <= '9')
}

// parseExpenseFilter reads list criteria and pagination from the query.
func parseExpenseFilter(q url.Values) (core.ExpenseFilter, error) {
	var f core.ExpenseFilter

	from, to, err := parseDateRange(q)
	if err != nil {
		return f, err
	}
	f.From, f.To = from, to
	f.Category = strings.TrimSpace(q.Get("category"))
	f.Query = strings.TrimSpace(q.Get("q"))

	if f.MinAmount, err = queryMoney(q, "min"); err != nil {
		return f, err
	}
	if f.MaxAmount, err = queryMoney(q, "max"); err != nil {
		return f, err
	}

	page, err := queryInt(q, "page")
	if err != nil {
		return f, err
	}
	size, err := queryInt(q, "limit")
	if err != nil {
		return f, err
	}
	f.Page(page, size)

	return f, f.Validate()
}

// parseDateRange reads startDate and endDate. A date-only endDate covers the
// whole day.
func parseDateRange(q url.Values) (from, to *time.Time, err error) {
	if v := strings.TrimSpace(q.Get("startDate")); v != "" {
		t, err := core.ParseDate(v)
		if err != nil {
			return nil, nil, core.Invalid("startDate must be an ISO-8601 date")
		}
		from = &t
	}
	if v := strings.TrimSpace(q.Get("endDate")); v != "" {
		t, err := core.ParseDate(v)
		if err != nil {
			return nil, nil, core.Invalid("endDate must be an ISO-8601 date")
		}
		if isDateOnly(v) {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, core.Invalid("endDate must not be before startDate")
	}
	return from, to, nil
}

func isDateOnly(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func queryMoney(q url.Values, key string) (*core.Money, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		return nil, core.Invalid(fmt.Sprintf("%s must be a non-negative number", key))
	}
	return &m, nil
}

func queryInt(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, core.Invalid(fmt.Sprintf("%s must be a positive integer", key))
	}
	return n, nil
}
