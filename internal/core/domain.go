package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	PaymentCash   PaymentMode = "cash"
	PaymentCard   PaymentMode = "card"
	PaymentOnline PaymentMode = "online"
	PaymentOther  PaymentMode = "other"
)

type (
	PaymentMode string

	User struct {
		ID           string    `json:"_id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Categories   []string  `json:"categories"`
		Budgets      []Budget  `json:"budgets"`
		Alerts       []Alert   `json:"alerts"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	Expense struct {
		ID          string      `json:"_id"`
		UserID      string      `json:"user"`
		Amount      Money       `json:"amount"`
		Category    string      `json:"category"`
		Description string      `json:"description"`
		PaymentMode PaymentMode `json:"paymentMode"`
		Date        time.Time   `json:"date"`
		CreatedAt   time.Time   `json:"createdAt"`
		UpdatedAt   time.Time   `json:"updatedAt"`
	}

	// ExpensePatch lists the fields of an update; nil fields are left unchanged.
	ExpensePatch struct {
		Amount      *Money
		Category    *string
		Description *string
		PaymentMode *PaymentMode
		Date        *time.Time
	}

	Budget struct {
		Category string `json:"category"`
		Limit    Money  `json:"limit"`
	}

	Alert struct {
		ID        string    `json:"_id"`
		ExpenseID string    `json:"expense,omitempty"`
		Message   string    `json:"message"`
		CreatedAt time.Time `json:"createdAt"`
		Read      bool      `json:"read"`
	}
)

// ParsePaymentMode maps an input string to a PaymentMode. Empty means other.
func ParsePaymentMode(s string) (PaymentMode, error) {
	switch pm := PaymentMode(strings.ToLower(strings.TrimSpace(s))); pm {
	case "":
		return PaymentOther, nil
	case PaymentCash, PaymentCard, PaymentOnline, PaymentOther:
		return pm, nil
	default:
		return "", ErrInvalidPaymentMode
	}
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// The result is always in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if _, err := ParsePaymentMode(string(e.PaymentMode)); err != nil {
		return err
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil && p.PaymentMode == nil && p.Date == nil
}

// Apply copies the set fields of p onto e.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.PaymentMode != nil {
		e.PaymentMode = *p.PaymentMode
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Limit.Decimal().IsNegative() {
		return ErrInvalidLimit
	}
	if b.Limit.GreaterThan(MaxMoney) {
		return ErrAmountTooLarge
	}
	return nil
}

// Exceeded reports whether a single amount is over the budget limit.
func (b Budget) Exceeded(amount Money) bool {
	return amount.GreaterThan(b.Limit)
}

// AlertMessage formats the notice stored when an expense exceeds a budget.
func AlertMessage(amount Money, category string, limit Money) string {
	return fmt.Sprintf("Expense %s in %s exceeded your budget of %s", amount, category, limit)
}

// FindBudget returns the first budget whose category equals category.
func FindBudget(budgets []Budget, category string) (Budget, bool) {
	for _, b := range budgets {
		if b.Category == category {
			return b, true
		}
	}
	return Budget{}, false
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
