package core

import (
	"sort"
	"strings"
	"time"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
	// MaxOffset caps the row offset so large page numbers cannot overflow.
	MaxOffset = 1<<31 - 1
)

// ExpenseFilter narrows a user's expenses. Zero values disable a criterion.
// Bounds are inclusive.
type ExpenseFilter struct {
	From      *time.Time
	To        *time.Time
	Category  string
	MinAmount *Money
	MaxAmount *Money
	Query     string

	// Limit 0 means no limit.
	Limit  int
	Offset int
}

// Matches reports whether e satisfies every criterion except pagination.
func (f ExpenseFilter) Matches(e Expense) bool {
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.MinAmount != nil && e.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && e.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(e.Description), q) &&
			!strings.Contains(strings.ToLower(e.Category), q) {
			return false
		}
	}
	return true
}

// Page sets Limit and Offset from a 1-based page number and a page size,
// applying defaults and the maximum page size.
func (f *ExpenseFilter) Page(page, size int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	f.Limit = size
	if page-1 > MaxOffset/size {
		f.Offset = MaxOffset
		return
	}
	f.Offset = (page - 1) * size
}

// Validate checks that the ranges are well formed.
func (f ExpenseFilter) Validate() error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return Invalid("endDate must not be before startDate")
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MaxAmount.LessThan(*f.MinAmount) {
		return Invalid("max must not be less than min")
	}
	return nil
}

// SortExpenses orders by date descending, newest record first on ties.
func SortExpenses(items []Expense) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
}
