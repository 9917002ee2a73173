package services

import (
	"context"
	"strings"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

var (
	ErrMissingBudgetFields = core.Invalid("Missing fields")
	ErrEmptyCategoryName   = core.Invalid("Category name is required")
)

type BudgetService struct {
	budgets storage.BudgetRepository
}

func NewBudgetService(budgets storage.BudgetRepository) *BudgetService {
	return &BudgetService{budgets: budgets}
}

// Set replaces the limit for b.Category or appends a new budget, returning
// every budget of the user in insertion order.
func (s *BudgetService) Set(ctx context.Context, userID string, b core.Budget) ([]core.Budget, error) {
	if strings.TrimSpace(b.Category) == "" {
		return nil, ErrMissingBudgetFields
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return s.budgets.SetBudget(ctx, userID, b)
}

func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.budgets.ListBudgets(ctx, userID)
}

// Alerts returns the user's alerts, oldest first.
func (s *BudgetService) Alerts(ctx context.Context, userID string) ([]core.Alert, error) {
	return s.budgets.ListAlerts(ctx, userID)
}

type CategoryService struct {
	categories storage.CategoryRepository
}

func NewCategoryService(categories storage.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]string, error) {
	return s.categories.ListCategories(ctx, userID)
}

// Add appends name without de-duplication.
func (s *CategoryService) Add(ctx context.Context, userID, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyCategoryName
	}
	return s.categories.AddCategory(ctx, userID, name)
}

// Remove deletes every category exactly equal to name.
func (s *CategoryService) Remove(ctx context.Context, userID, name string) ([]string, error) {
	return s.categories.RemoveCategory(ctx, userID, name)
}
