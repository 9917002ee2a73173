package storage

import (
	"context"

	"spendwise/internal/core"
)

// Ports implemented by every storage backend.
type (
	// UserRepository stores credentials and profile data.
	UserRepository interface {
		// CreateUser inserts u together with its initial categories.
		// Returns core.ErrEmailTaken when the email is already registered.
		CreateUser(ctx context.Context, u *core.User) error
		// GetUserByID loads a user with categories, budgets and alerts.
		GetUserByID(ctx context.Context, id string) (*core.User, error)
		// GetUserByEmail looks a user up by normalized email, including the
		// password hash.
		GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	}

	// CategoryRepository manages the per-user list of category labels.
	CategoryRepository interface {
		ListCategories(ctx context.Context, userID string) ([]string, error)
		AddCategory(ctx context.Context, userID, name string) ([]string, error)
		// RemoveCategory deletes every entry equal to name.
		RemoveCategory(ctx context.Context, userID, name string) ([]string, error)
	}

	// BudgetRepository manages budgets and the alerts they produce.
	BudgetRepository interface {
		// SetBudget replaces the limit of an existing (user, category)
		// budget or appends a new one, and returns all budgets in insertion
		// order.
		SetBudget(ctx context.Context, userID string, b core.Budget) ([]core.Budget, error)
		ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
		// AppendAlert records a for the user. It reports false when an alert
		// for the same expense already exists.
		AppendAlert(ctx context.Context, userID string, a core.Alert) (bool, error)
		ListAlerts(ctx context.Context, userID string) ([]core.Alert, error)
	}

	// ExpenseRepository stores expenses scoped to their owner. Every lookup
	// by id also matches the owner, so foreign ids behave as missing.
	ExpenseRepository interface {
		CreateExpense(ctx context.Context, e *core.Expense) error
		GetExpense(ctx context.Context, userID, id string) (*core.Expense, error)
		UpdateExpense(ctx context.Context, userID, id string, p core.ExpensePatch) (*core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id string) error
		// ListExpenses returns matches sorted by date descending.
		ListExpenses(ctx context.Context, userID string, f core.ExpenseFilter) ([]core.Expense, error)
		// CountExpenses ignores the pagination fields of f.
		CountExpenses(ctx context.Context, userID string, f core.ExpenseFilter) (int64, error)
		// SumByCategory returns totals sorted by total descending.
		SumByCategory(ctx context.Context, userID string) ([]core.CategoryTotal, error)
		// SumByPeriod returns totals per bucket in chronological order.
		SumByPeriod(ctx context.Context, userID string, period core.Period) ([]core.PeriodTotal, error)
	}

	// Repository is the full storage surface used by the services.
	Repository interface {
		UserRepository
		CategoryRepository
		BudgetRepository
		ExpenseRepository
		Ping(ctx context.Context) error
		Close() error
	}
)
