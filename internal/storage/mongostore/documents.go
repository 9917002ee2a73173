package mongostore

import (
	"time"

	"spendwise/internal/core"
)

type budgetDoc struct {
	Category   string `bson:"category"`
	LimitCents int64  `bson:"limit_cents"`
}

type alertDoc struct {
	ID        string    `bson:"_id"`
	ExpenseID string    `bson:"expense_id"`
	Message   string    `bson:"message"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"created_at"`
}

type userDoc struct {
	ID           string      `bson:"_id"`
	Name         string      `bson:"name"`
	Email        string      `bson:"email"`
	PasswordHash string      `bson:"password_hash"`
	Categories   []string    `bson:"categories"`
	Budgets      []budgetDoc `bson:"budgets"`
	Alerts       []alertDoc  `bson:"alerts"`
	CreatedAt    time.Time   `bson:"created_at"`
	UpdatedAt    time.Time   `bson:"updated_at"`
}

type expenseDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	AmountCents int64     `bson:"amount_cents"`
	Category    string    `bson:"category"`
	Description string    `bson:"description"`
	PaymentMode string    `bson:"payment_mode"`
	Date        time.Time `bson:"date"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func newUserDoc(u *core.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        core.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Categories:   append([]string{}, u.Categories...),
		Budgets:      []budgetDoc{},
		Alerts:       []alertDoc{},
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func (d userDoc) user() *core.User {
	u := &core.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Categories:   append([]string{}, d.Categories...),
		Budgets:      budgets(d.Budgets),
		Alerts:       make([]core.Alert, 0, len(d.Alerts)),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	for _, a := range d.Alerts {
		u.Alerts = append(u.Alerts, a.alert())
	}
	return u
}

func budgets(docs []budgetDoc) []core.Budget {
	out := make([]core.Budget, 0, len(docs))
	for _, b := range docs {
		out = append(out, core.Budget{Category: b.Category, Limit: core.MoneyFromCents(b.LimitCents)})
	}
	return out
}

func newAlertDoc(a core.Alert) alertDoc {
	return alertDoc{ID: a.ID, ExpenseID: a.ExpenseID, Message: a.Message, Read: a.Read, CreatedAt: a.CreatedAt.UTC()}
}

func (d alertDoc) alert() core.Alert {
	return core.Alert{ID: d.ID, ExpenseID: d.ExpenseID, Message: d.Message, Read: d.Read, CreatedAt: d.CreatedAt}
}

func newExpenseDoc(e *core.Expense) expenseDoc {
	return expenseDoc{
		ID:          e.ID,
		UserID:      e.UserID,
		AmountCents: e.Amount.Cents(),
		Category:    e.Category,
		Description: e.Description,
		PaymentMode: string(e.PaymentMode),
		Date:        e.Date.UTC(),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func (d expenseDoc) expense() *core.Expense {
	return &core.Expense{
		ID:          d.ID,
		UserID:      d.UserID,
		Amount:      core.MoneyFromCents(d.AmountCents),
		Category:    d.Category,
		Description: d.Description,
		PaymentMode: core.PaymentMode(d.PaymentMode),
		Date:        d.Date,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
