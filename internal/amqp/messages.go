package amqp

import (
	"encoding/json"
	"time"

	"spendwise/internal/core"
)

// Routing keys on the direct exchange.
const (
	KeyExpenseCreated = "expense.created"
	KeyExpenseUpdated = "expense.updated"
	KeyExpenseDeleted = "expense.deleted"
	KeyBudgetAlert    = "budget.alert"
)

// ExpenseEvent announces a change to one expense. Consumers fetch the
// expense themselves if they need more than the id.
type ExpenseEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(eventType, id, user string) *ExpenseEvent {
	return &ExpenseEvent{Type: eventType, ID: id, User: user, Timestamp: time.Now().UTC()}
}

// BudgetAlert is published when a single expense exceeds its category budget.
type BudgetAlert struct {
	User      string     `json:"user"`
	Expense   string     `json:"expense"`
	Category  string     `json:"category"`
	Amount    core.Money `json:"amount"`
	Limit     core.Money `json:"limit"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewBudgetAlert(user string, e core.Expense, b core.Budget, message string) *BudgetAlert {
	return &BudgetAlert{
		User:      user,
		Expense:   e.ID,
		Category:  e.Category,
		Amount:    e.Amount,
		Limit:     b.Limit,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

func (m *BudgetAlert) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertFromJSON(data []byte) (*BudgetAlert, error) {
	var msg BudgetAlert
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
