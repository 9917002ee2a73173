package services

import (
	"context"

	"spendwise/internal/amqp"
	applog "spendwise/internal/log"
)

// Publisher is the event sink used by the services. *amqp.Client satisfies it.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, e *amqp.ExpenseEvent) error
	PublishBudgetAlert(ctx context.Context, a *amqp.BudgetAlert) error
}

// events wraps an optional Publisher. Failures are logged and never returned,
// since the store is the source of truth.
type events struct {
	pub Publisher
}

func (e events) expense(ctx context.Context, eventType, id, userID string) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(eventType, id, userID)); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentAMQP).ErrorContext(ctx, "Failed to publish expense event",
			"type", eventType,
			applog.FieldExpense, id,
			applog.FieldError, err.Error())
	}
}

func (e events) alert(ctx context.Context, a *amqp.BudgetAlert) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishBudgetAlert(ctx, a); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentAMQP).ErrorContext(ctx, "Failed to publish budget alert",
			applog.FieldExpense, a.Expense,
			applog.FieldError, err.Error())
	}
}
