// Package worker delivers budget alerts consumed from the message broker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// Notification is what a Notifier delivers for one alert.
type Notification struct {
	UserID   string
	Name     string
	Email    string
	Message  string
	Category string
	Amount   core.Money
	Limit    core.Money
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Budget alert notification",
		"user", n.UserID,
		"email", n.Email,
		"category", n.Category,
		"amount", n.Amount.String(),
		"limit", n.Limit.String(),
		"message", n.Message)
	return nil
}

// AlertWorker resolves the recipient of each budget alert and hands it to a
// Notifier.
type AlertWorker struct {
	users     storage.UserRepository
	notifier  Notifier
	delivered atomic.Int64
	dropped   atomic.Int64
}

func NewAlertWorker(users storage.UserRepository, notifier Notifier) *AlertWorker {
	return &AlertWorker{users: users, notifier: notifier}
}

// HandleBudgetAlert is the consumer callback. Alerts for users that no longer
// exist are dropped without error so that they are acknowledged.
func (w *AlertWorker) HandleBudgetAlert(ctx context.Context, a *amqp.BudgetAlert) error {
	slog.DebugContext(ctx, "Processing budget alert",
		"user", a.User,
		"expense", a.Expense)

	u, err := w.users.GetUserByID(ctx, a.User)
	if errors.Is(err, core.ErrNotFound) {
		w.dropped.Add(1)
		slog.WarnContext(ctx, "Dropping alert for unknown user", "user", a.User, "expense", a.Expense)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load alert recipient: %w", err)
	}

	n := Notification{
		UserID:   u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Message:  a.Message,
		Category: a.Category,
		Amount:   a.Amount,
		Limit:    a.Limit,
	}
	if err := w.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("notify %s: %w", u.ID, err)
	}
	w.delivered.Add(1)
	return nil
}

// Stats returns how many alerts were delivered and dropped.
func (w *AlertWorker) Stats() (delivered, dropped int64) {
	return w.delivered.Load(), w.dropped.Load()
}
