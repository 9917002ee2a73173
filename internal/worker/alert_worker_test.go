package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/storage/memory"
)

type recordingNotifier struct {
	got []Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, n)
	return nil
}

func seedUser(t *testing.T, store *memory.Store) *core.User {
	t.Helper()
	u := &core.User{ID: "u1", Name: "Ann", Email: "ann@example.com", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func alertFor(userID string) *amqp.BudgetAlert {
	return &amqp.BudgetAlert{
		User:     userID,
		Expense:  "e1",
		Category: "Food",
		Amount:   core.MoneyFromCents(15000),
		Limit:    core.MoneyFromCents(10000),
		Message:  "Expense 150 in Food exceeded your budget of 100",
	}
}

func TestHandleBudgetAlertDelivers(t *testing.T) {
	store := memory.New()
	seedUser(t, store)
	n := &recordingNotifier{}
	w := NewAlertWorker(store, n)

	require.NoError(t, w.HandleBudgetAlert(context.Background(), alertFor("u1")))
	require.Len(t, n.got, 1)
	assert.Equal(t, "ann@example.com", n.got[0].Email)
	assert.Equal(t, "Food", n.got[0].Category)
	assert.Equal(t, int64(15000), n.got[0].Amount.Cents())

	delivered, dropped := w.Stats()
	assert.Equal(t, int64(1), delivered)
	assert.Zero(t, dropped)
}

func TestHandleBudgetAlertDropsUnknownUser(t *testing.T) {
	n := &recordingNotifier{}
	w := NewAlertWorker(memory.New(), n)

	require.NoError(t, w.HandleBudgetAlert(context.Background(), alertFor("ghost")))
	assert.Empty(t, n.got)
	_, dropped := w.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestHandleBudgetAlertReturnsNotifierError(t *testing.T) {
	store := memory.New()
	seedUser(t, store)
	w := NewAlertWorker(store, &recordingNotifier{err: errors.New("smtp down")})

	err := w.HandleBudgetAlert(context.Background(), alertFor("u1"))
	assert.ErrorContains(t, err, "smtp down")
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), Notification{UserID: "u1", Amount: core.MoneyFromCents(1)}))
}
