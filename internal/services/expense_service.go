package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/cache"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrMissingFields = core.Invalid("Missing required fields")

// CreatedExpense is the result of Create. Warning is set when the expense
// exceeded its category budget.
type CreatedExpense struct {
	core.Expense
	Warning string `json:"warning,omitempty"`
}

// ExpensePage is one page of a filtered listing plus the total match count.
type ExpensePage struct {
	Data  []core.Expense `json:"data"`
	Total int64          `json:"total"`
}

// ExpenseService orchestrates expense operations across the store, the
// budget rule, the summary cache and the event publisher.
type ExpenseService struct {
	expenses  storage.ExpenseRepository
	budgets   storage.BudgetRepository
	summaries cache.Cache[*core.Summary]
	events    events
	now       func() time.Time

	// genMu orders summary cache fills against invalidation. generations
	// is bumped per user on every write.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewExpenseService wires the service. summaries and pub may be nil.
func NewExpenseService(expenses storage.ExpenseRepository, budgets storage.BudgetRepository, summaries cache.Cache[*core.Summary], pub Publisher) *ExpenseService {
	return &ExpenseService{
		expenses:  expenses,
		budgets:   budgets,
		summaries: summaries,
		events:      events{pub: pub},
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

// Create persists e for userID and applies the budget rule: when a budget
// exists for the exact category and the amount alone is over its limit, an
// alert is recorded and returned as the warning.
func (s *ExpenseService) Create(ctx context.Context, userID string, e core.Expense) (*CreatedExpense, error) {
	if e.Amount.Cents() == 0 || strings.TrimSpace(e.Category) == "" || e.Date.IsZero() {
		return nil, ErrMissingFields
	}
	if e.PaymentMode == "" {
		e.PaymentMode = core.PaymentOther
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e.ID = uuid.NewString()
	e.UserID = userID
	e.CreatedAt, e.UpdatedAt = now, now

	if err := s.expenses.CreateExpense(ctx, &e); err != nil {
		return nil, fmt.Errorf("save expense: %w", err)
	}
	s.invalidate(userID)
	s.events.expense(ctx, amqp.KeyExpenseCreated, e.ID, userID)

	out := &CreatedExpense{Expense: e}
	warning, err := s.checkBudget(ctx, userID, e)
	if err != nil {
		return nil, err
	}
	out.Warning = warning
	return out, nil
}

func (s *ExpenseService) checkBudget(ctx context.Context, userID string, e core.Expense) (string, error) {
	budgets, err := s.budgets.ListBudgets(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load budgets: %w", err)
	}
	b, ok := core.FindBudget(budgets, e.Category)
	if !ok || !b.Exceeded(e.Amount) {
		return "", nil
	}

	msg := core.AlertMessage(e.Amount, e.Category, b.Limit)
	added, err := s.budgets.AppendAlert(ctx, userID, core.Alert{
		ID:        uuid.NewString(),
		ExpenseID: e.ID,
		Message:   msg,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("record alert: %w", err)
	}
	if added {
		applog.FromContext(ctx).InfoContext(ctx, "Budget exceeded",
			applog.FieldUser, userID,
			applog.FieldExpense, e.ID,
			applog.FieldCategory, e.Category,
			applog.FieldAmount, e.Amount.String(),
			"limit", b.Limit.String())
		s.events.alert(ctx, amqp.NewBudgetAlert(userID, e, b, msg))
	}
	return msg, nil
}

// Update applies the set fields of p to a caller-owned expense. Budgets are
// not re-evaluated.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, p core.ExpensePatch) (*core.Expense, error) {
	if err := validatePatch(p); err != nil {
		return nil, err
	}
	e, err := s.expenses.UpdateExpense(ctx, userID, id, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(userID)
	s.events.expense(ctx, amqp.KeyExpenseUpdated, id, userID)
	return e, nil
}

// validatePatch applies the create rules to the fields present in p.
func validatePatch(p core.ExpensePatch) error {
	probe := core.Expense{
		Amount:      core.MoneyFromCents(1),
		Category:    "-",
		PaymentMode: core.PaymentOther,
		Date:        time.Unix(0, 0),
	}
	p.Apply(&probe)
	return probe.Validate()
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	if err := s.expenses.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	s.events.expense(ctx, amqp.KeyExpenseDeleted, id, userID)
	return nil
}

// List fetches the requested page and the total match count concurrently.
func (s *ExpenseService) List(ctx context.Context, userID string, f core.ExpenseFilter) (*ExpensePage, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var page ExpensePage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.expenses.ListExpenses(gctx, userID, f)
		page.Data = items
		return err
	})
	g.Go(func() error {
		n, err := s.expenses.CountExpenses(gctx, userID, f)
		page.Total = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if page.Data == nil {
		page.Data = []core.Expense{}
	}
	return &page, nil
}

// Summarize returns totals by category and by period, served from the cache
// when possible.
func (s *ExpenseService) Summarize(ctx context.Context, userID string, period core.Period) (*core.Summary, error) {
	key := summaryKey(userID, period)
	if s.summaries != nil {
		if cached, ok := s.summaries.Get(key); ok {
			return cached, nil
		}
	}
	gen := s.generation(userID)

	sum := &core.Summary{Period: period}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := s.expenses.SumByCategory(gctx, userID)
		sum.ByCategory = totals
		return err
	})
	g.Go(func() error {
		totals, err := s.expenses.SumByPeriod(gctx, userID, period)
		sum.ByPeriod = totals
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("summarize expenses: %w", err)
	}
	if sum.ByCategory == nil {
		sum.ByCategory = []core.CategoryTotal{}
	}
	if sum.ByPeriod == nil {
		sum.ByPeriod = []core.PeriodTotal{}
	}

	s.fill(userID, gen, key, sum)
	return sum, nil
}

func (s *ExpenseService) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[userID]
}

// fill caches sum unless a write for userID happened since gen was read.
func (s *ExpenseService) fill(userID string, gen uint64, key string, sum *core.Summary) {
	if s.summaries == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[userID] != gen {
		return
	}
	s.summaries.Set(key, sum)
}

func summaryKey(userID string, period core.Period) string {
	return userID + ":" + string(period)
}

func (s *ExpenseService) invalidate(userID string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[userID]++
	if s.summaries != nil {
		s.summaries.DeletePrefix(userID + ":")
	}
}
