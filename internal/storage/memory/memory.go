// Package memory is a process-local repository for tests and demos.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

type userRecord struct {
	user     core.User
	expenses map[string]core.Expense
}

type Store struct {
	mu      sync.RWMutex
	users   map[string]*userRecord
	byEmail map[string]string
	closed  bool
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		users:   map[string]*userRecord{},
		byEmail: map[string]string{},
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) record(userID string) (*userRecord, error) {
	rec, ok := s.users[userID]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return rec, nil
}

func copyUser(u core.User) *core.User {
	u.Categories = append([]string{}, u.Categories...)
	u.Budgets = append([]core.Budget{}, u.Budgets...)
	u.Alerts = append([]core.Alert{}, u.Alerts...)
	return &u
}

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := core.NormalizeEmail(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return core.ErrEmailTaken
	}
	stored := copyUser(*u)
	stored.Email = email
	s.users[u.ID] = &userRecord{user: *stored, expenses: map[string]core.Expense{}}
	s.byEmail[email] = u.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	return copyUser(rec.user), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[core.NormalizeEmail(email)]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	u := copyUser(s.users[id].user)
	u.Budgets, u.Alerts = []core.Budget{}, []core.Alert{}
	return u, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(userID)
	if err != nil {
		return nil, err
	}
	return append([]string{}, rec.user.Categories...), nil
}

func (s *Store) AddCategory(_ context.Context, userID, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(userID)
	if err != nil {
		return nil, err
	}
	rec.user.Categories = append(rec.user.Categories, name)
	rec.user.UpdatedAt = time.Now().UTC()
	return append([]string{}, rec.user.Categories...), nil
}

func (s *Store) RemoveCategory(_ context.Context, userID, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(userID)
	if err != nil {
		return nil, err
	}
	rec.user.Categories = slices.DeleteFunc(rec.user.Categories, func(c string) bool { return c == name })
	rec.user.UpdatedAt = time.Now().UTC()
	return append([]string{}, rec.user.Categories...), nil
}

func (s *Store) SetBudget(_ context.Context, userID string, b core.Budget) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(userID)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(rec.user.Budgets, func(x core.Budget) bool { return x.Category == b.Category })
	if i >= 0 {
		rec.user.Budgets[i].Limit = b.Limit
	} else {
		rec.user.Budgets = append(rec.user.Budgets, b)
	}
	rec.user.UpdatedAt = time.Now().UTC()
	return append([]core.Budget{}, rec.user.Budgets...), nil
}

func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return []core.Budget{}, nil
	}
	return append([]core.Budget{}, rec.user.Budgets...), nil
}

func (s *Store) AppendAlert(_ context.Context, userID string, a core.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(userID)
	if err != nil {
		return false, err
	}
	if slices.ContainsFunc(rec.user.Alerts, func(x core.Alert) bool { return x.ExpenseID == a.ExpenseID }) {
		return false, nil
	}
	rec.user.Alerts = append(rec.user.Alerts, a)
	return true, nil
}

func (s *Store) ListAlerts(_ context.Context, userID string) ([]core.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return []core.Alert{}, nil
	}
	return append([]core.Alert{}, rec.user.Alerts...), nil
}

func (s *Store) CreateExpense(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(e.UserID)
	if err != nil {
		return err
	}
	rec.expenses[e.ID] = *e
	return nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (*core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, core.ErrExpenseNotFound
	}
	e, ok := rec.expenses[id]
	if !ok {
		return nil, core.ErrExpenseNotFound
	}
	return &e, nil
}

func (s *Store) UpdateExpense(_ context.Context, userID, id string, p core.ExpensePatch) (*core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, core.ErrExpenseNotFound
	}
	e, ok := rec.expenses[id]
	if !ok {
		return nil, core.ErrExpenseNotFound
	}
	p.Apply(&e)
	e.UpdatedAt = time.Now().UTC()
	rec.expenses[id] = e
	return &e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return core.ErrExpenseNotFound
	}
	if _, ok := rec.expenses[id]; !ok {
		return core.ErrExpenseNotFound
	}
	delete(rec.expenses, id)
	return nil
}

func (s *Store) matching(userID string, f core.ExpenseFilter) []core.Expense {
	rec, ok := s.users[userID]
	if !ok {
		return []core.Expense{}
	}
	out := []core.Expense{}
	for _, e := range rec.expenses {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	core.SortExpenses(out)
	return out
}

func (s *Store) ListExpenses(_ context.Context, userID string, f core.ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.matching(userID, f)
	if f.Offset >= len(items) {
		return []core.Expense{}, nil
	}
	if f.Offset > 0 {
		items = items[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items, nil
}

func (s *Store) CountExpenses(_ context.Context, userID string, f core.ExpenseFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matching(userID, f))), nil
}

func (s *Store) SumByCategory(_ context.Context, userID string) ([]core.CategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := map[string]core.Money{}
	for _, e := range s.matching(userID, core.ExpenseFilter{}) {
		sums[e.Category] = sums[e.Category].Add(e.Amount)
	}
	out := make([]core.CategoryTotal, 0, len(sums))
	for c, total := range sums {
		out = append(out, core.CategoryTotal{Category: c, Total: total})
	}
	core.SortCategoryTotals(out)
	return out, nil
}

func (s *Store) SumByPeriod(_ context.Context, userID string, period core.Period) ([]core.PeriodTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type key struct{ year, month int }
	sums := map[key]core.Money{}
	for _, e := range s.matching(userID, core.ExpenseFilter{}) {
		b := core.BucketOf(e.Date, period)
		k := key{b.Year, b.Month}
		sums[k] = sums[k].Add(e.Amount)
	}
	out := make([]core.PeriodTotal, 0, len(sums))
	for k, total := range sums {
		out = append(out, core.PeriodTotal{Year: k.year, Month: k.month, Total: total})
	}
	core.SortPeriodTotals(out)
	return out, nil
}
