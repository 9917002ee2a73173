package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/auth"
	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	events  []string
	alerts  []*amqp.BudgetAlert
	failing bool
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, e *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return errors.New("broker down")
	}
	p.events = append(p.events, e.Type)
	return nil
}

func (p *recordingPublisher) PublishBudgetAlert(_ context.Context, a *amqp.BudgetAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return errors.New("broker down")
	}
	p.alerts = append(p.alerts, a)
	return nil
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	auth     *AuthService
	expenses *ExpenseService
	budgets  *BudgetService
	cats     *CategoryService
	export   *ExportService
	pub      *recordingPublisher
	cache    *cache.LRUCache[*core.Summary]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	summaries := cache.NewLRUCache[*core.Summary](100, time.Minute)
	return &fixture{
		ctx:      context.Background(),
		store:    store,
		auth:     NewAuthService(store, auth.NewHasher(4), auth.NewTokens("test-secret-0123456789", "spendwise", time.Hour)),
		expenses: NewExpenseService(store, store, summaries, pub),
		budgets:  NewBudgetService(store),
		cats:     NewCategoryService(store),
		export:   NewExportService(store),
		pub:      pub,
		cache:    summaries,
	}
}

func (f *fixture) user(t *testing.T, email string) *core.User {
	t.Helper()
	s, err := f.auth.Signup(f.ctx, SignupInput{Name: "Test", Email: email, Password: "secret123"})
	require.NoError(t, err)
	return s.User
}

func date(s string) time.Time {
	t, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func expense(amount int64, category, day string) core.Expense {
	return core.Expense{Amount: core.MoneyFromCents(amount), Category: category, Date: date(day)}
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]SignupInput{
		"short name":     {Name: "A", Email: "a@example.com", Password: "secret123"},
		"bad email":      {Name: "Al", Email: "not-an-email", Password: "secret123"},
		"display name":   {Name: "Al", Email: "Al <al@example.com>", Password: "secret123"},
		"short password": {Name: "Al", Email: "al@example.com", Password: "12345"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.Signup(f.ctx, in)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestSignupLoginAuthenticate(t *testing.T) {
	f := newFixture(t)

	s, err := f.auth.Signup(f.ctx, SignupInput{Name: " Alice ", Email: "Alice@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "Alice", s.User.Name)
	assert.Equal(t, "alice@example.com", s.User.Email)
	assert.Empty(t, s.User.PasswordHash)

	_, err = f.auth.Signup(f.ctx, SignupInput{Name: "Other", Email: "ALICE@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, "Email already registered", core.Message(err, ""))

	logged, err := f.auth.Login(f.ctx, "alice@EXAMPLE.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, logged.User.ID)
	assert.Empty(t, logged.User.PasswordHash)

	for _, creds := range [][2]string{{"alice@example.com", "wrong-pass"}, {"nobody@example.com", "secret123"}} {
		_, err = f.auth.Login(f.ctx, creds[0], creds[1])
		assert.ErrorIs(t, err, core.ErrUnauthorized)
		assert.Equal(t, "Invalid credentials", core.Message(err, ""))
	}

	u, err := f.auth.Authenticate(f.ctx, logged.Token)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, u.ID)
	assert.Empty(t, u.PasswordHash)

	ghost, err := f.auth.tokens.Issue("ghost")
	require.NoError(t, err)
	_, err = f.auth.Authenticate(f.ctx, ghost)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, "User not found", core.Message(err, ""))
}

func TestCreateRequiresFields(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "fields@example.com")

	for name, e := range map[string]core.Expense{
		"no amount":   {Category: "Food", Date: date("2024-03-01")},
		"no category": {Amount: core.MoneyFromCents(100), Date: date("2024-03-01")},
		"no date":     {Amount: core.MoneyFromCents(100), Category: "Food"},
	} {
		_, err := f.expenses.Create(f.ctx, u.ID, e)
		assert.ErrorIs(t, err, core.ErrValidation, name)
		assert.Equal(t, "Missing required fields", core.Message(err, ""), name)
	}

	bad := expense(100, "Food", "2024-03-01")
	bad.PaymentMode = "barter"
	_, err := f.expenses.Create(f.ctx, u.ID, bad)
	assert.ErrorIs(t, err, core.ErrValidation)

	created, err := f.expenses.Create(f.ctx, u.ID, expense(100, "Food", "2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, core.PaymentOther, created.PaymentMode)
	assert.Equal(t, u.ID, created.UserID)
	assert.NotEmpty(t, created.ID)
}

func TestBudgetAlertRule(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "budget@example.com")
	_, err := f.budgets.Set(f.ctx, u.ID, core.Budget{Category: "Food", Limit: core.MoneyFromCents(10000)})
	require.NoError(t, err)

	over, err := f.expenses.Create(f.ctx, u.ID, expense(15000, "Food", "2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, "Expense 150 in Food exceeded your budget of 100", over.Warning)

	atLimit, err := f.expenses.Create(f.ctx, u.ID, expense(10000, "Food", "2024-03-02"))
	require.NoError(t, err)
	assert.Empty(t, atLimit.Warning)

	otherCase, err := f.expenses.Create(f.ctx, u.ID, expense(99900, "food", "2024-03-02"))
	require.NoError(t, err)
	assert.Empty(t, otherCase.Warning, "category match is case-sensitive")

	noBudget, err := f.expenses.Create(f.ctx, u.ID, expense(99900, "Travel", "2024-03-02"))
	require.NoError(t, err)
	assert.Empty(t, noBudget.Warning)

	alerts, err := f.budgets.Alerts(f.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, over.Warning, alerts[0].Message)
	assert.Equal(t, over.ID, alerts[0].ExpenseID)
	assert.False(t, alerts[0].Read)

	require.Len(t, f.pub.alerts, 1)
	assert.Equal(t, over.ID, f.pub.alerts[0].Expense)
	assert.Len(t, f.pub.events, 4)

	// Raising the amount of an existing expense does not produce an alert.
	amt := core.MoneyFromCents(50000)
	_, err = f.expenses.Update(f.ctx, u.ID, atLimit.ID, core.ExpensePatch{Amount: &amt})
	require.NoError(t, err)
	alerts, err = f.budgets.Alerts(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestPublisherFailureDoesNotFailRequests(t *testing.T) {
	f := newFixture(t)
	f.pub.failing = true
	u := f.user(t, "broker@example.com")
	_, err := f.budgets.Set(f.ctx, u.ID, core.Budget{Category: "Food", Limit: core.MoneyFromCents(100)})
	require.NoError(t, err)

	created, err := f.expenses.Create(f.ctx, u.ID, expense(500, "Food", "2024-03-01"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.Warning)
	require.NoError(t, f.expenses.Delete(f.ctx, u.ID, created.ID))
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")

	e, err := f.expenses.Create(f.ctx, alice.ID, expense(1000, "Food", "2024-03-01"))
	require.NoError(t, err)

	desc := "hijacked"
	_, err = f.expenses.Update(f.ctx, bob.ID, e.ID, core.ExpensePatch{Description: &desc})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "Expense not found", core.Message(err, ""))
	assert.ErrorIs(t, f.expenses.Delete(f.ctx, bob.ID, e.ID), core.ErrNotFound)

	empty := "  "
	_, err = f.expenses.Update(f.ctx, alice.ID, e.ID, core.ExpensePatch{Category: &empty})
	assert.ErrorIs(t, err, core.ErrValidation)

	updated, err := f.expenses.Update(f.ctx, alice.ID, e.ID, core.ExpensePatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "hijacked", updated.Description)
	assert.Equal(t, "Food", updated.Category)

	require.NoError(t, f.expenses.Delete(f.ctx, alice.ID, e.ID))
	assert.ErrorIs(t, f.expenses.Delete(f.ctx, alice.ID, e.ID), core.ErrNotFound)
}

func TestListPaging(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "list@example.com")
	for i := 1; i <= 30; i++ {
		day := time.Date(2024, 1, i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		_, err := f.expenses.Create(f.ctx, u.ID, expense(int64(i*100), "Food", day))
		require.NoError(t, err)
	}

	var filter core.ExpenseFilter
	filter.Page(2, 0)
	page, err := f.expenses.List(f.ctx, u.ID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(30), page.Total)
	require.Len(t, page.Data, 5)
	assert.Equal(t, int64(500), page.Data[0].Amount.Cents())

	from, to := date("2024-01-10"), date("2024-01-01")
	_, err = f.expenses.List(f.ctx, u.ID, core.ExpenseFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, core.ErrValidation)

	other := f.user(t, "other@example.com")
	page, err = f.expenses.List(f.ctx, other.ID, core.ExpenseFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.NotNil(t, page.Data)
}

func TestSummarizeIsCachedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "sum@example.com")
	_, err := f.expenses.Create(f.ctx, u.ID, expense(1000, "Food", "2024-03-01"))
	require.NoError(t, err)
	_, err = f.expenses.Create(f.ctx, u.ID, expense(3000, "Travel", "2024-04-01"))
	require.NoError(t, err)

	sum, err := f.expenses.Summarize(f.ctx, u.ID, core.PeriodMonth)
	require.NoError(t, err)
	require.Len(t, sum.ByCategory, 2)
	assert.Equal(t, "Travel", sum.ByCategory[0].Category)
	require.Len(t, sum.ByPeriod, 2)
	assert.Equal(t, 3, sum.ByPeriod[0].Month)
	assert.Equal(t, 1, f.cache.Size())

	again, err := f.expenses.Summarize(f.ctx, u.ID, core.PeriodMonth)
	require.NoError(t, err)
	assert.Same(t, sum, again)

	_, err = f.expenses.Create(f.ctx, u.ID, expense(5000, "Food", "2024-03-02"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.Size())

	fresh, err := f.expenses.Summarize(f.ctx, u.ID, core.PeriodYear)
	require.NoError(t, err)
	assert.Equal(t, "Food", fresh.ByCategory[0].Category)
	assert.Equal(t, int64(6000), fresh.ByCategory[0].Total.Cents())
	require.Len(t, fresh.ByPeriod, 1)
	assert.Equal(t, 2024, fresh.ByPeriod[0].Year)
}

func TestBudgetsAndCategories(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cats@example.com")

	_, err := f.budgets.Set(f.ctx, u.ID, core.Budget{Category: " ", Limit: core.MoneyFromCents(1)})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.budgets.Set(f.ctx, u.ID, core.Budget{Category: "Food", Limit: core.MoneyFromCents(100)})
	require.NoError(t, err)
	list, err := f.budgets.Set(f.ctx, u.ID, core.Budget{Category: "Food", Limit: core.MoneyFromCents(0)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(0), list[0].Limit.Cents())

	_, err = f.cats.Add(f.ctx, u.ID, "   ")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.cats.Add(f.ctx, u.ID, "Food")
	require.NoError(t, err)
	cats, err := f.cats.Add(f.ctx, u.ID, "Food")
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Food"}, cats)

	cats, err = f.cats.Remove(f.ctx, u.ID, "Food")
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "csv@example.com")

	tricky := expense(1250, "Food", "2024-03-02T10:30:00Z")
	tricky.Description = "Lunch, \"team\"\nsecond line"
	tricky.PaymentMode = core.PaymentCard
	_, err := f.expenses.Create(f.ctx, u.ID, tricky)
	require.NoError(t, err)
	_, err = f.expenses.Create(f.ctx, u.ID, expense(15000, "Rent", "2024-03-01"))
	require.NoError(t, err)
	_, err = f.expenses.Create(f.ctx, u.ID, expense(100, "Old", "2023-01-01"))
	require.NoError(t, err)

	from := date("2024-01-01")
	var buf bytes.Buffer
	require.NoError(t, f.export.WriteCSV(f.ctx, &buf, u.ID, &from, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"date", "amount", "category", "description", "paymentMode"}, records[0])
	assert.Equal(t, []string{"2024-03-02T10:30:00.000Z", "12.5", "Food", "Lunch, \"team\"\nsecond line", "card"}, records[1])
	assert.Equal(t, []string{"2024-03-01T00:00:00.000Z", "150", "Rent", "", "other"}, records[2])

	f.export.now = func() time.Time { return time.UnixMilli(1700000000123) }
	assert.Equal(t, "expenses_1700000000123.csv", f.export.Filename())
	assert.True(t, strings.HasSuffix(f.export.Filename(), ".csv"))
}

// slowSums holds the first SumByCategory call until release is closed.
type slowSums struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowSums) SumByCategory(ctx context.Context, userID string) ([]core.CategoryTotal, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.Store.SumByCategory(ctx, userID)
}

func TestSummaryNotCachedAcrossConcurrentWrite(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "race@example.com")

	slow := &slowSums{Store: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewExpenseService(slow, f.store, f.cache, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Summarize(f.ctx, u.ID, core.PeriodMonth)
		done <- err
	}()

	<-slow.entered
	_, err := svc.Create(f.ctx, u.ID, expense(500, "Food", "2024-03-01"))
	require.NoError(t, err)
	close(slow.release)
	require.NoError(t, <-done)

	sum, err := svc.Summarize(f.ctx, u.ID, core.PeriodMonth)
	require.NoError(t, err)
	require.Len(t, sum.ByCategory, 1)
	assert.Equal(t, "Food", sum.ByCategory[0].Category)
	assert.Equal(t, int64(500), sum.ByCategory[0].Total.Cents())
}
