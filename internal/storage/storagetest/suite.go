// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"fmt"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// RepositorySuite runs against a fresh repository for every test.
type RepositorySuite struct {
	suite.Suite

	// NewRepository opens an empty repository.
	NewRepository func() storage.Repository

	repo storage.Repository
	ctx  context.Context
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = s.NewRepository()
}

func (s *RepositorySuite) TearDownTest() {
	if s.repo != nil {
		s.Require().NoError(s.repo.Close())
	}
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func (s *RepositorySuite) newUser(email string) *core.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	u := &core.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
		Categories:   []string{"Food", "Transport"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.Require().NoError(s.repo.CreateUser(s.ctx, u))
	return u
}

func (s *RepositorySuite) newExpense(userID string, cents int64, category string, date time.Time, desc string) core.Expense {
	now := time.Now().UTC()
	e := core.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      core.MoneyFromCents(cents),
		Category:    category,
		Description: desc,
		PaymentMode: core.PaymentCard,
		Date:        date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Require().NoError(s.repo.CreateExpense(s.ctx, &e))
	return e
}

func (s *RepositorySuite) TestUsers() {
	u := s.newUser("Alice@Example.com")

	got, err := s.repo.GetUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("alice@example.com", got.Email)
	s.Equal([]string{"Food", "Transport"}, got.Categories)
	s.Empty(got.Budgets)
	s.NotNil(got.Budgets)
	s.Empty(got.Alerts)

	byEmail, err := s.repo.GetUserByEmail(s.ctx, " ALICE@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)
	s.Equal("hash", byEmail.PasswordHash)

	dup := *u
	dup.ID = uuid.NewString()
	dup.Email = "alice@EXAMPLE.com"
	s.ErrorIs(s.repo.CreateUser(s.ctx, &dup), core.ErrConflict)

	_, err = s.repo.GetUserByID(s.ctx, uuid.NewString())
	s.ErrorIs(err, core.ErrNotFound)
	_, err = s.repo.GetUserByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *RepositorySuite) TestCategories() {
	u := s.newUser("cats@example.com")

	cats, err := s.repo.AddCategory(s.ctx, u.ID, "Food")
	s.Require().NoError(err)
	s.Equal([]string{"Food", "Transport", "Food"}, cats)

	cats, err = s.repo.RemoveCategory(s.ctx, u.ID, "Food")
	s.Require().NoError(err)
	s.Equal([]string{"Transport"}, cats)

	cats, err = s.repo.RemoveCategory(s.ctx, u.ID, "Missing")
	s.Require().NoError(err)
	s.Equal([]string{"Transport"}, cats)

	_, err = s.repo.AddCategory(s.ctx, uuid.NewString(), "Food")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *RepositorySuite) TestBudgetsUpsertInPlace() {
	u := s.newUser("budget@example.com")

	_, err := s.repo.SetBudget(s.ctx, u.ID, core.Budget{Category: "Food", Limit: core.MoneyFromCents(10000)})
	s.Require().NoError(err)
	_, err = s.repo.SetBudget(s.ctx, u.ID, core.Budget{Category: "Travel", Limit: core.MoneyFromCents(5000)})
	s.Require().NoError(err)
	budgets, err := s.repo.SetBudget(s.ctx, u.ID, core.Budget{Category: "Food", Limit: core.MoneyFromCents(20000)})
	s.Require().NoError(err)

	s.Require().Len(budgets, 2)
	s.Equal("Food", budgets[0].Category)
	s.Equal(int64(20000), budgets[0].Limit.Cents())
	s.Equal("Travel", budgets[1].Category)

	listed, err := s.repo.ListBudgets(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(budgets, listed)

	other := s.newUser("other-budget@example.com")
	listed, err = s.repo.ListBudgets(s.ctx, other.ID)
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *RepositorySuite) TestAlertsAreAppendOnlyAndIdempotent() {
	u := s.newUser("alerts@example.com")
	expenseID := uuid.NewString()

	a := core.Alert{ID: uuid.NewString(), ExpenseID: expenseID, Message: "over", CreatedAt: time.Now().UTC()}
	added, err := s.repo.AppendAlert(s.ctx, u.ID, a)
	s.Require().NoError(err)
	s.True(added)

	a.ID = uuid.NewString()
	added, err = s.repo.AppendAlert(s.ctx, u.ID, a)
	s.Require().NoError(err)
	s.False(added)

	second := core.Alert{ID: uuid.NewString(), ExpenseID: uuid.NewString(), Message: "again", CreatedAt: time.Now().UTC()}
	_, err = s.repo.AppendAlert(s.ctx, u.ID, second)
	s.Require().NoError(err)

	alerts, err := s.repo.ListAlerts(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Require().Len(alerts, 2)
	s.Equal("over", alerts[0].Message)
	s.Equal(expenseID, alerts[0].ExpenseID)
	s.False(alerts[0].Read)
	s.Equal("again", alerts[1].Message)

	got, err := s.repo.GetUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Len(got.Alerts, 2)
}

func (s *RepositorySuite) TestExpenseCRUD() {
	u := s.newUser("crud@example.com")
	e := s.newExpense(u.ID, 1250, "Food", day(1), "Lunch")

	got, err := s.repo.GetExpense(s.ctx, u.ID, e.ID)
	s.Require().NoError(err)
	s.Equal(int64(1250), got.Amount.Cents())
	s.Equal("Lunch", got.Description)
	s.Equal(core.PaymentCard, got.PaymentMode)
	s.True(day(1).Equal(got.Date))

	cat := "Dining"
	amt := core.MoneyFromCents(999)
	updated, err := s.repo.UpdateExpense(s.ctx, u.ID, e.ID, core.ExpensePatch{Category: &cat, Amount: &amt})
	s.Require().NoError(err)
	s.Equal("Dining", updated.Category)
	s.Equal(int64(999), updated.Amount.Cents())
	s.Equal("Lunch", updated.Description)
	s.False(updated.UpdatedAt.Before(got.UpdatedAt))

	s.Require().NoError(s.repo.DeleteExpense(s.ctx, u.ID, e.ID))
	_, err = s.repo.GetExpense(s.ctx, u.ID, e.ID)
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.repo.DeleteExpense(s.ctx, u.ID, e.ID), core.ErrNotFound)
}

func (s *RepositorySuite) TestExpensesAreScopedToOwner() {
	alice := s.newUser("alice@example.com")
	bob := s.newUser("bob@example.com")
	e := s.newExpense(alice.ID, 500, "Food", day(2), "")

	_, err := s.repo.GetExpense(s.ctx, bob.ID, e.ID)
	s.ErrorIs(err, core.ErrNotFound)

	desc := "stolen"
	_, err = s.repo.UpdateExpense(s.ctx, bob.ID, e.ID, core.ExpensePatch{Description: &desc})
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.repo.DeleteExpense(s.ctx, bob.ID, e.ID), core.ErrNotFound)

	list, err := s.repo.ListExpenses(s.ctx, bob.ID, core.ExpenseFilter{})
	s.Require().NoError(err)
	s.Empty(list)

	got, err := s.repo.GetExpense(s.ctx, alice.ID, e.ID)
	s.Require().NoError(err)
	s.Equal("", got.Description)
}

func (s *RepositorySuite) TestListFilterSortAndPage() {
	u := s.newUser("list@example.com")
	s.newExpense(u.ID, 1000, "Food", day(1), "Groceries")
	s.newExpense(u.ID, 5000, "Travel", day(3), "Train ticket")
	s.newExpense(u.ID, 2000, "Food", day(2), "Lunch with team")
	s.newExpense(u.ID, 100_00, "Rent_50%", day(4), "")

	all, err := s.repo.ListExpenses(s.ctx, u.ID, core.ExpenseFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	for i := 1; i < len(all); i++ {
		s.False(all[i].Date.After(all[i-1].Date), "sorted by date descending")
	}

	from, to := day(2), day(3)
	ranged, err := s.repo.ListExpenses(s.ctx, u.ID, core.ExpenseFilter{From: &from, To: &to})
	s.Require().NoError(err)
	s.Len(ranged, 2)

	food, err := s.repo.ListExpenses(s.ctx, u.ID, core.ExpenseFilter{Category: "Food"})
	s.Require().NoError(err)
	s.Len(food, 2)

	lo, hi := core.MoneyFromCents(2000), core.MoneyFromCents(5000)
	amounts, err := s.repo.ListExpenses(s.ctx, u.ID, core.ExpenseFilter{MinAmount: &lo, MaxAmount: &hi})
	s.Require().NoError(err)
	s.Len(amounts, 2)

	text, err := s.repo.ListExpenses(s.ctx, u.ID, core.ExpenseFilter{Query: "TEAM"})
	s.Require().NoError(err)
	s.Require().Len(text, 1)
	s.Equal("Lunch with team", text[0].Description)

	literal, err := s.repo.ListExpenses(s.ctx, u.ID, core.ExpenseFilter{Query: "_50%"})
	s.Require().NoError(err)
	s.Len(literal, 1)

	page := core.ExpenseFilter{}
	page.Page(2, 3)
	rest, err := s.repo.ListExpenses(s.ctx, u.ID, page)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal("Groceries", rest[0].Description)

	n, err := s.repo.CountExpenses(s.ctx, u.ID, page)
	s.Require().NoError(err)
	s.Equal(int64(4), n)

	n, err = s.repo.CountExpenses(s.ctx, u.ID, core.ExpenseFilter{Category: "Food"})
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *RepositorySuite) TestSummaries() {
	u := s.newUser("sum@example.com")
	other := s.newUser("sum-other@example.com")
	s.newExpense(u.ID, 1000, "Food", day(1), "")
	s.newExpense(u.ID, 2550, "Food", day(2), "")
	s.newExpense(u.ID, 5000, "Travel", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "")
	s.newExpense(u.ID, 100, "Misc", time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), "")
	s.newExpense(other.ID, 99999, "Food", day(1), "")

	byCat, err := s.repo.SumByCategory(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal([]string{"Travel", "Food", "Misc"}, categories(byCat))
	s.Equal(int64(3550), byCat[1].Total.Cents())

	months, err := s.repo.SumByPeriod(s.ctx, u.ID, core.PeriodMonth)
	s.Require().NoError(err)
	s.Equal([]string{"2023-12", "2024-03", "2024-04"}, buckets(months))
	s.Equal(int64(3550), months[1].Total.Cents())

	years, err := s.repo.SumByPeriod(s.ctx, u.ID, core.PeriodYear)
	s.Require().NoError(err)
	s.Equal([]string{"2023", "2024"}, buckets(years))
	s.Equal(int64(8550), years[1].Total.Cents())

	empty, err := s.repo.SumByCategory(s.ctx, uuid.NewString())
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *RepositorySuite) TestPing() {
	s.NoError(s.repo.Ping(s.ctx))
}

func categories(totals []core.CategoryTotal) []string {
	out := make([]string, len(totals))
	for i, t := range totals {
		out[i] = t.Category
	}
	return out
}

func buckets(totals []core.PeriodTotal) []string {
	out := make([]string, len(totals))
	for i, t := range totals {
		if t.Month == 0 {
			out[i] = fmt.Sprintf("%d", t.Year)
			continue
		}
		out[i] = fmt.Sprintf("%d-%02d", t.Year, t.Month)
	}
	return out
}
