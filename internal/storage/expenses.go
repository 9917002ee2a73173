package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spendwise/internal/core"
)

const expenseColumns = `id, user_id, amount_cents, category, description, payment_mode, date, created_at, updated_at`

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount.Cents(), e.Category, e.Description, string(e.PaymentMode),
		formatTime(e.Date), formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user", e.UserID,
		"amount_cents", e.Amount.Cents(),
		"category", e.Category)
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, userID, id string, p core.ExpensePatch) (*core.Expense, error) {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}
	if p.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, p.Amount.Cents())
	}
	if p.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *p.Category)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.PaymentMode != nil {
		sets = append(sets, "payment_mode = ?")
		args = append(args, string(*p.PaymentMode))
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, formatTime(*p.Date))
	}
	args = append(args, id, userID)

	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, core.ErrExpenseNotFound
	}
	return r.GetExpense(ctx, userID, id)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, f core.ExpenseFilter) ([]core.Expense, error) {
	where, args := expenseWhere(userID, f)
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + where +
		` ORDER BY date DESC, created_at DESC, id DESC`
	switch {
	case f.Limit > 0:
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	case f.Offset > 0:
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CountExpenses(ctx context.Context, userID string, f core.ExpenseFilter) (int64, error) {
	where, args := expenseWhere(userID, f)
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) SumByCategory(ctx context.Context, userID string) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents) AS total
		FROM expenses
		WHERE user_id = ?
		GROUP BY category
		ORDER BY total DESC, category`, userID)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var (
			t     core.CategoryTotal
			cents int64
		)
		if err := rows.Scan(&t.Category, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		t.Total = core.MoneyFromCents(cents)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SumByPeriod(ctx context.Context, userID string, period core.Period) ([]core.PeriodTotal, error) {
	month := `CAST(substr(date, 6, 2) AS INTEGER)`
	if period == core.PeriodYear {
		month = `0`
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT CAST(substr(date, 1, 4) AS INTEGER) AS y, `+month+` AS m, SUM(amount_cents)
		FROM expenses
		WHERE user_id = ?
		GROUP BY y, m
		ORDER BY y, m`, userID)
	if err != nil {
		return nil, fmt.Errorf("sum by period: %w", err)
	}
	defer rows.Close()

	out := []core.PeriodTotal{}
	for rows.Next() {
		var (
			t     core.PeriodTotal
			cents int64
		)
		if err := rows.Scan(&t.Year, &t.Month, &cents); err != nil {
			return nil, fmt.Errorf("scan period total: %w", err)
		}
		t.Total = core.MoneyFromCents(cents)
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (*core.Expense, error) {
	var (
		e                      core.Expense
		cents                  int64
		mode                   string
		date, created, updated string
	)
	if err := s.Scan(&e.ID, &e.UserID, &cents, &e.Category, &e.Description, &mode, &date, &created, &updated); err != nil {
		return nil, err
	}
	e.Amount = core.MoneyFromCents(cents)
	e.PaymentMode = core.PaymentMode(mode)

	var err error
	if e.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &e, nil
}

func expenseWhere(userID string, f core.ExpenseFilter) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if f.From != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, formatTime(*f.To))
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.MinAmount != nil {
		clauses = append(clauses, "amount_cents >= ?")
		args = append(args, f.MinAmount.Cents())
	}
	if f.MaxAmount != nil {
		clauses = append(clauses, "amount_cents <= ?")
		args = append(args, f.MaxAmount.Cents())
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		clauses = append(clauses, `(lower(description) LIKE ? ESCAPE '\' OR lower(category) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
