package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendwise/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Fixed-width UTC layout so that text comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

// Users

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, core.NormalizeEmail(u.Email), u.PasswordHash, formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	for _, c := range u.Categories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_categories (user_id, name) VALUES (?, ?)`, u.ID, c); err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user: %w", err)
	}

	slog.InfoContext(ctx, "User saved to SQLite", "id", u.ID, "categories", len(u.Categories))
	return nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	u, err := r.scanUser(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if u.Categories, err = r.ListCategories(ctx, id); err != nil {
		return nil, err
	}
	if u.Budgets, err = r.ListBudgets(ctx, id); err != nil {
		return nil, err
	}
	if u.Alerts, err = r.ListAlerts(ctx, id); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	u, err := r.scanUser(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = ?`, core.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u.Categories, err = r.ListCategories(ctx, u.ID); err != nil {
		return nil, err
	}
	u.Budgets, u.Alerts = []core.Budget{}, []core.Alert{}
	return u, nil
}

func (r *SQLiteRepository) scanUser(ctx context.Context, query string, arg string) (*core.User, error) {
	var (
		u                core.User
		created, updated string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *SQLiteRepository) touchUser(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

// Categories

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM user_categories WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddCategory(ctx context.Context, userID, name string) ([]string, error) {
	if err := r.touchUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO user_categories (user_id, name) VALUES (?, ?)`, userID, name); err != nil {
		return nil, fmt.Errorf("add category: %w", err)
	}
	return r.ListCategories(ctx, userID)
}

func (r *SQLiteRepository) RemoveCategory(ctx context.Context, userID, name string) ([]string, error) {
	if err := r.touchUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_categories WHERE user_id = ? AND name = ?`, userID, name); err != nil {
		return nil, fmt.Errorf("remove category: %w", err)
	}
	return r.ListCategories(ctx, userID)
}

// Budgets and alerts

func (r *SQLiteRepository) SetBudget(ctx context.Context, userID string, b core.Budget) ([]core.Budget, error) {
	if err := r.touchUser(ctx, userID); err != nil {
		return nil, err
	}
	now := formatTime(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category, limit_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, category) DO UPDATE SET limit_cents = excluded.limit_cents, updated_at = excluded.updated_at`,
		userID, b.Category, b.Limit.Cents(), now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert budget: %w", err)
	}
	return r.ListBudgets(ctx, userID)
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, limit_cents FROM budgets WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		var (
			b     core.Budget
			cents int64
		)
		if err := rows.Scan(&b.Category, &cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Limit = core.MoneyFromCents(cents)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AppendAlert(ctx context.Context, userID string, a core.Alert) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, user_id, expense_id, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, expense_id) DO NOTHING`,
		a.ID, userID, a.ExpenseID, a.Message, a.Read, formatTime(a.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("append alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append alert: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) ListAlerts(ctx context.Context, userID string) ([]core.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, expense_id, message, is_read, created_at FROM alerts WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	out := []core.Alert{}
	for rows.Next() {
		var (
			a       core.Alert
			created string
		)
		if err := rows.Scan(&a.ID, &a.ExpenseID, &a.Message, &a.Read, &created); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
