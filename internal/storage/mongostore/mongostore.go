// Package mongostore keeps users as documents with embedded categories,
// budgets and alerts, and expenses in their own collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection    = "users"
	expensesCollection = "expenses"
)

type Repository struct {
	client   *mongo.Client
	users    *mongo.Collection
	expenses *mongo.Collection
}

var _ storage.Repository = (*Repository)(nil)

// New connects to uri, selects database and ensures the indexes exist.
func New(ctx context.Context, uri, database string) (*Repository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	r := &Repository{
		client:   client,
		users:    db.Collection(usersCollection),
		expenses: db.Collection(expensesCollection),
	}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	_, err = r.expenses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "category", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create expenses indexes: %w", err)
	}
	return nil
}

// Drop removes both collections. Used by tests.
func (r *Repository) Drop(ctx context.Context) error {
	if err := r.users.Drop(ctx); err != nil {
		return err
	}
	return r.expenses.Drop(ctx)
}

func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Users

func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	if _, err := r.users.InsertOne(ctx, newUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	slog.InfoContext(ctx, "User saved to MongoDB", "id", u.ID)
	return nil
}

func (r *Repository) findUser(ctx context.Context, filter bson.D, opts ...*options.FindOneOptions) (*userDoc, error) {
	var doc userDoc
	err := r.users.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &doc, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	doc, err := r.findUser(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return nil, err
	}
	return doc.user(), nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	doc, err := r.findUser(ctx, bson.D{{Key: "email", Value: core.NormalizeEmail(email)}},
		options.FindOne().SetProjection(bson.D{{Key: "budgets", Value: 0}, {Key: "alerts", Value: 0}}))
	if err != nil {
		return nil, err
	}
	return doc.user(), nil
}

// updateUser applies update to the user and returns the resulting document.
func (r *Repository) updateUser(ctx context.Context, userID string, update bson.D) (*userDoc, error) {
	update = append(update, bson.E{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}})
	var doc userDoc
	err := r.users.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: userID}}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &doc, nil
}

// Categories

func (r *Repository) ListCategories(ctx context.Context, userID string) ([]string, error) {
	doc, err := r.findUser(ctx, bson.D{{Key: "_id", Value: userID}},
		options.FindOne().SetProjection(bson.D{{Key: "categories", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return append([]string{}, doc.Categories...), nil
}

func (r *Repository) AddCategory(ctx context.Context, userID, name string) ([]string, error) {
	doc, err := r.updateUser(ctx, userID, bson.D{{Key: "$push", Value: bson.D{{Key: "categories", Value: name}}}})
	if err != nil {
		return nil, err
	}
	return append([]string{}, doc.Categories...), nil
}

func (r *Repository) RemoveCategory(ctx context.Context, userID, name string) ([]string, error) {
	doc, err := r.updateUser(ctx, userID, bson.D{{Key: "$pull", Value: bson.D{{Key: "categories", Value: name}}}})
	if err != nil {
		return nil, err
	}
	return append([]string{}, doc.Categories...), nil
}

// Budgets and alerts

// SetBudget updates the matching array element in place, or pushes a new one
// guarded by the absence of the category. A lost push race falls back to the
// positional update.
func (r *Repository) SetBudget(ctx context.Context, userID string, b core.Budget) ([]core.Budget, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := r.users.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: userID}, {Key: "budgets.category", Value: b.Category}},
			bson.D{
				{Key: "$set", Value: bson.D{{Key: "budgets.$.limit_cents", Value: b.Limit.Cents()}}},
				{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
			})
		if err != nil {
			return nil, fmt.Errorf("update budget: %w", err)
		}
		if res.MatchedCount > 0 {
			return r.ListBudgets(ctx, userID)
		}

		res, err = r.users.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: userID}, {Key: "budgets.category", Value: bson.D{{Key: "$ne", Value: b.Category}}}},
			bson.D{
				{Key: "$push", Value: bson.D{{Key: "budgets", Value: budgetDoc{Category: b.Category, LimitCents: b.Limit.Cents()}}}},
				{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
			})
		if err != nil {
			return nil, fmt.Errorf("push budget: %w", err)
		}
		if res.MatchedCount > 0 {
			return r.ListBudgets(ctx, userID)
		}
		if _, err := r.findUser(ctx, bson.D{{Key: "_id", Value: userID}}); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("set budget %q: concurrent modification", b.Category)
}

func (r *Repository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	doc, err := r.findUser(ctx, bson.D{{Key: "_id", Value: userID}},
		options.FindOne().SetProjection(bson.D{{Key: "budgets", Value: 1}}))
	if errors.Is(err, core.ErrNotFound) {
		return []core.Budget{}, nil
	}
	if err != nil {
		return nil, err
	}
	return budgets(doc.Budgets), nil
}

func (r *Repository) AppendAlert(ctx context.Context, userID string, a core.Alert) (bool, error) {
	res, err := r.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}, {Key: "alerts.expense_id", Value: bson.D{{Key: "$ne", Value: a.ExpenseID}}}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "alerts", Value: newAlertDoc(a)}}}})
	if err != nil {
		return false, fmt.Errorf("append alert: %w", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	if _, err := r.findUser(ctx, bson.D{{Key: "_id", Value: userID}}); err != nil {
		return false, err
	}
	return false, nil
}

func (r *Repository) ListAlerts(ctx context.Context, userID string) ([]core.Alert, error) {
	doc, err := r.findUser(ctx, bson.D{{Key: "_id", Value: userID}},
		options.FindOne().SetProjection(bson.D{{Key: "alerts", Value: 1}}))
	if errors.Is(err, core.ErrNotFound) {
		return []core.Alert{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]core.Alert, 0, len(doc.Alerts))
	for _, a := range doc.Alerts {
		out = append(out, a.alert())
	}
	return out, nil
}

// Expenses

func (r *Repository) CreateExpense(ctx context.Context, e *core.Expense) error {
	if _, err := r.expenses.InsertOne(ctx, newExpenseDoc(e)); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense saved to MongoDB",
		"id", e.ID,
		"user", e.UserID,
		"amount_cents", e.Amount.Cents(),
		"category", e.Category)
	return nil
}

func ownedBy(userID, id string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: userID}}
}

func (r *Repository) GetExpense(ctx context.Context, userID, id string) (*core.Expense, error) {
	var doc expenseDoc
	err := r.expenses.FindOne(ctx, ownedBy(userID, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find expense: %w", err)
	}
	return doc.expense(), nil
}

func (r *Repository) UpdateExpense(ctx context.Context, userID, id string, p core.ExpensePatch) (*core.Expense, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if p.Amount != nil {
		set = append(set, bson.E{Key: "amount_cents", Value: p.Amount.Cents()})
	}
	if p.Category != nil {
		set = append(set, bson.E{Key: "category", Value: *p.Category})
	}
	if p.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *p.Description})
	}
	if p.PaymentMode != nil {
		set = append(set, bson.E{Key: "payment_mode", Value: string(*p.PaymentMode)})
	}
	if p.Date != nil {
		set = append(set, bson.E{Key: "date", Value: p.Date.UTC()})
	}

	var doc expenseDoc
	err := r.expenses.FindOneAndUpdate(ctx, ownedBy(userID, id), bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return doc.expense(), nil
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.expenses.DeleteOne(ctx, ownedBy(userID, id))
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

func expenseFilter(userID string, f core.ExpenseFilter) bson.D {
	filter := bson.D{{Key: "user_id", Value: userID}}
	date := bson.D{}
	if f.From != nil {
		date = append(date, bson.E{Key: "$gte", Value: f.From.UTC()})
	}
	if f.To != nil {
		date = append(date, bson.E{Key: "$lte", Value: f.To.UTC()})
	}
	if len(date) > 0 {
		filter = append(filter, bson.E{Key: "date", Value: date})
	}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: f.Category})
	}
	amount := bson.D{}
	if f.MinAmount != nil {
		amount = append(amount, bson.E{Key: "$gte", Value: f.MinAmount.Cents()})
	}
	if f.MaxAmount != nil {
		amount = append(amount, bson.E{Key: "$lte", Value: f.MaxAmount.Cents()})
	}
	if len(amount) > 0 {
		filter = append(filter, bson.E{Key: "amount_cents", Value: amount})
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		re := bson.D{{Key: "$regex", Value: regexp.QuoteMeta(q)}, {Key: "$options", Value: "i"}}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "description", Value: re}},
			bson.D{{Key: "category", Value: re}},
		}})
	}
	return filter
}

func (r *Repository) ListExpenses(ctx context.Context, userID string, f core.ExpenseFilter) ([]core.Expense, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: -1},
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.expenses.Find(ctx, expenseFilter(userID, f), opts)
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	var docs []expenseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}

	out := make([]core.Expense, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.expense())
	}
	return out, nil
}

func (r *Repository) CountExpenses(ctx context.Context, userID string, f core.ExpenseFilter) (int64, error) {
	n, err := r.expenses.CountDocuments(ctx, expenseFilter(userID, f))
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (r *Repository) SumByCategory(ctx context.Context, userID string) ([]core.CategoryTotal, error) {
	cur, err := r.expenses.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "user_id", Value: userID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount_cents"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate by category: %w", err)
	}
	var rows []struct {
		Category string `bson:"_id"`
		Total    int64  `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode category totals: %w", err)
	}

	out := make([]core.CategoryTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.CategoryTotal{Category: row.Category, Total: core.MoneyFromCents(row.Total)})
	}
	return out, nil
}

func (r *Repository) SumByPeriod(ctx context.Context, userID string, period core.Period) ([]core.PeriodTotal, error) {
	key := bson.D{{Key: "year", Value: bson.D{{Key: "$year", Value: "$date"}}}}
	if period != core.PeriodYear {
		key = append(key, bson.E{Key: "month", Value: bson.D{{Key: "$month", Value: "$date"}}})
	}
	cur, err := r.expenses.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "user_id", Value: userID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: key},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount_cents"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate by period: %w", err)
	}
	var rows []struct {
		Key struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
		} `bson:"_id"`
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode period totals: %w", err)
	}

	out := make([]core.PeriodTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.PeriodTotal{Year: row.Key.Year, Month: row.Key.Month, Total: core.MoneyFromCents(row.Total)})
	}
	return out, nil
}
