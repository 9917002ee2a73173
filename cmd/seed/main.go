// Command seed creates a demo account with a few sample expenses.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/services"
	"spendwise/internal/storage"
)

const (
	demoName     = "Demo User"
	demoEmail    = "demo@local"
	demoPassword = "password123"
)

var demoCategories = []string{"Food", "Transport", "Utilities", "Entertainment"}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentCLI)
	cfg := config.Load()

	ctx := context.Background()
	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := seedAndClose(ctx, be, auth.NewHasher(cfg.BcryptCost), time.Now(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// seedAndClose seeds be and releases it exactly once.
func seedAndClose(ctx context.Context, be *backend.BackendResult, hasher *auth.Hasher, now time.Time, stdout io.Writer) error {
	err := run(ctx, be.Repository, hasher, now, stdout)
	if cerr := be.Cleanup(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close backend: %w", cerr))
	}
	return err
}

func run(ctx context.Context, repo storage.Repository, hasher *auth.Hasher, now time.Time, stdout io.Writer) error {
	existing, err := repo.GetUserByEmail(ctx, demoEmail)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("look up demo user: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("user %s already exists", demoEmail)
	}

	authSvc := services.NewAuthService(repo, hasher, nil)
	user, err := authSvc.Register(ctx, services.SignupInput{
		Name:     demoName,
		Email:    demoEmail,
		Password: demoPassword,
	}, demoCategories)
	if err != nil {
		return fmt.Errorf("create demo user: %w", err)
	}

	expenses := services.NewExpenseService(repo, repo, nil, nil)
	for _, e := range sampleExpenses(now) {
		if _, err := expenses.Create(ctx, user.ID, e); err != nil {
			return fmt.Errorf("create sample expense %q: %w", e.Description, err)
		}
	}

	fmt.Fprintf(stdout, "Seed complete. Demo user credentials: %s / %s\n", demoEmail, demoPassword)
	return nil
}

// sampleExpenses spreads four expenses over the current and two previous
// months relative to now.
func sampleExpenses(now time.Time) []core.Expense {
	day := func(monthOffset, d int) time.Time {
		return time.Date(now.Year(), now.Month()+time.Month(monthOffset), d, 0, 0, 0, 0, time.UTC)
	}
	return []core.Expense{
		{Amount: core.MoneyFromCents(1250), Category: "Food", Description: "Lunch", PaymentMode: core.PaymentCard, Date: day(0, 2)},
		{Amount: core.MoneyFromCents(4500), Category: "Transport", Description: "Fuel", PaymentMode: core.PaymentCash, Date: day(0, 5)},
		{Amount: core.MoneyFromCents(12000), Category: "Utilities", Description: "Electric bill", PaymentMode: core.PaymentOnline, Date: day(-1, 28)},
		{Amount: core.MoneyFromCents(20000), Category: "Entertainment", Description: "Concert", PaymentMode: core.PaymentCard, Date: day(-2, 10)},
	}
}
