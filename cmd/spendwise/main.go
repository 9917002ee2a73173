package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/auth"
	"spendwise/internal/cache"
	"spendwise/internal/cli"
	"spendwise/internal/core"
	apphttp "spendwise/internal/http"
	applog "spendwise/internal/log"
	"spendwise/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	summaries := cache.NewLRUCache[*core.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	cacheManager.Register(summaries)
	cacheManager.StartCleanup(time.Minute)

	// A nil *amqp.Client must not reach the interface as a typed nil.
	var publisher services.Publisher
	if be.Publisher != nil {
		publisher = be.Publisher
	}

	repo := be.Repository
	authSvc := services.NewAuthService(repo,
		auth.NewHasher(cfg.BcryptCost),
		auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL))

	srv, err := apphttp.NewServer(cfg.Addr(), apphttp.Deps{
		Auth:       authSvc,
		Expenses:   services.NewExpenseService(repo, repo, summaries, publisher),
		Budgets:    services.NewBudgetService(repo),
		Categories: services.NewCategoryService(repo),
		Export:     services.NewExportService(repo),
		Store:      repo,
		Logger:     logger,
	}, apphttp.Options{
		CORSOrigins:    cfg.CORSOrigins,
		AuthRateLimit:  cfg.RateLimitRPM,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err.Error())
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting spendwise server",
			"addr", cfg.Addr(),
			"backend", cfg.DataBackend,
			"amqp", be.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) error {
			err := srv.Shutdown(ctx)
			cacheManager.Stop()
			return errors.Join(err, be.Cleanup())
		})
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
