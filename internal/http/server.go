// Package http exposes the JSON API over net/http.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	applog "spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services served by the API.
type Deps struct {
	Auth       *services.AuthService
	Expenses   *services.ExpenseService
	Budgets    *services.BudgetService
	Categories *services.CategoryService
	Export     *services.ExportService
	Store      Pinger
	Logger     *applog.Logger
}

type Options struct {
	// CORSOrigins lists allowed origins; empty allows any origin.
	CORSOrigins []string
	// AuthRateLimit caps signup and login requests per client per minute.
	AuthRateLimit  int
	TrustedProxies []string
}

type Server struct {
	http.Server
	deps         Deps
	logger       *applog.Logger
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// Every route is reachable both at the root and under /api.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		deps:     deps,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.AuthRateLimit}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		started:  time.Now(),
	}

	api := http.NewServeMux()
	s.routes(api)

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("/", api)

	s.Handler = s.wrap(root, opts)
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /auth/signup", limited(http.HandlerFunc(s.handleSignup)))
	mux.Handle("POST /auth/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /auth/me", s.requireAuth(s.handleMe))

	mux.Handle("POST /expenses", s.requireAuth(s.handleCreateExpense))
	mux.Handle("GET /expenses", s.requireAuth(s.handleListExpenses))
	mux.Handle("GET /expenses/summary", s.requireAuth(s.handleSummary))
	mux.Handle("PUT /expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.Handle("DELETE /expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.Handle("GET /categories", s.requireAuth(s.handleListCategories))
	mux.Handle("POST /categories", s.requireAuth(s.handleAddCategory))
	mux.Handle("DELETE /categories/{name}", s.requireAuth(s.handleDeleteCategory))

	mux.Handle("GET /budgets", s.requireAuth(s.handleListBudgets))
	mux.Handle("POST /budgets", s.requireAuth(s.handleSetBudget))
	mux.Handle("GET /budgets/alerts", s.requireAuth(s.handleListAlerts))

	mux.Handle("GET /export/csv", s.requireAuth(s.handleExportCSV))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
}

// wrap applies the middleware chain, outermost first.
func (s *Server) wrap(h http.Handler, opts Options) http.Handler {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{"Content-Disposition", trace.HeaderRequestID},
		MaxAge:         600,
	}).Handler(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.recoverer(h)
	h = s.tracer.Middleware(h)
	return applog.Middleware(s.logger)(h)
}

// Shutdown stops accepting requests and releases background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.deps.Store.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"checks": map[string]string{"store": fmt.Sprintf("failed: %v", err)},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": map[string]string{"store": "ok"},
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded", applog.FieldPath, r.URL.Path)
	writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
}
