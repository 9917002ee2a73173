package http

import (
	"context"
	"net/http"
	"runtime/debug"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
)

type contextKey string

const userContextKey contextKey = "user"

// authedHandler receives the user resolved by requireAuth.
type authedHandler func(w http.ResponseWriter, r *http.Request, user *core.User)

// requireAuth resolves the bearer token to a user and rejects the request
// with 401 otherwise.
func (s *Server) requireAuth(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		user, err := s.deps.Auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = applog.WithLogger(ctx, applog.FromContext(ctx).With(applog.FieldUser, user.ID))
		next(w, r.WithContext(ctx), user)
	})
}

// UserFromContext returns the user stored by the authentication gate.
func UserFromContext(ctx context.Context) (*core.User, bool) {
	u, ok := ctx.Value(userContextKey).(*core.User)
	return u, ok
}

// recoverer turns a panic into the catch-all 500 response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Panic while serving request",
				"panic", rec,
				"stack", string(debug.Stack()))
			writeMessage(w, http.StatusInternalServerError, msgInternal)
		}()
		next.ServeHTTP(w, r)
	})
}
