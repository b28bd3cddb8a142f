package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainhabit/chainhabit/internal/api/respond"
	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/model"
)

type contextKey int

const userContextKey contextKey = iota

// currentUser returns the authenticated account placed on the request
// context by requireAuth.
func currentUser(r *http.Request) *model.User {
	u, _ := r.Context().Value(userContextKey).(*model.User)
	return u
}

// requireAuth resolves the bearer token and attaches the account to the
// request context. Unauthenticated requests get 401; deactivated accounts 403.
func requireAuth(a *auth.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := a.Authorize(r.Context(), bearerToken(r))
			if err != nil {
				if errors.Is(err, model.ErrForbidden) {
					respond.WriteForbidden(w, "account deactivated")
					return
				}
				respond.WriteUnauthorized(w, "missing or invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, u)))
		})
	}
}

// requireAdmin gates a subtree to accounts with the admin role. Must run
// after requireAuth.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r)
		if u == nil || u.Role != model.RoleAdmin {
			respond.WriteForbidden(w, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// requestLogger emits one structured line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Str("remote", clientIP(r)).
				Msg("http request")
		})
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (l *loggingResponseWriter) WriteHeader(code int) {
	l.status = code
	l.ResponseWriter.WriteHeader(code)
}

// notFoundHandler keeps unmatched routes on the JSON envelope too.
func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.WriteNotFound(w, "route not found")
	})
}

// writeServiceError maps sentinel service errors onto HTTP statuses.
// Unrecognized errors become an opaque 500; details stay in the logs.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		respond.WriteUnauthorized(w, "invalid credentials")
	case errors.Is(err, model.ErrForbidden):
		respond.WriteForbidden(w, err.Error())
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, "not found")
	case errors.Is(err, model.ErrConflict):
		respond.WriteConflict(w, err.Error())
	default:
		respond.WriteInternalError(w, "internal error")
	}
}
