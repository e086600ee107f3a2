package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/auth"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/metrics"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Logger writes one structured access log line per request.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

// CORS allows browser clients from origin. Preflight requests are answered
// directly.
func CORS(origin, userHeader string) func(http.Handler) http.Handler {
	allowHeaders := strings.Join([]string{"Content-Type", "Authorization", userHeader}, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate resolves the caller and stores the user id in the request
// context. Requests without credentials pass through anonymously; a bad
// token is rejected.
func Authenticate(a *auth.Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := a.UserID(r)
			switch {
			case err == nil:
				r = r.WithContext(auth.WithUser(r.Context(), userID))
			case errors.Is(err, auth.ErrNoCredentials):
			default:
				logger.DebugContext(r.Context(), "rejected credentials", "error", err)
				writeServiceError(w, r, logger, apperr.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, apperr.Message(apperr.ErrUnauthenticated), apperr.CodeUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit applies l per authenticated user. It must run after
// RequireUser. When the limiter itself fails the request is let through.
func RateLimit(l Limiter, route string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := auth.UserFromContext(r.Context())
			ok, err := l.Allow(r.Context(), userID)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", "route", route, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.RateLimited(route)
				writeServiceError(w, r, logger, apperr.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
