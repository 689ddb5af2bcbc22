package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

type contextKey string

const operatorKey contextKey = "operator"

func loggingMiddleware(logger *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		next.ServeHTTP(w, r)
		logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"from":   r.RemoteAddr,
			"dur":    time.Since(start).String(),
		}).Info("request")
	})
}

// basicAuthMiddleware authenticates every request against the operator store.
// With no store configured (tests, single-user dev terminals) requests pass
// through unauthenticated and the actor falls back to "terminal".
func basicAuthMiddleware(operators store.OperatorStore, logger *logrus.Logger, next http.Handler) http.Handler {
	if operators == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="lunchcard"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "credentials required")
			return
		}

		op, err := operators.GetByUsername(r.Context(), username)
		if err != nil || !op.IsActive || !op.CheckPassword(password) {
			logger.WithField("username", username).Warn("failed login attempt")
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, op)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin guards handlers for operations restricted to admin operators.
// Role enforcement lives here at the API edge; the core services only record
// the acting identity.
func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if op, ok := r.Context().Value(operatorKey).(types.Operator); ok && !op.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next(w, r)
	}
}

// actorFrom names the authenticated operator for audit and transaction rows.
func actorFrom(r *http.Request) string {
	if op, ok := r.Context().Value(operatorKey).(types.Operator); ok {
		return op.Username
	}
	return "terminal"
}
