// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/authz"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
	"github.com/capitalize-ai/support-inbox/pkg/metrics"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// PrincipalKey is the context key for the authenticated principal.
	PrincipalKey ContextKey = "principal"
)

// Auth creates JWT authentication middleware. The token's claims become
// the request's authz.Principal.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "invalid authorization header format")
				return
			}

			principal, err := authz.ParseToken(jwtSecret, parts[1])
			if err != nil || principal.ID == "" {
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "invalid token")
				return
			}

			if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
				info.userID = principal.ID
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *authz.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipal gets the authenticated principal from context.
func GetPrincipal(ctx context.Context) *authz.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*authz.Principal); ok {
		return p
	}
	return nil
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.ID
	}
	return ""
}

// Authorize enforces the policy requirement of operation op before the
// handler runs. Denials are logged with their reason; the caller only sees
// a generic forbidden response.
func Authorize(guard *authz.Guard, policy authz.Policy, op string, log *logger.Logger) func(http.Handler) http.Handler {
	req := policy.Requirement(op)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			d := guard.Check(r.Context(), p, req)
			if !d.Allowed {
				metrics.AuthzDenialsTotal.WithLabelValues(op).Inc()
				log.Warn("authorization denied",
					zap.String("operation", op),
					zap.String("user_id", GetUserID(r.Context())),
					zap.String("reason", d.Reason),
					zap.String("correlation_id", GetCorrelationID(r.Context())),
				)
				writeError(w, http.StatusForbidden, apperr.KindForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, kind apperr.Kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"kind":  string(kind),
	})
}
