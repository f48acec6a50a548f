package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/fasol-market/api/internal/auth"
)

type ctxKey int

const operatorClaimsKey ctxKey = iota

// Authenticate admits requests carrying a valid operator access token in
// "Authorization: Bearer <jwt>" and stores its claims in the request context.
// Storefront routes are mounted outside it.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": problem})
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", "invalid authorization format"
	}
	return token, ""
}

// RequireRole lets through operators whose role is one of roles. It must run
// after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			switch {
			case claims == nil:
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			case !slices.Contains(roles, claims.Role):
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// WithClaims stores operator claims in ctx.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, operatorClaimsKey, claims)
}

// ClaimsFromContext returns the authenticated operator, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(operatorClaimsKey).(*auth.Claims)
	return claims
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
