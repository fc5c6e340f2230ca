package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/stagepass/backend/internal/models"
)

type contextKey string

const ctxAccountKey contextKey = "account"

// TokenValidator resolves a bearer token to the address and role it was
// issued for.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, models.Role, error)
}

// AccountLookup loads the live account row, so suspensions take effect
// immediately rather than at token expiry.
type AccountLookup interface {
	GetByAddress(ctx context.Context, address string) (*models.Account, error)
}

// RequireAuth authenticates requests by validating the Bearer token and
// loading the account it names. On success the account is set into the
// request context.
func RequireAuth(tokens TokenValidator, accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			address, _, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			acc, err := accounts.GetByAddress(r.Context(), address)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			if !acc.IsActive {
				http.Error(w, `{"error":"account suspended"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
		})
	}
}

// AccountFromCtx returns the authenticated account or nil.
func AccountFromCtx(ctx context.Context) *models.Account {
	acc, _ := ctx.Value(ctxAccountKey).(*models.Account)
	return acc
}

// WithAccount returns a context carrying the given account.
func WithAccount(ctx context.Context, acc *models.Account) context.Context {
	return context.WithValue(ctx, ctxAccountKey, acc)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
