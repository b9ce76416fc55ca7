package middleware

import (
	"context"
	"net/http"
	"strings"

	"studio-chat/internal/identity"
)

type contextKey string

const IdentityKey contextKey = "identity"

// IdentityResolver is what we need from the identity service. The interface
// keeps this package decoupled from it.
type IdentityResolver interface {
	ValidateToken(tokenString string) (string, string, error)
	Resolve(ctx context.Context, userID string) (identity.Identity, error)
}

type AuthMiddleware struct {
	resolver IdentityResolver
}

func NewAuthMiddleware(r IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: r}
}

// Handle authenticates the request and injects the resolved identity into
// the context. Tokens come from the Authorization header, or a query param
// as a fallback for websocket upgrades.
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		userID, _, err := am.resolver.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ident, err := am.resolver.Resolve(r.Context(), userID)
		if err != nil {
			http.Error(w, "Unknown user", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom extracts the authenticated identity from a request context.
func IdentityFrom(ctx context.Context) (identity.Identity, bool) {
	ident, ok := ctx.Value(IdentityKey).(identity.Identity)
	return ident, ok
}
