package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gatherly/server/internal/auth"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	roleKey   contextKey = "role"
)

// UserID returns the authenticated user's id, or "" when the request is
// anonymous.
func UserID(ctx context.Context) string {
	value, _ := ctx.Value(userIDKey).(string)
	return value
}

// Role returns the authenticated user's role, or "" when anonymous.
func Role(ctx context.Context) string {
	value, _ := ctx.Value(roleKey).(string)
	return value
}

func withIdentity(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(manager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(manager, r)
			if err != nil {
				unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims.Subject, claims.Role)))
		})
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// passes the request through anonymously otherwise. A present but
// invalid token is still rejected.
func OptionalAuth(manager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := authenticate(manager, r)
			if err != nil {
				unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims.Subject, claims.Role)))
		})
	}
}

func authenticate(manager *auth.JWTManager, r *http.Request) (*auth.Claims, error) {
	token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	return manager.Validate(token)
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
