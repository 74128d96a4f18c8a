package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ainotes/secondbrain/internal/api"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// TokenVerifier validates a bearer token and returns the authenticated
// user's ID.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// BearerAuth authenticates requests via a JWT bearer token and stores the
// user ID on the request context. Every downstream storage operation is
// scoped by this ID.
func BearerAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			userID, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
