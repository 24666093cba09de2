package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const memberIDKey contextKey = "member_id"

// AdminKeyHeader carries the shared key of administrative routes
const AdminKeyHeader = "X-Admin-Key"

// TokenVerifier resolves an access token to a member id
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}

			memberID, err := tokens.Verify(parts[1])
			if err != nil {
				respondError(w, "Token is invalid or expired", "TOKEN_EXPIRED", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), memberIDKey, memberID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminKey rejects requests whose X-Admin-Key does not match key; an empty key rejects everything
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get(AdminKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
				respondError(w, "Admin key required", "FORBIDDEN", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetMemberID extracts the authenticated member id from context
func GetMemberID(ctx context.Context) string {
	memberID, ok := ctx.Value(memberIDKey).(string)
	if !ok {
		return ""
	}
	return memberID
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
