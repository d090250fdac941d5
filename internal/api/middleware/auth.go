// Package middleware holds HTTP middleware for the API layer.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mjsoler/ragmux/internal/api/ctxkeys"
	pkgauth "github.com/mjsoler/ragmux/pkg/auth"
)

// AuthMiddleware validates the Bearer JWT token and injects the client
// identity into the request context. Used on all /api/v1/* routes.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearerToken(r)
		if tokenString == "" {
			writeUnauthorized(w, "missing or invalid Authorization header")
			return
		}

		claims, err := pkgauth.ParseToken(tokenString)
		if err != nil {
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := ctxkeys.WithValue(r.Context(), ctxkeys.ClientID, claims.ClientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
// Returns empty string if the header is missing, has the wrong scheme, or
// the token is empty.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	// Must start with "Bearer " (case-sensitive per RFC 7235)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
