// internal/api/middleware.go
package api

import (
	"net/http"
	"strings"

	"libracirc/internal/httpx"
	"libracirc/internal/membership"
)

// AuthMiddleware validates the bearer token and attaches the claims to the
// request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				httpx.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization header")
				return
			}

			claims, err := membership.ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(membership.WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdministrator rejects requests whose claims lack the administrator
// role. Must run after AuthMiddleware.
func RequireAdministrator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := membership.ClaimsFrom(r.Context())
		if claims == nil {
			httpx.Error(w, http.StatusUnauthorized, "unauthenticated", "not authenticated")
			return
		}
		if !claims.IsAdministrator() {
			httpx.Error(w, http.StatusForbidden, "forbidden", "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
