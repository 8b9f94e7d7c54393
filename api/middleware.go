/*
middleware.go - Authentication and authorization middleware

PURPOSE:
  Extracts and validates the bearer token on protected routes and makes
  the caller's claims available to handlers through the request context.
  A second layer restricts destructive operations to admins.

FLOW:
  Authorization: Bearer <jwt>
    -> TokenManager.Validate
    -> claims stored in context
    -> handlers read them via claimsFrom(r)

SEE ALSO:
  - auth/auth.go: Token minting and validation
  - server.go: Where these wrap the route groups
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukabooks/settlement-engine/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// RequireAuth rejects requests without a valid bearer token.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		claims, err := h.Tokens.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin callers. Must run inside RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if claims == nil || !claims.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// claimsFrom returns the authenticated caller's claims, or nil on
// unauthenticated routes.
func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}
