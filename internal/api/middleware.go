/**
 * @description
 * This file contains custom middleware for the HTTP router: bearer-token
 * authentication and the CLI-only user-agent gate. The auth middleware
 * verifies the credential, resolves the bound account, enforces the account's
 * own validity deadline, and attaches a read-only account snapshot to the
 * request context for downstream handlers.
 *
 * The token's embedded expiry and the account's validity deadline are checked
 * independently; the more restrictive of the two always wins.
 *
 * @dependencies
 * - context, errors, net, net/http, strings: Standard Go libraries.
 * - internal/auth, internal/domain, internal/store: Credential verification
 *   and account resolution.
 */

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/druidalabs/be/internal/auth"
	"github.com/druidalabs/be/internal/domain"
	"github.com/druidalabs/be/internal/store"
)

// accountContextKey is a custom type for the context key to avoid collisions.
type accountContextKey struct{}

// AccountFromContext returns the authenticated account attached by
// BearerAuthMiddleware.
func AccountFromContext(ctx context.Context) (*domain.Account, bool) {
	account, ok := ctx.Value(accountContextKey{}).(*domain.Account)
	return account, ok
}

// BearerAuthMiddleware creates a middleware that verifies the bearer
// credential and resolves the bound account.
func BearerAuthMiddleware(authority *auth.Authority, repo store.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "No valid authorization token provided")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			accountID, _, err := authority.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					writeError(w, http.StatusUnauthorized, "Unauthorized", "Token has expired")
					return
				}
				writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token")
				return
			}

			account, err := repo.FindAccountByID(r.Context(), accountID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token - user not found")
				return
			}

			// Business-level expiry: the account's own deadline holds even if
			// the token claims a longer life.
			if account.Expired(timeNow()) {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "Token has expired")
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey{}, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CLIOnlyMiddleware rejects obvious browser requests. The API is consumed by
// the be CLI (and curl for debugging); keeping browsers out avoids CSRF
// exposure on the bearer-token endpoints.
func CLIOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent := r.Header.Get("User-Agent")

		if strings.Contains(userAgent, "be-cli/") || strings.Contains(userAgent, "curl/") {
			next.ServeHTTP(w, r)
			return
		}

		if strings.Contains(userAgent, "Mozilla/") || strings.Contains(userAgent, "Chrome/") || strings.Contains(userAgent, "Safari/") {
			writeError(w, http.StatusForbidden, "Forbidden", "Browser requests are not allowed. Use the Bitcoin Efectivo CLI.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientSubject derives the rate-limit subject for a request: the first
// forwarded address when behind a proxy, otherwise the peer address.
func clientSubject(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
