/**
 * @description
 * This file sets up the HTTP router for the API. It defines the endpoints,
 * associates them with their handlers, and layers the middleware: logging,
 * panic recovery, CORS, the CLI-only gate, the global rate budget for the
 * whole /api surface, and per-class budgets plus bearer auth on the
 * individual route groups.
 *
 * @dependencies
 * - net/http, time: Standard Go libraries.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/druidalabs/be/internal/auth"
	"github.com/druidalabs/be/internal/ratelimit"
	"github.com/druidalabs/be/internal/store"
)

// Routes creates and returns the router for the API server.
func Routes(h *Handlers, authority *auth.Authority, repo store.Repository, limiter ratelimit.Limiter, corsOrigin string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Use(CLIOnlyMiddleware)

	r.NotFound(NotFoundHandler)

	// Health check endpoint, outside every rate budget.
	r.Get("/health", h.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		// Global per-source budget across the whole API surface.
		r.Use(RateLimitMiddleware(limiter, ratelimit.ClassGlobal))

		r.Route("/v1", func(r chi.Router) {
			r.With(RateLimitMiddleware(limiter, ratelimit.ClassSignup)).
				Post("/signup", h.SignupHandler)

			// Group routes that require authentication.
			r.Group(func(r chi.Router) {
				r.Use(BearerAuthMiddleware(authority, repo))

				r.With(RateLimitMiddleware(limiter, ratelimit.ClassAuthenticated)).
					Get("/status", h.StatusHandler)
				r.With(RateLimitMiddleware(limiter, ratelimit.ClassAuthenticated)).
					Get("/balance", h.BalanceHandler)
				r.With(RateLimitMiddleware(limiter, ratelimit.ClassAuthenticated)).
					Get("/transactions/{id}", h.TransactionStatusHandler)
				r.With(RateLimitMiddleware(limiter, ratelimit.ClassTransfer)).
					Post("/send", h.SendHandler)
			})
		})
	})

	return r
}
