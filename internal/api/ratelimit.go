/**
 * @description
 * Rate-limit middleware. Each route class consumes from its own fixed-window
 * budget keyed by the caller's source address. Standard X-RateLimit headers
 * are set on every response so clients can pace themselves, and a rejected
 * request carries the window reset time.
 *
 * @dependencies
 * - log, net/http, strconv: Standard Go libraries.
 * - internal/ratelimit: The admission-control budgets.
 */

package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/druidalabs/be/internal/ratelimit"
)

// rejectionMessages mirrors the wording the API has always returned per class.
var rejectionMessages = map[ratelimit.Class]string{
	ratelimit.ClassGlobal:        "Too many requests from this IP, please try again later.",
	ratelimit.ClassSignup:        "Too many signup attempts from this IP, please try again later.",
	ratelimit.ClassAuthenticated: "Too many requests from this IP, please try again later.",
	ratelimit.ClassTransfer:      "Too many send requests from this IP, please try again later.",
}

// RateLimitMiddleware enforces the fixed budget for one operation class.
func RateLimitMiddleware(limiter ratelimit.Limiter, class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Allow(r.Context(), class, clientSubject(r))
			if err != nil {
				// Admission control must not take the API down with it.
				log.Printf("level=warn component=ratelimit msg=\"budget check failed; allowing request\" class=%s err=%v", class, err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(timeUntil(result.Reset).Seconds())+1, 10))
				writeError(w, http.StatusTooManyRequests, "Too Many Requests", rejectionMessages[class])
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
