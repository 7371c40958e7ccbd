package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Middleware rejects requests over the scope's budget with 429, a
// Retry-After header and a JSON error body.
func (l *Limiter) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(scope, ClientID(r))
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":             "rate limit exceeded",
					"retryAfterSeconds": d.RetryAfterSeconds,
				})
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
