package middleware

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"tour-booking-api/utils"
)

// RateLimiter is a fixed-window per-IP limiter on Redis, applied to the
// abuse-prone routes (login, payment initialization).
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Limit allows requests per window per client IP for the wrapped route.
func (rl *RateLimiter) Limit(requests int, window time.Duration, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			key := fmt.Sprintf("ratelimit:%s:%s", r.URL.Path, ip)

			count, err := rl.client.Incr(r.Context(), key).Result()
			if err != nil {
				// Redis down must not take the route down with it.
				log.Printf("Rate limiter unavailable, allowing request: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rl.client.Expire(r.Context(), key, window)
			}

			if count > int64(requests) {
				log.Printf("Rate limit exceeded for %s on %s (%d/%d)", ip, r.URL.Path, count, requests)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				utils.SendErrorResponse(w, http.StatusTooManyRequests, message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
