package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Limiter counts hits per scope and subject.
type Limiter interface {
	Consume(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Rule is the budget of one limited route.
type Rule struct {
	Scope  string
	Limit  int
	Window time.Duration
	// Rejected answers requests over the budget. Nil means 429.
	Rejected http.Handler
}

// Middleware stops requests from a client address once it exceeds the rule.
// Limiter failures let the request through and are logged.
func Middleware(limiter Limiter, rule Rule, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil || rule.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := clientAddress(r)
			count, retryAfter, err := limiter.Consume(r.Context(), rule.Scope, subject, rule.Limit, rule.Window)
			if err != nil {
				logger.Warn("rate limiter unavailable", "scope", rule.Scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if count > rule.Limit {
				if rule.Rejected != nil {
					logger.Warn("rate limit exceeded", "scope", rule.Scope, "subject", subject)
					rule.Rejected.ServeHTTP(w, r)
					return
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
