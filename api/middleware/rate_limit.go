package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/stclabs/engage-backend/api/responses"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// SubmitRateLimitPolicy throttles the public submission endpoints per
// client IP inside a fixed window.
type SubmitRateLimitPolicy struct {
	name    string
	window  time.Duration
	ipLimit int
}

func NewSubmitRateLimitPolicy(name string, window time.Duration, ipLimit int) SubmitRateLimitPolicy {
	return SubmitRateLimitPolicy{
		name:    strings.ToLower(strings.TrimSpace(name)),
		window:  window,
		ipLimit: ipLimit,
	}
}

func (p SubmitRateLimitPolicy) enabled() bool {
	return p.window > 0 && p.ipLimit > 0
}

func (p SubmitRateLimitPolicy) key(ip string) string {
	name := p.name
	if name == "" {
		name = "submit"
	}
	return fmt.Sprintf("rl:ip:%s:%s", name, ip)
}

// SubmitRateLimit enforces the per-IP counter. A missing store disables
// throttling rather than blocking traffic.
func SubmitRateLimit(policy SubmitRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := clientIP(r)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			count, err := store.IncrWithTTL(ctx, policy.key(ip), policy.window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if count > int64(policy.ipLimit) {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"ip":             ip,
						"attempts":       count,
						"limit":          policy.ipLimit,
						"window_seconds": int(policy.window.Seconds()),
					})
					logg.Warn(logCtx, "submit.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
