package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
)

// RateLimiter is the minimal interface required to guard credential endpoints.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// allowRequest reports whether r may proceed under scope, writing a 429 when it may not.
func allowRequest(limiter RateLimiter, w http.ResponseWriter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	ctx := r.Context()
	if limiter.Allow(ctx, rateLimitKey(r, scope)) {
		return true
	}

	metrics.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
	logging.FromContext(ctx).Warn("rate limit exceeded", "scope", scope, "clientIp", clientIP(r))
	w.Header().Set("Retry-After", "60")
	respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
	return false
}

func rateLimitKey(r *http.Request, scope string) string {
	ip := clientIP(r)
	if scope == "" {
		return ip
	}
	return fmt.Sprintf("%s:%s", scope, ip)
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
