package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/cache"
	"github.com/remoteprint/remoteprint/internal/model"
)

// RateLimiter is the token bucket backend, implemented by *cache.Cache.
type RateLimiter interface {
	CheckAPIRateLimit(ctx context.Context, keyID string, plan model.PlanID) (*cache.RateLimitResult, error)
	CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter RateLimiter
	// Management API rate limiting (per API key, tier by plan)
	APIEnabled bool
	// /functions/v1 rate limiting (per client IP)
	IntakeEnabled bool
	IntakeRPS     int
	IntakeBurst   int
	// TrustProxyHeaders keys the intake limiter on X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

func (cfg RateLimitConfig) logger() *slog.Logger {
	if cfg.Logger == nil {
		return slog.Default()
	}
	return cfg.Logger
}

// RateLimitAPI returns middleware that rate limits API requests per API key.
// Must be applied after Auth middleware. Backend errors fail open.
func RateLimitAPI(cfg RateLimitConfig) func(http.Handler) http.Handler {
	logger := cfg.logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.APIEnabled {
				next.ServeHTTP(w, r)
				return
			}

			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				next.ServeHTTP(w, r)
				return
			}

			limits := model.RateLimitFor(authCtx.PlanID)
			if limits.RequestsPerMinute == 0 {
				next.ServeHTTP(w, r)
				return
			}

			result, err := cfg.Limiter.CheckAPIRateLimit(r.Context(), authCtx.KeyID, authCtx.PlanID)
			if err != nil {
				logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("key_id", authCtx.KeyID),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, limits.RequestsPerMinute, result.Remaining, result.ResetAt)

			if !result.Allowed {
				logRateLimited(logger, r, "api", result.RetryAfter, slog.String("key_id", authCtx.KeyID))
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(result.RetryAfter)))
				writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED",
					fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", retrySeconds(result.RetryAfter)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitIP returns middleware that rate limits requests per client IP.
// Used on the /functions/v1 routes, so rejections use the flat error body.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	logger := cfg.logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.IntakeEnabled || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ip := RemoteIP(r)
			if cfg.TrustProxyHeaders {
				ip = ClientIP(r)
			}
			result, err := cfg.Limiter.CheckIPRateLimit(r.Context(), ip, cfg.IntakeRPS, cfg.IntakeBurst)
			if err != nil {
				logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				logRateLimited(logger, r, "intake", result.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(result.RetryAfter)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Rate limit exceeded"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func logRateLimited(logger *slog.Logger, r *http.Request, kind string, retryAfter time.Duration, extra ...any) {
	args := append([]any{
		slog.String("type", kind),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Int("retry_after_seconds", retrySeconds(retryAfter)),
		slog.String("request_id", GetRequestID(r.Context())),
	}, extra...)
	logger.Warn("rate limit exceeded", args...)
}

func retrySeconds(d time.Duration) int {
	if d < time.Second {
		return 1
	}
	return int((d + time.Second - 1) / time.Second)
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// ClientIP extracts the client IP from the request.
// The first X-Forwarded-For hop wins, then X-Real-IP, then RemoteAddr
// without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return RemoteIP(r)
}

// RemoteIP returns the peer address without its port, ignoring headers.
func RemoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
