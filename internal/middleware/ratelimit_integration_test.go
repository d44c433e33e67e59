//go:build integration

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/cache"
	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/testutil"
)

func newRedisLimiter(t *testing.T) *cache.Cache {
	t.Helper()
	ctx := context.Background()
	c, err := cache.New(ctx, testutil.RequireEnv(t, "REDIS_URL"))
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return c
}

// TestIntegrationRateLimitAPIConcurrency fires 60 concurrent management
// requests with a free tier key (burst 10).
func TestIntegrationRateLimitAPIConcurrency(t *testing.T) {
	limiter := newRedisLimiter(t)
	handler := RateLimitAPI(RateLimitConfig{Limiter: limiter, APIEnabled: true})(okHandler())

	var allowed, rejected int64
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
			req = req.WithContext(auth.ContextWithAuth(req.Context(), &model.AuthContext{
				KeyID:  "key-concurrent",
				PlanID: model.PlanFree,
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code == http.StatusOK {
				atomic.AddInt64(&allowed, 1)
			} else {
				atomic.AddInt64(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	burst := int64(model.RateLimitFor(model.PlanFree).Burst)
	if allowed > burst+1 {
		t.Errorf("too many requests allowed: %d (burst %d)", allowed, burst)
	}
	if rejected == 0 {
		t.Error("expected some requests to be rejected")
	}
}

func TestIntegrationRateLimitIPConcurrency(t *testing.T) {
	limiter := newRedisLimiter(t)
	handler := RateLimitIP(RateLimitConfig{
		Limiter:           limiter,
		IntakeEnabled:     true,
		IntakeRPS:         5,
		IntakeBurst:       3,
		TrustProxyHeaders: true,
	})(okHandler())

	var rejected int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/functions/v1/createPrintJob", nil)
			req.Header.Set("X-Forwarded-For", "192.168.1.100")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code == http.StatusTooManyRequests {
				atomic.AddInt64(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	if rejected == 0 {
		t.Error("expected some requests to be rejected")
	}
}
