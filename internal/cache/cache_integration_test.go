//go:build integration

package cache

import (
	"context"
	"testing"

	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/testutil"
)

func newCacheTestEnv(t *testing.T) (context.Context, *Cache) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	c, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	return ctx, c
}

func TestIntegrationCache_AuthContextLifecycle(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	hash := "0f0f"
	miss, err := c.GetAuthContext(ctx, hash)
	if err != nil || miss != nil {
		t.Fatalf("expected clean miss, got %v, %v", miss, err)
	}

	want := &model.AuthContext{KeyID: "k1", AccountID: "a1", Scopes: []string{model.ScopePrint}, PlanID: model.PlanFree}
	if err := c.SetAuthContext(ctx, hash, want); err != nil {
		t.Fatalf("SetAuthContext failed: %v", err)
	}

	got, err := c.GetAuthContext(ctx, hash)
	if err != nil || got == nil {
		t.Fatalf("expected hit, got %v, %v", got, err)
	}
	if got.AccountID != "a1" || got.PlanID != model.PlanFree {
		t.Errorf("unexpected auth context: %+v", got)
	}

	if err := c.DeleteAuthContext(ctx, hash); err != nil {
		t.Fatalf("DeleteAuthContext failed: %v", err)
	}
	if got, _ := c.GetAuthContext(ctx, hash); got != nil {
		t.Error("expected miss after delete")
	}
}

func TestIntegrationCache_NegativeKeyEntries(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	if c.IsKeyUnknown(ctx, "beef") {
		t.Fatal("fresh hash should not be marked unknown")
	}
	if err := c.MarkKeyUnknown(ctx, "beef"); err != nil {
		t.Fatalf("MarkKeyUnknown failed: %v", err)
	}
	if !c.IsKeyUnknown(ctx, "beef") {
		t.Error("hash should be marked unknown")
	}
	if err := c.ClearKeyUnknown(ctx, "beef"); err != nil {
		t.Fatalf("ClearKeyUnknown failed: %v", err)
	}
	if c.IsKeyUnknown(ctx, "beef") {
		t.Error("hash should be cleared")
	}
}

func TestIntegrationCache_RevokedMarker(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	revoked, err := c.IsKeyRevoked(ctx, "cafe")
	if err != nil {
		t.Fatalf("IsKeyRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("fresh hash should not be revoked")
	}
	if err := c.MarkKeyRevoked(ctx, "cafe"); err != nil {
		t.Fatalf("MarkKeyRevoked failed: %v", err)
	}
	revoked, err = c.IsKeyRevoked(ctx, "cafe")
	if err != nil {
		t.Fatalf("IsKeyRevoked failed: %v", err)
	}
	if !revoked {
		t.Error("hash should be marked revoked")
	}
	if ttl := c.Client().TTL(ctx, authRevPrefix+"cafe").Val(); ttl <= authCacheTTL {
		t.Errorf("revoked marker TTL %v should exceed auth cache TTL %v", ttl, authCacheTTL)
	}
}

func TestIntegrationCache_IPRateLimitExhausts(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	const burst = 3
	for i := 0; i < burst; i++ {
		result, err := c.CheckIPRateLimit(ctx, "203.0.113.9", 1, burst)
		if err != nil {
			t.Fatalf("CheckIPRateLimit failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	result, err := c.CheckIPRateLimit(ctx, "203.0.113.9", 1, burst)
	if err != nil {
		t.Fatalf("CheckIPRateLimit failed: %v", err)
	}
	if result.Allowed {
		t.Error("request past burst should be denied")
	}
}

func TestIntegrationCache_APIRateLimitEnterpriseUnlimited(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	for i := 0; i < 100; i++ {
		result, err := c.CheckAPIRateLimit(ctx, "enterprise-key", model.PlanEnterprise)
		if err != nil {
			t.Fatalf("CheckAPIRateLimit failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("enterprise request %d should be allowed", i)
		}
	}
}
