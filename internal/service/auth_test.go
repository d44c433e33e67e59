package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remoteprint/remoteprint/internal/model"
)

func TestAuthenticator_CachesAndRecordsUsage(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	cache := newFakeCache()
	db.addAccount("acct-1", model.PlanPro, 0)
	key := db.addKey("acct-1", "abc123", model.ScopePrint)

	a := NewAuthenticator(db, db, cache, nil, nil)

	authCtx, err := a.Authenticate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, key.ID, authCtx.KeyID)
	assert.Equal(t, model.PlanPro, authCtx.PlanID)
	assert.True(t, authCtx.HasScope(model.ScopePrint))
	assert.False(t, authCtx.HasScope(model.ScopeRead))

	_, err = a.Authenticate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, 1, db.lookups, "second call served from cache")

	assert.Eventually(t, func() bool {
		db.mu.Lock()
		defer db.mu.Unlock()
		return len(db.lastUsed) == 1 && db.lastUsed[0] == key.ID
	}, time.Second, 10*time.Millisecond)
}

func TestAuthenticator_NegativeCacheSkipsLookup(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	cache := newFakeCache()
	a := NewAuthenticator(db, db, cache, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := a.Authenticate(context.Background(), "unknown-key")
		assert.ErrorIs(t, err, ErrInvalidAPIKey)
	}
	assert.Equal(t, 1, db.lookups)
}

func TestAuthenticator_WithoutCache(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	db.addAccount("acct-1", model.PlanFree, 0)
	db.addKey("acct-1", "abc123")
	a := NewAuthenticator(db, db, nil, nil, nil)

	_, err := a.Authenticate(context.Background(), "abc123")
	require.NoError(t, err)
	_, err = a.Authenticate(context.Background(), "other")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
	_, err = a.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestAuthenticator_MissingAccountFallsBackToFreeTier(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	db.addKey("ghost", "abc123")
	a := NewAuthenticator(db, db, nil, nil, nil)

	authCtx, err := a.Authenticate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, authCtx.PlanID)
}
