// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/metrics"
	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/repository"
)

// Authentication errors.
var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// lastUsedTimeout bounds the detached last_used_at update.
const lastUsedTimeout = 5 * time.Second

// KeyLookup resolves stored API keys by hash.
type KeyLookup interface {
	GetActiveAPIKeyByHash(ctx context.Context, keyHash string) (*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AccountReader loads an account with its plan state.
type AccountReader interface {
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
}

// AuthCache caches resolved auth contexts by key hash.
type AuthCache interface {
	GetAuthContext(ctx context.Context, keyHash string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, keyHash string, authCtx *model.AuthContext) error
	DeleteAuthContext(ctx context.Context, keyHash string) error
	IsKeyUnknown(ctx context.Context, keyHash string) bool
	MarkKeyUnknown(ctx context.Context, keyHash string) error
	ClearKeyUnknown(ctx context.Context, keyHash string) error
	IsKeyRevoked(ctx context.Context, keyHash string) (bool, error)
	MarkKeyRevoked(ctx context.Context, keyHash string) error
}

// Authenticator turns a presented API key into an AuthContext.
type Authenticator struct {
	keys     KeyLookup
	accounts AccountReader
	cache    AuthCache
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewAuthenticator creates an Authenticator. cache may be nil.
func NewAuthenticator(keys KeyLookup, accounts AccountReader, cache AuthCache, logger *slog.Logger, recorder metrics.Recorder) *Authenticator {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		keys:     keys,
		accounts: accounts,
		cache:    cache,
		logger:   logger,
		metrics:  recorder,
	}
}

// Authenticate hashes rawKey with auth.HashAPIKey and resolves it to the
// owning account. Errors are ErrMissingAPIKey, ErrInvalidAPIKey, or a wrapped
// backend failure.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (*model.AuthContext, error) {
	if rawKey == "" {
		return nil, ErrMissingAPIKey
	}

	keyHash := auth.HashAPIKey(rawKey)

	if a.cache != nil {
		// A lookup racing a revocation can cache the key after its eviction;
		// the revoked marker outlives that entry. An unreadable marker skips
		// the cached entry.
		revoked, err := a.cache.IsKeyRevoked(ctx, keyHash)
		if revoked {
			return nil, ErrInvalidAPIKey
		}
		if err == nil {
			if cached, _ := a.cache.GetAuthContext(ctx, keyHash); cached != nil {
				a.metrics.IncAuthCacheHit()
				return cached, nil
			}
		}
		a.metrics.IncAuthCacheMiss()

		if a.cache.IsKeyUnknown(ctx, keyHash) {
			return nil, ErrInvalidAPIKey
		}
	}

	key, err := a.keys.GetActiveAPIKeyByHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			if a.cache != nil {
				_ = a.cache.MarkKeyUnknown(ctx, keyHash)
			}
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("lookup API key: %w", err)
	}

	if key.IsRevoked() || !auth.MatchesHash(rawKey, key.KeyHash) {
		return nil, ErrInvalidAPIKey
	}

	authCtx := &model.AuthContext{
		KeyID:     key.ID,
		KeyPrefix: key.KeyPrefix,
		AccountID: key.AccountID,
		Scopes:    key.Scopes,
		PlanID:    model.PlanFree,
	}

	// The plan only selects a rate limit tier here; quota checks always
	// read the account fresh.
	if account, err := a.accounts.GetAccountByID(ctx, key.AccountID); err == nil {
		authCtx.PlanID = account.Plan.PlanID
	}

	if a.cache != nil {
		_ = a.cache.SetAuthContext(ctx, keyHash, authCtx)
	}

	a.touchLastUsed(ctx, key.ID)

	return authCtx, nil
}

// touchLastUsed records key usage without delaying the request.
func (a *Authenticator) touchLastUsed(ctx context.Context, keyID string) {
	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, lastUsedTimeout)
		defer cancel()
		if err := a.keys.UpdateAPIKeyLastUsed(ctx, keyID); err != nil {
			a.logger.Warn("failed to update key last_used_at",
				slog.String("key_id", keyID),
				slog.String("error", err.Error()),
			)
		}
	}()
}
