package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/remoteprint/remoteprint/internal/metrics"
	"github.com/remoteprint/remoteprint/internal/model"
)

// ErrListAccounts is returned when the reset job cannot enumerate accounts.
var ErrListAccounts = errors.New("failed to fetch users")

// ResetCompletedMessage is reported after every completed reset run.
const ResetCompletedMessage = "Monthly reset completed"

// UsageResetter lists accounts and resets their monthly usage.
type UsageResetter interface {
	ListAccounts(ctx context.Context) ([]*model.Account, error)
	ResetPrintCount(ctx context.Context, accountID string, cycleStart time.Time) error
}

// ResetResult summarizes one reset run.
type ResetResult struct {
	Message      string `json:"message"`
	UpdatedUsers int    `json:"updatedUsers"`
	TotalUsers   int    `json:"totalUsers"`
}

// ResetService zeroes monthly print counters.
type ResetService struct {
	accounts UsageResetter
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewResetService creates a new ResetService.
func NewResetService(accounts UsageResetter, logger *slog.Logger, recorder metrics.Recorder) *ResetService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetService{
		accounts: accounts,
		logger:   logger,
		metrics:  recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run resets every account one at a time. A failed account is logged and
// skipped; there is no rollback. Every account in a run gets the same cycle
// start timestamp.
func (s *ResetService) Run(ctx context.Context) (*ResetResult, error) {
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		s.logger.Error("monthly reset could not list accounts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrListAccounts, err)
	}

	cycleStart := s.now()
	updated := 0

	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("monthly reset interrupted",
				slog.Int("updated", updated),
				slog.Int("total", len(accounts)),
			)
			break
		}

		if err := s.accounts.ResetPrintCount(ctx, account.ID, cycleStart); err != nil {
			s.logger.Error("monthly reset failed for account",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		updated++
	}

	s.metrics.ObserveResetRun(len(accounts), updated)
	s.logger.Info("monthly reset completed",
		slog.Int("updated", updated),
		slog.Int("total", len(accounts)),
		slog.Time("cycle_start", cycleStart),
	)

	return &ResetResult{
		Message:      ResetCompletedMessage,
		UpdatedUsers: updated,
		TotalUsers:   len(accounts),
	}, nil
}
