package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/repository"
)

// Account management errors.
var (
	ErrInvalidEmail        = errors.New("invalid email")
	ErrEmailExists         = errors.New("email already registered")
	ErrInvalidPlan         = errors.New("invalid plan")
	ErrInvalidCompanyName  = errors.New("company name must be 1-200 characters")
	ErrInvalidComputerName = errors.New("computer name must be 1-100 characters")
	ErrComputerLimit       = errors.New("computer limit reached for plan")
	ErrComputerNotFound    = errors.New("computer not found")
	ErrPrintJobNotFound    = errors.New("print job not found")
	ErrInvalidJobStatus    = errors.New("invalid job status")
	ErrInvalidKeyName      = errors.New("key name must be 1-100 characters")
	ErrInvalidScope        = errors.New("invalid scope")
	ErrAPIKeyNotFound      = errors.New("API key not found")
)

// Field limits and listing defaults.
const (
	maxCompanyNameLen  = 200
	maxComputerNameLen = 100
	maxKeyNameLen      = 100
	DefaultJobLimit    = 50
	MaxJobLimit        = 100
	recentJobsLimit    = 5
)

// AccountStore reads and writes accounts.
type AccountStore interface {
	AccountReader
	CreateAccount(ctx context.Context, account *model.Account) error
	UpdateCompanyName(ctx context.Context, id, companyName string) (*model.Account, error)
}

// ComputerStore manages registered computers.
type ComputerStore interface {
	CreateComputer(ctx context.Context, computer *model.Computer) error
	ListComputersByAccount(ctx context.Context, accountID string) ([]*model.Computer, error)
	CountComputersByAccount(ctx context.Context, accountID string) (int, error)
	DeleteComputer(ctx context.Context, accountID, id string) error
}

// PrintJobReader queries print jobs.
type PrintJobReader interface {
	GetPrintJob(ctx context.Context, accountID, id string) (*model.PrintJob, error)
	ListPrintJobs(ctx context.Context, filter repository.PrintJobFilter) ([]*model.PrintJob, error)
	CountPrintJobsByStatus(ctx context.Context, accountID string) (map[model.JobStatus]int, error)
}

// APIKeyStore manages API key records.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeysByAccount(ctx context.Context, accountID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, accountID, id string) (string, error)
}

// AccountService implements tenant-scoped account management.
// Every method takes the authenticated account ID and never touches
// rows owned by another account.
type AccountService struct {
	accounts  AccountStore
	computers ComputerStore
	jobs      PrintJobReader
	keys      APIKeyStore
	cache     AuthCache
	logger    *slog.Logger
	now       func() time.Time
}

// NewAccountService creates a new AccountService. cache may be nil.
func NewAccountService(
	accounts AccountStore,
	computers ComputerStore,
	jobs PrintJobReader,
	keys APIKeyStore,
	cache AuthCache,
	logger *slog.Logger,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		accounts:  accounts,
		computers: computers,
		jobs:      jobs,
		keys:      keys,
		cache:     cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ============================================================================
// Profile
// ============================================================================

// CreateAccountInput defines input for registering an account.
type CreateAccountInput struct {
	ID          string // identity provider user ID; generated when empty
	Email       string
	CompanyName string
	Plan        model.PlanID
}

// CreateAccount registers an account with a zeroed plan state.
func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput) (*model.Account, error) {
	email := strings.TrimSpace(input.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, ErrInvalidEmail
	}

	plan := input.Plan
	if plan == "" {
		plan = model.PlanFree
	}
	if !plan.IsValid() {
		return nil, ErrInvalidPlan
	}

	company := strings.TrimSpace(input.CompanyName)
	if utf8.RuneCountInString(company) > maxCompanyNameLen {
		return nil, ErrInvalidCompanyName
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now()
	account := &model.Account{
		ID:          id,
		Email:       email,
		CompanyName: company,
		Plan:        model.NewPlanState(plan, now),
		CreatedAt:   now,
	}

	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info("account created",
		slog.String("account_id", account.ID),
		slog.String("plan", string(plan)),
	)
	return account, nil
}

// GetAccount returns the account and its plan state.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// UpdateCompanyName changes the account's company name.
func (s *AccountService) UpdateCompanyName(ctx context.Context, accountID, companyName string) (*model.Account, error) {
	name := strings.TrimSpace(companyName)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxCompanyNameLen {
		return nil, ErrInvalidCompanyName
	}

	account, err := s.accounts.UpdateCompanyName(ctx, accountID, name)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("update company name: %w", err)
	}
	return account, nil
}

// ============================================================================
// Computers
// ============================================================================

// ListComputers returns the account's computers, newest first.
func (s *AccountService) ListComputers(ctx context.Context, accountID string) ([]*model.Computer, error) {
	computers, err := s.computers.ListComputersByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list computers: %w", err)
	}
	return computers, nil
}

// RegisterComputer adds an offline computer, enforcing the plan's
// computer limit.
func (s *AccountService) RegisterComputer(ctx context.Context, accountID, name string) (*model.Computer, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxComputerNameLen {
		return nil, ErrInvalidComputerName
	}

	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	count, err := s.computers.CountComputersByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("count computers: %w", err)
	}
	if count >= account.Plan.MaxComputers {
		return nil, ErrComputerLimit
	}

	computer := &model.Computer{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		Name:      name,
		Status:    model.ComputerOffline,
		CreatedAt: s.now(),
	}

	if err := s.computers.CreateComputer(ctx, computer); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("create computer: %w", err)
	}

	s.logger.Info("computer registered",
		slog.String("account_id", accountID),
		slog.String("computer_id", computer.ID),
	)
	return computer, nil
}

// DeleteComputer removes one of the account's computers.
func (s *AccountService) DeleteComputer(ctx context.Context, accountID, computerID string) error {
	if err := s.computers.DeleteComputer(ctx, accountID, computerID); err != nil {
		if errors.Is(err, repository.ErrComputerNotFound) {
			return ErrComputerNotFound
		}
		return fmt.Errorf("delete computer: %w", err)
	}
	return nil
}

// ============================================================================
// Print jobs
// ============================================================================

// ListPrintJobsInput defines the job listing query.
type ListPrintJobsInput struct {
	Status model.JobStatus
	Limit  int
}

// ListPrintJobs returns the account's jobs, newest first.
func (s *AccountService) ListPrintJobs(ctx context.Context, accountID string, input ListPrintJobsInput) ([]*model.PrintJob, error) {
	if input.Status != "" && !input.Status.IsValid() {
		return nil, ErrInvalidJobStatus
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultJobLimit
	}
	if limit > MaxJobLimit {
		limit = MaxJobLimit
	}

	jobs, err := s.jobs.ListPrintJobs(ctx, repository.PrintJobFilter{
		AccountID: accountID,
		Status:    input.Status,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list print jobs: %w", err)
	}
	return jobs, nil
}

// GetPrintJob returns one of the account's jobs.
func (s *AccountService) GetPrintJob(ctx context.Context, accountID, jobID string) (*model.PrintJob, error) {
	job, err := s.jobs.GetPrintJob(ctx, accountID, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrPrintJobNotFound) {
			return nil, ErrPrintJobNotFound
		}
		return nil, fmt.Errorf("get print job: %w", err)
	}
	return job, nil
}

// ============================================================================
// Dashboard
// ============================================================================

// Dashboard aggregates the account overview.
type Dashboard struct {
	Plan            model.PlanState         `json:"plan"`
	RemainingPrints int                     `json:"remaining_prints"`
	TotalJobs       int                     `json:"total_jobs"`
	JobsByStatus    map[model.JobStatus]int `json:"jobs_by_status"`
	ComputersTotal  int                     `json:"computers_total"`
	ComputersOnline int                     `json:"computers_online"`
	RecentJobs      []*model.PrintJob       `json:"recent_jobs"`
}

// GetDashboard builds the overview. Any read failure is returned as an error.
func (s *AccountService) GetDashboard(ctx context.Context, accountID string) (*Dashboard, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	counts, err := s.jobs.CountPrintJobsByStatus(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("count print jobs: %w", err)
	}

	computers, err := s.computers.ListComputersByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list computers: %w", err)
	}

	recent, err := s.jobs.ListPrintJobs(ctx, repository.PrintJobFilter{
		AccountID: accountID,
		Limit:     recentJobsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}

	byStatus := make(map[model.JobStatus]int, len(model.JobStatuses))
	total := 0
	for _, status := range model.JobStatuses {
		byStatus[status] = counts[status]
		total += counts[status]
	}

	online := 0
	for _, c := range computers {
		if c.IsOnline() {
			online++
		}
	}

	if recent == nil {
		recent = []*model.PrintJob{}
	}

	return &Dashboard{
		Plan:            account.Plan,
		RemainingPrints: account.Plan.RemainingPrints(),
		TotalJobs:       total,
		JobsByStatus:    byStatus,
		ComputersTotal:  len(computers),
		ComputersOnline: online,
		RecentJobs:      recent,
	}, nil
}

// ============================================================================
// API keys
// ============================================================================

// CreateAPIKeyInput defines input for minting a key.
type CreateAPIKeyInput struct {
	Name   string
	Scopes []string
}

// CreatedAPIKey is a freshly minted key. Plaintext is never stored.
type CreatedAPIKey struct {
	Key       *model.APIKey
	Plaintext string
}

// CreateAPIKey mints a key for the account.
func (s *AccountService) CreateAPIKey(ctx context.Context, accountID string, input CreateAPIKeyInput) (*CreatedAPIKey, error) {
	name := strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxKeyNameLen {
		return nil, ErrInvalidKeyName
	}

	scopes := input.Scopes
	if len(scopes) == 0 {
		scopes = append([]string(nil), model.DefaultScopes...)
	}
	for _, scope := range scopes {
		if !model.IsValidScope(scope) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidScope, scope)
		}
	}

	generated, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generate API key: %w", err)
	}

	key := &model.APIKey{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		Name:      name,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		CreatedAt: s.now(),
	}

	if err := s.keys.CreateAPIKey(ctx, key); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("store API key: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.ClearKeyUnknown(ctx, key.KeyHash)
	}

	s.logger.Info("API key created",
		slog.String("account_id", accountID),
		slog.String("key_id", key.ID),
		slog.String("key_prefix", key.KeyPrefix),
	)

	return &CreatedAPIKey{Key: key, Plaintext: generated.Plaintext}, nil
}

// ListAPIKeys returns the account's keys.
func (s *AccountService) ListAPIKeys(ctx context.Context, accountID string) ([]*model.APIKey, error) {
	keys, err := s.keys.ListAPIKeysByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list API keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey revokes one of the account's keys and evicts its cached auth.
func (s *AccountService) RevokeAPIKey(ctx context.Context, accountID, keyID string) error {
	keyHash, err := s.keys.RevokeAPIKey(ctx, accountID, keyID)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ErrAPIKeyNotFound
		}
		return fmt.Errorf("revoke API key: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.MarkKeyRevoked(ctx, keyHash); err != nil {
			s.logger.Warn("failed to mark revoked key in auth cache",
				slog.String("key_id", keyID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.cache.DeleteAuthContext(ctx, keyHash); err != nil {
			s.logger.Warn("failed to evict revoked key from auth cache",
				slog.String("key_id", keyID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("API key revoked",
		slog.String("account_id", accountID),
		slog.String("key_id", keyID),
	)
	return nil
}
