package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/remoteprint/remoteprint/internal/metrics"
	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/repository"
	"github.com/remoteprint/remoteprint/internal/storage"
)

// Intake errors. Each one ends the request.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrQuotaExceeded   = errors.New("monthly print limit exceeded")
	ErrInvalidBody     = errors.New("invalid JSON body")
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidFile     = errors.New("invalid file_content_base64")
	ErrStorage         = errors.New("file upload failed")
	ErrPersistence     = errors.New("failed to create print job")
	ErrForbidden       = errors.New("api key lacks print scope")
)

// JobStatusEnqueued is the literal status reported to callers on acceptance.
const JobStatusEnqueued = "enqueued"

// PrintJobStore persists print jobs and usage counters.
type PrintJobStore interface {
	CreatePrintJob(ctx context.Context, job *model.PrintJob) error
	IncrementPrintCount(ctx context.Context, accountID string) (int, error)
}

// SubmitInput is one intake request: the raw bearer key and the raw body.
type SubmitInput struct {
	APIKey string
	Body   []byte
}

// SubmitResult describes an accepted job.
type SubmitResult struct {
	JobID       string
	Status      string
	StoragePath string
	PrintCount  int
}

// printJobRequest is the intake request body.
type printJobRequest struct {
	FileContentBase64 string `json:"file_content_base64"`
	PrinterID         string `json:"printer_id"`
	Title             string `json:"title"`
}

// PrintJobService authenticates, quota-checks, stores and records print jobs.
type PrintJobService struct {
	auth     *Authenticator
	accounts AccountReader
	jobs     PrintJobStore
	store    storage.Store
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
	newID    func() string
}

// NewPrintJobService creates a new PrintJobService.
func NewPrintJobService(
	authenticator *Authenticator,
	accounts AccountReader,
	jobs PrintJobStore,
	store storage.Store,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *PrintJobService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PrintJobService{
		auth:     authenticator,
		accounts: accounts,
		jobs:     jobs,
		store:    store,
		logger:   logger,
		metrics:  recorder,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return ulid.Make().String() },
	}
}

// Submit runs the intake pipeline. Steps run strictly in order and the
// first failure is returned: authenticate, load account, check quota,
// validate body, decode and store the file, insert the job row, bump the
// usage counter. A counter failure is logged and does not fail the job.
//
// The quota check and the increment are separate statements, so concurrent
// submissions near the limit can both pass.
func (s *PrintJobService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveIntakeDuration(time.Since(start)) }()

	authCtx, err := s.auth.Authenticate(ctx, in.APIKey)
	if err != nil {
		return nil, s.reject(ctx, err, "")
	}
	if !authCtx.HasScope(model.ScopePrint) {
		return nil, s.reject(ctx, ErrForbidden, authCtx.AccountID)
	}

	account, err := s.accounts.GetAccountByID(ctx, authCtx.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, s.reject(ctx, ErrAccountNotFound, authCtx.AccountID)
		}
		return nil, s.reject(ctx, fmt.Errorf("load account: %w", err), authCtx.AccountID)
	}

	if account.Plan.QuotaExceeded() {
		return nil, s.reject(ctx, ErrQuotaExceeded, account.ID)
	}

	req, err := parsePrintJobRequest(in.Body)
	if err != nil {
		return nil, s.reject(ctx, err, account.ID)
	}

	data, err := decodeFileContent(req.FileContentBase64)
	if err != nil {
		return nil, s.reject(ctx, ErrInvalidFile, account.ID)
	}

	now := s.now()
	objectPath, err := storage.NewJobPath(account.ID, now)
	if err != nil {
		return nil, s.reject(ctx, fmt.Errorf("%w: %v", ErrStorage, err), account.ID)
	}

	if err := s.store.Put(ctx, objectPath, data, storage.ContentTypePDF); err != nil {
		return nil, s.reject(ctx, fmt.Errorf("%w: %v", ErrStorage, err), account.ID)
	}
	s.metrics.ObserveUploadBytes(len(data))

	job := &model.PrintJob{
		ID:              s.newID(),
		AccountID:       account.ID,
		PrinterID:       req.PrinterID,
		Status:          model.JobPending,
		FileStoragePath: objectPath,
		Title:           req.Title,
		CreatedAt:       now,
	}

	// The stored file is left in place if this insert fails.
	if err := s.jobs.CreatePrintJob(ctx, job); err != nil {
		s.logger.Error("print job insert failed, stored file orphaned",
			slog.String("account_id", account.ID),
			slog.String("storage_path", objectPath),
			slog.String("error", err.Error()),
		)
		return nil, s.reject(ctx, fmt.Errorf("%w: %v", ErrPersistence, err), account.ID)
	}

	count, err := s.jobs.IncrementPrintCount(ctx, account.ID)
	if err != nil {
		s.metrics.IncQuotaIncrementFailed()
		s.logger.Error("failed to increment monthly print count",
			slog.String("account_id", account.ID),
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		count = account.Plan.MonthlyPrintCount
	}

	s.metrics.IncPrintJobAccepted()
	s.logger.Info("print job enqueued",
		slog.String("account_id", account.ID),
		slog.String("job_id", job.ID),
		slog.String("printer_id", job.PrinterID),
		slog.Int("size_bytes", len(data)),
		slog.Int("monthly_print_count", count),
	)

	return &SubmitResult{
		JobID:       job.ID,
		Status:      JobStatusEnqueued,
		StoragePath: objectPath,
		PrintCount:  count,
	}, nil
}

// parsePrintJobRequest unmarshals and validates the body.
// The file content is only checked for presence here, never decoded.
func parsePrintJobRequest(body []byte) (*printJobRequest, error) {
	var req printJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, ErrInvalidBody
	}
	if req.FileContentBase64 == "" || req.PrinterID == "" || req.Title == "" {
		return nil, ErrMissingFields
	}
	return &req, nil
}

// decodeFileContent decodes standard base64, padded or not.
func decodeFileContent(s string) ([]byte, error) {
	if len(s)%4 != 0 {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return base64.StdEncoding.DecodeString(s)
}

// reject logs and counts a failed submission and returns err unchanged.
func (s *PrintJobService) reject(ctx context.Context, err error, accountID string) error {
	reason := RejectReason(err)
	s.metrics.IncPrintJobRejected(reason)

	attrs := []any{
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	}
	if accountID != "" {
		attrs = append(attrs, slog.String("account_id", accountID))
	}

	level := slog.LevelWarn
	if reason == metrics.ReasonStorage || reason == metrics.ReasonPersistence || reason == metrics.ReasonInternal {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "print job rejected", attrs...)

	return err
}

// RejectReason maps an intake error to its metrics reason label.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingAPIKey), errors.Is(err, ErrInvalidAPIKey):
		return metrics.ReasonUnauthenticated
	case errors.Is(err, ErrForbidden):
		return metrics.ReasonForbidden
	case errors.Is(err, ErrAccountNotFound):
		return metrics.ReasonNotFound
	case errors.Is(err, ErrQuotaExceeded):
		return metrics.ReasonQuotaExceeded
	case errors.Is(err, ErrInvalidBody), errors.Is(err, ErrMissingFields), errors.Is(err, ErrInvalidFile):
		return metrics.ReasonInvalidRequest
	case errors.Is(err, ErrStorage):
		return metrics.ReasonStorage
	case errors.Is(err, ErrPersistence):
		return metrics.ReasonPersistence
	default:
		return metrics.ReasonInternal
	}
}
