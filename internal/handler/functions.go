package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/middleware"
	"github.com/remoteprint/remoteprint/internal/service"
)

// Intake response messages.
const (
	MsgJobCreated      = "Print job created successfully"
	MsgMissingKey      = "Missing API key"
	MsgInvalidKey      = "Invalid API key"
	MsgForbidden       = "API key lacks print permission"
	MsgUserNotFound    = "User not found"
	MsgQuotaExceeded   = "Monthly print limit exceeded"
	MsgInvalidJSON     = "Invalid JSON body"
	MsgMissingFields   = "Missing required fields: file_content_base64, printer_id, title"
	MsgInvalidFile     = "Invalid file_content_base64"
	MsgUploadFailed    = "File upload failed"
	MsgCreateFailed    = "Failed to create print job"
	MsgInternal        = "Internal server error"
	MsgBodyTooLarge    = "Request body too large"
	MsgUnauthorized    = "Unauthorized"
	MsgFetchUsersError = "Failed to fetch users"
)

// PrintJobSubmitter runs the print job intake pipeline.
type PrintJobSubmitter interface {
	Submit(ctx context.Context, in service.SubmitInput) (*service.SubmitResult, error)
}

// MonthlyResetter runs the monthly usage reset.
type MonthlyResetter interface {
	Run(ctx context.Context) (*service.ResetResult, error)
}

// FunctionsConfig configures the /functions/v1 handlers.
type FunctionsConfig struct {
	Logger *slog.Logger
	Intake PrintJobSubmitter
	Reset  MonthlyResetter
	// MaxBodySize bounds the intake request body in bytes.
	MaxBodySize int64
	// ResetTokenHash is the argon2id hash of the operator token required
	// by the reset endpoint. Empty leaves the endpoint open.
	ResetTokenHash string
}

// FunctionsHandler serves the /functions/v1 endpoints.
type FunctionsHandler struct {
	logger         *slog.Logger
	intake         PrintJobSubmitter
	reset          MonthlyResetter
	maxBodySize    int64
	resetTokenHash string
}

// NewFunctionsHandler creates a new FunctionsHandler.
func NewFunctionsHandler(cfg FunctionsConfig) *FunctionsHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FunctionsHandler{
		logger:         logger,
		intake:         cfg.Intake,
		reset:          cfg.Reset,
		maxBodySize:    cfg.MaxBodySize,
		resetTokenHash: cfg.ResetTokenHash,
	}
}

// CreatePrintJobResponse is the 202 intake body.
type CreatePrintJobResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreatePrintJob handles POST /functions/v1/createPrintJob.
// Without a bearer key the body is never read, so a missing key is a 401
// whatever the body holds.
func (h *FunctionsHandler) CreatePrintJob(w http.ResponseWriter, r *http.Request) {
	apiKey := middleware.BearerToken(r)
	if apiKey == "" {
		h.submit(w, r, service.SubmitInput{})
		return
	}

	body := r.Body
	if h.maxBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFlatError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		writeFlatError(w, http.StatusBadRequest, MsgInvalidJSON)
		return
	}

	h.submit(w, r, service.SubmitInput{APIKey: apiKey, Body: raw})
}

func (h *FunctionsHandler) submit(w http.ResponseWriter, r *http.Request, in service.SubmitInput) {
	result, err := h.intake.Submit(r.Context(), in)
	if err != nil {
		status, msg := intakeError(err)
		writeFlatError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusAccepted, CreatePrintJobResponse{
		JobID:   result.JobID,
		Status:  result.Status,
		Message: MsgJobCreated,
	})
}

// intakeError maps an intake pipeline error to its status and message.
func intakeError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingAPIKey):
		return http.StatusUnauthorized, MsgMissingKey
	case errors.Is(err, service.ErrInvalidAPIKey):
		return http.StatusUnauthorized, MsgInvalidKey
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, MsgForbidden
	case errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound, MsgUserNotFound
	case errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusTooManyRequests, MsgQuotaExceeded
	case errors.Is(err, service.ErrInvalidBody):
		return http.StatusBadRequest, MsgInvalidJSON
	case errors.Is(err, service.ErrMissingFields):
		return http.StatusBadRequest, MsgMissingFields
	case errors.Is(err, service.ErrInvalidFile):
		return http.StatusBadRequest, MsgInvalidFile
	case errors.Is(err, service.ErrStorage):
		return http.StatusInternalServerError, MsgUploadFailed
	case errors.Is(err, service.ErrPersistence):
		return http.StatusInternalServerError, MsgCreateFailed
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}

// ResetMonthlyCount handles POST /functions/v1/resetMonthlyCount.
func (h *FunctionsHandler) ResetMonthlyCount(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeReset(r) {
		h.logger.Warn("reset rejected",
			slog.String("reason", "unauthorized"),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeFlatError(w, http.StatusUnauthorized, MsgUnauthorized)
		return
	}

	result, err := h.reset.Run(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrListAccounts) {
			writeFlatError(w, http.StatusInternalServerError, MsgFetchUsersError)
			return
		}
		writeFlatError(w, http.StatusInternalServerError, MsgInternal)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *FunctionsHandler) authorizeReset(r *http.Request) bool {
	if h.resetTokenHash == "" {
		return true
	}
	token := middleware.BearerToken(r)
	if token == "" {
		return false
	}
	ok, err := auth.VerifySecret(token, h.resetTokenHash)
	if err != nil {
		h.logger.Error("reset token hash unusable", slog.String("error", err.Error()))
		return false
	}
	return ok
}

// Preflight answers OPTIONS with an empty 200. CORS headers come from
// middleware.FunctionCORS.
func (h *FunctionsHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
