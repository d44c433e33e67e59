package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/handler/dto"
	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/service"
)

// AccountManager is the account-scoped management surface.
type AccountManager interface {
	GetAccount(ctx context.Context, accountID string) (*model.Account, error)
	UpdateCompanyName(ctx context.Context, accountID, companyName string) (*model.Account, error)
	GetDashboard(ctx context.Context, accountID string) (*service.Dashboard, error)
	ListComputers(ctx context.Context, accountID string) ([]*model.Computer, error)
	RegisterComputer(ctx context.Context, accountID, name string) (*model.Computer, error)
	DeleteComputer(ctx context.Context, accountID, computerID string) error
	ListPrintJobs(ctx context.Context, accountID string, input service.ListPrintJobsInput) ([]*model.PrintJob, error)
	GetPrintJob(ctx context.Context, accountID, jobID string) (*model.PrintJob, error)
	ListAPIKeys(ctx context.Context, accountID string) ([]*model.APIKey, error)
	CreateAPIKey(ctx context.Context, accountID string, input service.CreateAPIKeyInput) (*service.CreatedAPIKey, error)
	RevokeAPIKey(ctx context.Context, accountID, keyID string) error
}

// AccountHandler handles /api/v1 management requests. Every operation is
// scoped to the account of the authenticated key.
type AccountHandler struct {
	svc    AccountManager
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc AccountManager, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{svc: svc, logger: logger}
}

// accountID returns the authenticated account or writes a 401.
func (h *AccountHandler) accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := auth.AccountIDFromContext(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return "", false
	}
	return id, true
}

// GetAccount handles GET /api/v1/account.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	account, err := h.svc.GetAccount(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToAccountResponse(account))
}

// UpdateAccount handles PATCH /api/v1/account.
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	account, err := h.svc.UpdateCompanyName(r.Context(), accountID, req.CompanyName)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("account_updated", slog.String("account_id", accountID))
	writeJSON(w, http.StatusOK, dto.ToAccountResponse(account))
}

// GetDashboard handles GET /api/v1/dashboard.
func (h *AccountHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	dashboard, err := h.svc.GetDashboard(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// ListComputers handles GET /api/v1/computers.
func (h *AccountHandler) ListComputers(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	computers, err := h.svc.ListComputers(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(computers))
}

// RegisterComputer handles POST /api/v1/computers.
func (h *AccountHandler) RegisterComputer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req dto.RegisterComputerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	computer, err := h.svc.RegisterComputer(r.Context(), accountID, req.ComputerName)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, computer)
}

// DeleteComputer handles DELETE /api/v1/computers/{id}.
func (h *AccountHandler) DeleteComputer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteComputer(r.Context(), accountID, id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("computer_deleted",
		slog.String("account_id", accountID),
		slog.String("computer_id", id),
	)
	w.WriteHeader(http.StatusNoContent)
}

// ListPrintJobs handles GET /api/v1/print-jobs?status=&limit=.
func (h *AccountHandler) ListPrintJobs(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	input := service.ListPrintJobsInput{
		Status: model.JobStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		input.Limit = limit
	}

	jobs, err := h.svc.ListPrintJobs(r.Context(), accountID, input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(jobs))
}

// GetPrintJob handles GET /api/v1/print-jobs/{id}.
func (h *AccountHandler) GetPrintJob(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	job, err := h.svc.GetPrintJob(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListAPIKeys handles GET /api/v1/api-keys.
func (h *AccountHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	keys, err := h.svc.ListAPIKeys(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.ToAPIKeyResponses(keys)))
}

// CreateAPIKey handles POST /api/v1/api-keys.
func (h *AccountHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req dto.CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	created, err := h.svc.CreateAPIKey(r.Context(), accountID, service.CreateAPIKeyInput{
		Name:   req.Name,
		Scopes: req.Scopes,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToAPIKeyCreateResponse(created.Key, created.Plaintext))
}

// RevokeAPIKey handles DELETE /api/v1/api-keys/{id}.
func (h *AccountHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.RevokeAPIKey(r.Context(), accountID, id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPlans handles GET /plans. No authentication.
func ListPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewListResponse(model.Plans()))
}

// handleServiceError maps service errors to HTTP responses.
func (h *AccountHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
	case errors.Is(err, service.ErrComputerNotFound):
		writeError(w, http.StatusNotFound, "COMPUTER_NOT_FOUND", "Computer not found")
	case errors.Is(err, service.ErrPrintJobNotFound):
		writeError(w, http.StatusNotFound, "PRINT_JOB_NOT_FOUND", "Print job not found")
	case errors.Is(err, service.ErrAPIKeyNotFound):
		writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found or already revoked")
	case errors.Is(err, service.ErrComputerLimit):
		writeError(w, http.StatusForbidden, "COMPUTER_LIMIT", "Computer limit reached for plan")
	case errors.Is(err, service.ErrInvalidCompanyName):
		writeError(w, http.StatusBadRequest, "INVALID_COMPANY_NAME", err.Error())
	case errors.Is(err, service.ErrInvalidComputerName):
		writeError(w, http.StatusBadRequest, "INVALID_COMPUTER_NAME", err.Error())
	case errors.Is(err, service.ErrInvalidJobStatus):
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", "status must be one of pending, printing, completed, error")
	case errors.Is(err, service.ErrInvalidKeyName):
		writeError(w, http.StatusBadRequest, "INVALID_NAME", err.Error())
	case errors.Is(err, service.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, "INVALID_SCOPE", "Valid scopes: print, read, admin")
	default:
		h.logger.Error("management request failed",
			slog.String("error", err.Error()),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
