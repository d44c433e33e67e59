// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/remoteprint/remoteprint/internal/model"
)

// UpdateAccountRequest is the body of PATCH /api/v1/account.
type UpdateAccountRequest struct {
	CompanyName string `json:"company_name"`
}

// RegisterComputerRequest is the body of POST /api/v1/computers.
type RegisterComputerRequest struct {
	ComputerName string `json:"computer_name"`
}

// CreateAPIKeyRequest is the body of POST /api/v1/api-keys.
type CreateAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes,omitempty"`
}

// AccountResponse is an account with its plan usage.
type AccountResponse struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	CompanyName     string          `json:"company_name,omitempty"`
	Plan            model.PlanState `json:"plan_details"`
	PlanName        string          `json:"plan_name"`
	RemainingPrints int             `json:"remaining_prints"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToAccountResponse converts an Account model to AccountResponse.
func ToAccountResponse(account *model.Account) *AccountResponse {
	return &AccountResponse{
		ID:              account.ID,
		Email:           account.Email,
		CompanyName:     account.CompanyName,
		Plan:            account.Plan,
		PlanName:        model.LookupPlan(account.Plan.PlanID).Name,
		RemainingPrints: account.Plan.RemainingPrints(),
		CreatedAt:       account.CreatedAt,
	}
}

// ListResponse wraps collection responses.
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

// NewListResponse wraps items, rendering nil as an empty array.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items}
}

// ToAPIKeyResponses converts keys to their secret-free form.
func ToAPIKeyResponses(keys []*model.APIKey) []model.APIKeyResponse {
	out := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.ToResponse())
	}
	return out
}

// ToAPIKeyCreateResponse includes the plaintext key, shown once.
func ToAPIKeyCreateResponse(key *model.APIKey, plaintext string) model.APIKeyCreateResponse {
	return model.APIKeyCreateResponse{
		ID:        key.ID,
		Key:       plaintext,
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		Scopes:    key.Scopes,
		CreatedAt: key.CreatedAt,
	}
}
