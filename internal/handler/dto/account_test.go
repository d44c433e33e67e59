package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/remoteprint/remoteprint/internal/model"
)

func TestToAccountResponse(t *testing.T) {
	state := model.NewPlanState(model.PlanPro, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	state.MonthlyPrintCount = 120
	account := &model.Account{ID: "acct_1", Email: "ops@example.com", Plan: state}

	resp := ToAccountResponse(account)

	if resp.PlanName != "Pro" {
		t.Errorf("PlanName = %q, want Pro", resp.PlanName)
	}
	if resp.RemainingPrints != 380 {
		t.Errorf("RemainingPrints = %d, want 380", resp.RemainingPrints)
	}
}

func TestNewListResponse_NilRendersEmptyArray(t *testing.T) {
	raw, err := json.Marshal(NewListResponse[*model.Computer](nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"data":[]}` {
		t.Errorf("got %s, want {\"data\":[]}", raw)
	}
}

func TestToAPIKeyResponses_OmitsHash(t *testing.T) {
	keys := []*model.APIKey{{ID: "k1", KeyHash: "deadbeef", KeyPrefix: "pk_live_abc123", Scopes: model.DefaultScopes}}

	raw, err := json.Marshal(ToAPIKeyResponses(keys))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(raw); strings.Contains(got, "deadbeef") {
		t.Errorf("hash leaked in %s", got)
	}
}

func TestToAPIKeyResponses(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	revoked := created.Add(time.Hour)
	keys := []*model.APIKey{
		{ID: "k1", Name: "ci", KeyPrefix: "pk_live_aaaaaa", Scopes: model.DefaultScopes, CreatedAt: created},
		{ID: "k2", Name: "old", KeyPrefix: "pk_live_bbbbbb", Scopes: []string{model.ScopeAdmin}, CreatedAt: created, RevokedAt: &revoked},
	}

	want := []model.APIKeyResponse{
		{ID: "k1", Name: "ci", KeyPrefix: "pk_live_aaaaaa", Scopes: model.DefaultScopes, CreatedAt: created},
		{ID: "k2", Name: "old", KeyPrefix: "pk_live_bbbbbb", Scopes: []string{model.ScopeAdmin}, CreatedAt: created, Revoked: true},
	}
	if diff := cmp.Diff(want, ToAPIKeyResponses(keys)); diff != "" {
		t.Errorf("ToAPIKeyResponses mismatch (-want +got):\n%s", diff)
	}
}

func TestToAPIKeyCreateResponse(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	key := &model.APIKey{ID: "k1", Name: "ci", KeyHash: "deadbeef", KeyPrefix: "pk_live_aaaaaa", Scopes: model.DefaultScopes, CreatedAt: created}

	want := model.APIKeyCreateResponse{
		ID:        "k1",
		Key:       "pk_live_aaaaaa_0123456789abcdef0123456789abcdef",
		Name:      "ci",
		KeyPrefix: "pk_live_aaaaaa",
		Scopes:    model.DefaultScopes,
		CreatedAt: created,
	}
	got := ToAPIKeyCreateResponse(key, "pk_live_aaaaaa_0123456789abcdef0123456789abcdef")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToAPIKeyCreateResponse mismatch (-want +got):\n%s", diff)
	}
}
