package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/model"
)

func serveWithScopes(t *testing.T, mw func(http.Handler) http.Handler, scopes []string) *httptest.ResponseRecorder {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
	if scopes != nil {
		req = req.WithContext(auth.ContextWithAuth(req.Context(), &model.AuthContext{
			KeyID:     "key123",
			KeyPrefix: "pk_live_abc123",
			AccountID: "acct_1",
			Scopes:    scopes,
		}))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireScope(t *testing.T) {
	testCases := []struct {
		name          string
		scopes        []string
		requiredScope string
		wantStatus    int
	}{
		{"read allows read", []string{model.ScopeRead}, model.ScopeRead, http.StatusOK},
		{"print allows print", []string{model.ScopePrint}, model.ScopePrint, http.StatusOK},
		{"admin allows read", []string{model.ScopeAdmin}, model.ScopeRead, http.StatusOK},
		{"admin allows print", []string{model.ScopeAdmin}, model.ScopePrint, http.StatusOK},
		{"admin allows admin", []string{model.ScopeAdmin}, model.ScopeAdmin, http.StatusOK},
		{"default scopes allow print", model.DefaultScopes, model.ScopePrint, http.StatusOK},
		{"read cannot print", []string{model.ScopeRead}, model.ScopePrint, http.StatusForbidden},
		{"print cannot read", []string{model.ScopePrint}, model.ScopeRead, http.StatusForbidden},
		{"default scopes cannot admin", model.DefaultScopes, model.ScopeAdmin, http.StatusForbidden},
		{"empty scopes forbidden", []string{}, model.ScopeRead, http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serveWithScopes(t, RequireScope(tc.requiredScope), tc.scopes)
			if rec.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestRequireScope_AnyOf(t *testing.T) {
	rec := serveWithScopes(t, RequireScope(model.ScopeAdmin, model.ScopeRead), []string{model.ScopeRead})
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestRequireScope_ForbiddenBody(t *testing.T) {
	rec := serveWithScopes(t, RequireAdmin(), []string{model.ScopeRead})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "FORBIDDEN" {
		t.Errorf("code = %q, want FORBIDDEN", body.Error.Code)
	}
	if body.Error.Message != "Insufficient permissions. Required scope: admin" {
		t.Errorf("message = %q", body.Error.Message)
	}
}

func TestRequireScope_NoAuthContext(t *testing.T) {
	rec := serveWithScopes(t, RequireRead(), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestConvenienceMiddleware(t *testing.T) {
	testCases := []struct {
		name       string
		middleware func() func(http.Handler) http.Handler
	}{
		{"RequireRead", RequireRead},
		{"RequireAdmin", RequireAdmin},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serveWithScopes(t, tc.middleware(), []string{model.ScopeAdmin})
			if rec.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
		})
	}
}
