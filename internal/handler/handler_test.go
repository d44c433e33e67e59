package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/remoteprint/remoteprint/internal/metrics"
)

func TestHandler_Index(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["service"] != "remoteprint" || response["version"] != Version {
		t.Errorf("unexpected response: %v", response)
	}
}

func TestHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := New()

	tests := []struct {
		name       string
		serve      http.HandlerFunc
		wantStatus int
		wantCode   string
	}{
		{"not found", h.NotFound, http.StatusNotFound, "NOT_FOUND"},
		{"method not allowed", h.MethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.serve(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	recorder := metrics.NewInMemory()
	recorder.IncPrintJobAccepted()
	recorder.IncPrintJobRejected(metrics.ReasonQuotaExceeded)
	recorder.ObserveIntakeDuration(1500 * time.Millisecond)
	recorder.ObserveResetRun(3, 2)

	rec := httptest.NewRecorder()
	NewMetricsHandler(recorder).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, line := range []string{
		"remoteprint_print_jobs_accepted_total 1",
		`remoteprint_print_jobs_rejected_total{reason="quota_exceeded"} 1`,
		`remoteprint_print_jobs_rejected_total{reason="unauthenticated"} 0`,
		"remoteprint_intake_duration_seconds_count 1",
		"remoteprint_intake_duration_seconds_sum 1.500000",
		"remoteprint_reset_runs_total 1",
		`remoteprint_reset_accounts_total{result="updated"} 2`,
	} {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("missing metric line %q in:\n%s", line, body)
		}
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}
