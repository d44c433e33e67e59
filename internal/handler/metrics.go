package handler

import (
	"fmt"
	"net/http"

	"github.com/remoteprint/remoteprint/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "remoteprint_print_jobs_accepted_total %d\n", snap.PrintJobsAccepted)
	for _, reason := range metrics.RejectReasons {
		writeMetric(w, "remoteprint_print_jobs_rejected_total{reason=%q} %d\n", reason, snap.PrintJobsRejected[reason])
	}
	writeMetric(w, "remoteprint_intake_duration_seconds_count %d\n", snap.IntakeDurationCount)
	writeMetric(w, "remoteprint_intake_duration_seconds_sum %.6f\n", float64(snap.IntakeDurationTotalNs)/1e9)
	writeMetric(w, "remoteprint_upload_bytes_total %d\n", snap.UploadBytesTotal)
	writeMetric(w, "remoteprint_quota_increment_failures_total %d\n", snap.QuotaIncrementFailures)

	writeMetric(w, "remoteprint_auth_cache_total{result=\"hit\"} %d\n", snap.AuthCacheHits)
	writeMetric(w, "remoteprint_auth_cache_total{result=\"miss\"} %d\n", snap.AuthCacheMisses)

	writeMetric(w, "remoteprint_reset_runs_total %d\n", snap.ResetRuns)
	writeMetric(w, "remoteprint_reset_accounts_total{result=\"seen\"} %d\n", snap.ResetAccountsTotal)
	writeMetric(w, "remoteprint_reset_accounts_total{result=\"updated\"} %d\n", snap.ResetAccountsUpdated)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
