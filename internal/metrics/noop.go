package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncPrintJobAccepted is a no-op.
func (n *NoopRecorder) IncPrintJobAccepted() {}

// IncPrintJobRejected is a no-op.
func (n *NoopRecorder) IncPrintJobRejected(reason string) {}

// ObserveIntakeDuration is a no-op.
func (n *NoopRecorder) ObserveIntakeDuration(duration time.Duration) {}

// ObserveUploadBytes is a no-op.
func (n *NoopRecorder) ObserveUploadBytes(size int) {}

// IncQuotaIncrementFailed is a no-op.
func (n *NoopRecorder) IncQuotaIncrementFailed() {}

// IncAuthCacheHit is a no-op.
func (n *NoopRecorder) IncAuthCacheHit() {}

// IncAuthCacheMiss is a no-op.
func (n *NoopRecorder) IncAuthCacheMiss() {}

// ObserveResetRun is a no-op.
func (n *NoopRecorder) ObserveResetRun(total, updated int) {}
