// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Intake rejection reasons.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonForbidden       = "forbidden"
	ReasonNotFound        = "not_found"
	ReasonQuotaExceeded   = "quota_exceeded"
	ReasonInvalidRequest  = "invalid_request"
	ReasonStorage         = "storage_error"
	ReasonPersistence     = "persistence_error"
	ReasonInternal        = "internal_error"
)

// RejectReasons lists every rejection reason in exposition order.
var RejectReasons = []string{
	ReasonUnauthenticated,
	ReasonForbidden,
	ReasonNotFound,
	ReasonQuotaExceeded,
	ReasonInvalidRequest,
	ReasonStorage,
	ReasonPersistence,
	ReasonInternal,
}

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Intake metrics
	IncPrintJobAccepted()
	IncPrintJobRejected(reason string)
	ObserveIntakeDuration(duration time.Duration)
	ObserveUploadBytes(size int)
	IncQuotaIncrementFailed()

	// Auth cache metrics
	IncAuthCacheHit()
	IncAuthCacheMiss()

	// Reset job metrics
	ObserveResetRun(total, updated int)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
