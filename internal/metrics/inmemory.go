package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	PrintJobsAccepted      uint64
	PrintJobsRejected      map[string]uint64
	IntakeDurationCount    uint64
	IntakeDurationTotalNs  int64
	UploadBytesTotal       uint64
	QuotaIncrementFailures uint64
	AuthCacheHits          uint64
	AuthCacheMisses        uint64
	ResetRuns              uint64
	ResetAccountsTotal     uint64
	ResetAccountsUpdated   uint64
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics endpoint.
type InMemoryRecorder struct {
	printJobsAccepted      uint64
	printJobsRejected      map[string]*uint64
	intakeDurationCount    uint64
	intakeDurationTotalNs  int64
	uploadBytesTotal       uint64
	quotaIncrementFailures uint64
	authCacheHits          uint64
	authCacheMisses        uint64
	resetRuns              uint64
	resetAccountsTotal     uint64
	resetAccountsUpdated   uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	rejected := make(map[string]*uint64, len(RejectReasons))
	for _, reason := range RejectReasons {
		rejected[reason] = new(uint64)
	}
	return &InMemoryRecorder{printJobsRejected: rejected}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	rejected := make(map[string]uint64, len(m.printJobsRejected))
	for reason, counter := range m.printJobsRejected {
		rejected[reason] = atomic.LoadUint64(counter)
	}

	return Snapshot{
		PrintJobsAccepted:      atomic.LoadUint64(&m.printJobsAccepted),
		PrintJobsRejected:      rejected,
		IntakeDurationCount:    atomic.LoadUint64(&m.intakeDurationCount),
		IntakeDurationTotalNs:  atomic.LoadInt64(&m.intakeDurationTotalNs),
		UploadBytesTotal:       atomic.LoadUint64(&m.uploadBytesTotal),
		QuotaIncrementFailures: atomic.LoadUint64(&m.quotaIncrementFailures),
		AuthCacheHits:          atomic.LoadUint64(&m.authCacheHits),
		AuthCacheMisses:        atomic.LoadUint64(&m.authCacheMisses),
		ResetRuns:              atomic.LoadUint64(&m.resetRuns),
		ResetAccountsTotal:     atomic.LoadUint64(&m.resetAccountsTotal),
		ResetAccountsUpdated:   atomic.LoadUint64(&m.resetAccountsUpdated),
	}
}

// IncPrintJobAccepted increments the accepted job counter.
func (m *InMemoryRecorder) IncPrintJobAccepted() {
	atomic.AddUint64(&m.printJobsAccepted, 1)
}

// IncPrintJobRejected increments the rejection counter for reason.
// Unknown reasons are counted as internal errors.
func (m *InMemoryRecorder) IncPrintJobRejected(reason string) {
	counter, ok := m.printJobsRejected[reason]
	if !ok {
		counter = m.printJobsRejected[ReasonInternal]
	}
	atomic.AddUint64(counter, 1)
}

// ObserveIntakeDuration records intake handling duration.
func (m *InMemoryRecorder) ObserveIntakeDuration(duration time.Duration) {
	atomic.AddUint64(&m.intakeDurationCount, 1)
	atomic.AddInt64(&m.intakeDurationTotalNs, duration.Nanoseconds())
}

// ObserveUploadBytes adds size to the stored bytes counter.
func (m *InMemoryRecorder) ObserveUploadBytes(size int) {
	if size > 0 {
		atomic.AddUint64(&m.uploadBytesTotal, uint64(size))
	}
}

// IncQuotaIncrementFailed counts jobs whose usage counter update failed.
func (m *InMemoryRecorder) IncQuotaIncrementFailed() {
	atomic.AddUint64(&m.quotaIncrementFailures, 1)
}

// IncAuthCacheHit increments auth cache hit counter.
func (m *InMemoryRecorder) IncAuthCacheHit() {
	atomic.AddUint64(&m.authCacheHits, 1)
}

// IncAuthCacheMiss increments auth cache miss counter.
func (m *InMemoryRecorder) IncAuthCacheMiss() {
	atomic.AddUint64(&m.authCacheMisses, 1)
}

// ObserveResetRun records one monthly reset run.
func (m *InMemoryRecorder) ObserveResetRun(total, updated int) {
	atomic.AddUint64(&m.resetRuns, 1)
	atomic.AddUint64(&m.resetAccountsTotal, uint64(total))
	atomic.AddUint64(&m.resetAccountsUpdated, uint64(updated))
}
