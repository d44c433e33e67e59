package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Counters(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncPrintJobAccepted()
	m.IncPrintJobAccepted()
	m.IncPrintJobRejected(ReasonQuotaExceeded)
	m.IncPrintJobRejected("something-else")
	m.ObserveIntakeDuration(250 * time.Millisecond)
	m.ObserveUploadBytes(1024)
	m.ObserveUploadBytes(-5)
	m.IncQuotaIncrementFailed()
	m.IncAuthCacheHit()
	m.IncAuthCacheMiss()
	m.ObserveResetRun(3, 2)

	snap := m.Snapshot()
	if snap.PrintJobsAccepted != 2 {
		t.Errorf("PrintJobsAccepted = %d, want 2", snap.PrintJobsAccepted)
	}
	if snap.PrintJobsRejected[ReasonQuotaExceeded] != 1 {
		t.Errorf("quota rejections = %d, want 1", snap.PrintJobsRejected[ReasonQuotaExceeded])
	}
	if snap.PrintJobsRejected[ReasonInternal] != 1 {
		t.Errorf("unknown reason should count as internal, got %d", snap.PrintJobsRejected[ReasonInternal])
	}
	if snap.IntakeDurationCount != 1 || snap.IntakeDurationTotalNs != int64(250*time.Millisecond) {
		t.Errorf("unexpected intake duration: %d/%d", snap.IntakeDurationCount, snap.IntakeDurationTotalNs)
	}
	if snap.UploadBytesTotal != 1024 {
		t.Errorf("UploadBytesTotal = %d, want 1024", snap.UploadBytesTotal)
	}
	if snap.QuotaIncrementFailures != 1 || snap.AuthCacheHits != 1 || snap.AuthCacheMisses != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.ResetRuns != 1 || snap.ResetAccountsTotal != 3 || snap.ResetAccountsUpdated != 2 {
		t.Errorf("unexpected reset counters: %+v", snap)
	}
}

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncPrintJobAccepted()
			m.IncPrintJobRejected(ReasonStorage)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.PrintJobsAccepted != 50 || snap.PrintJobsRejected[ReasonStorage] != 50 {
		t.Errorf("unexpected counts: %+v", snap)
	}
}

func TestNoopRecorder_ImplementsRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewNoop()
	r.IncPrintJobAccepted()
	r.IncPrintJobRejected(ReasonInternal)
	r.ObserveResetRun(1, 1)
}

var _ Recorder = (*InMemoryRecorder)(nil)
