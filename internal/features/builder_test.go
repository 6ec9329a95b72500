package features

import (
	"testing"
	"time"

	"github.com/lexiloop/adaptengine/internal/domain"
)

func fixedClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func testConfig(now time.Time) Config {
	cfg := DefaultConfig()
	cfg.Now = fixedClock(now, time.Second)
	return cfg
}

func TestRing_CVBelowTwoSamplesIsZero(t *testing.T) {
	var r ring
	if got := r.cv(); got != 0 {
		t.Errorf("empty window cv() = %v, want 0", got)
	}
	r.push(10)
	if got := r.cv(); got != 0 {
		t.Errorf("single-sample window cv() = %v, want 0", got)
	}
}

func TestRing_CVNearZeroMean(t *testing.T) {
	var r ring
	r.push(0.0000001)
	r.push(-0.0000001)
	if got := r.cv(); got != 0 {
		t.Errorf("near-zero mean cv() = %v, want 0", got)
	}
}

func TestRing_Mean(t *testing.T) {
	var r ring
	for _, v := range []float64{2, 4, 6} {
		r.push(v)
	}
	if got := r.mean(); got != 4 {
		t.Errorf("mean() = %v, want 4", got)
	}
}

func TestBuilder_Build_UpdatesWindowsInPlace(t *testing.T) {
	b := NewBuilder(testConfig(time.Unix(0, 0)))
	caps := domain.DefaultAnomalyCaps()

	fv1 := b.Build("u1", domain.RawEvent{ResponseTimeMs: 1000, IsCorrect: true}, caps)
	fv2 := b.Build("u1", domain.RawEvent{ResponseTimeMs: 3000, IsCorrect: false}, caps)

	if fv1.Correctness != 1 {
		t.Errorf("fv1.Correctness = %v, want 1", fv1.Correctness)
	}
	if fv2.Correctness != 0 {
		t.Errorf("fv2.Correctness = %v, want 0", fv2.Correctness)
	}
	// Second event's RT-mean z-score must reflect both samples in the window.
	if fv1.ZRTMean == fv2.ZRTMean {
		t.Error("window should have been updated in place between events")
	}
}

func TestBuilder_IsAnomalous(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	caps := domain.DefaultAnomalyCaps()
	if b.IsAnomalous(domain.RawEvent{ResponseTimeMs: 1000}, caps) {
		t.Error("valid event should not be anomalous")
	}
	if !b.IsAnomalous(domain.RawEvent{ResponseTimeMs: 0}, caps) {
		t.Error("rt<=0 should be anomalous")
	}
	if !b.IsAnomalous(domain.RawEvent{ResponseTimeMs: 90_000}, caps) {
		t.Error("rt over cap should be anomalous")
	}
}

func TestBuilder_EvictExpired(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := DefaultConfig()
	cfg.TTL = 10 * time.Second
	cfg.Now = fixedClock(start, time.Minute) // every call advances by a minute
	b := NewBuilder(cfg)
	caps := domain.DefaultAnomalyCaps()

	b.Build("u1", domain.RawEvent{ResponseTimeMs: 1000}, caps)
	if b.UserCount() != 1 {
		t.Fatalf("UserCount() = %d, want 1", b.UserCount())
	}

	evicted := b.EvictExpired()
	if evicted != 1 {
		t.Errorf("EvictExpired() = %d, want 1", evicted)
	}
	if b.UserCount() != 0 {
		t.Errorf("UserCount() after eviction = %d, want 0", b.UserCount())
	}
}

func TestBuilder_LRUEvictionOverCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxUsers = 2
	cfg.Now = fixedClock(time.Unix(0, 0), time.Second)
	b := NewBuilder(cfg)
	caps := domain.DefaultAnomalyCaps()

	b.Build("u1", domain.RawEvent{ResponseTimeMs: 1000}, caps)
	b.Build("u2", domain.RawEvent{ResponseTimeMs: 1000}, caps)
	b.Build("u3", domain.RawEvent{ResponseTimeMs: 1000}, caps)

	if b.UserCount() != 2 {
		t.Errorf("UserCount() = %d, want 2 after LRU eviction", b.UserCount())
	}
}
