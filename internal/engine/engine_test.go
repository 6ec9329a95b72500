package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lexiloop/adaptengine/internal/domain"
	"github.com/lexiloop/adaptengine/internal/infra/memrepo"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testRepos() (Repositories, *memrepo.Store) {
	s := memrepo.New()
	return Repositories{
		State:     s.StateRepository(),
		Model:     s.ModelRepository(),
		ColdStart: s.ColdStartRepository(),
		Ensemble:  s.EnsembleRepository(),
		Thompson:  s.ThompsonRepository(),
	}, s
}

func sampleEvent(tsMs int64) domain.RawEvent {
	return domain.RawEvent{
		WordID:             "w1",
		IsCorrect:          true,
		ResponseTimeMs:     2000,
		DwellTimeMs:        1000,
		PauseCount:         1,
		SwitchCount:        0,
		RetryCount:         0,
		FocusLossDurationMs: 0,
		InteractionDensity: 1.0,
		TimestampMs:        tsMs,
	}
}

func TestProcessEvent_HappyPathReturnsStrategyAndPersists(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Now = fixedNow(time.UnixMilli(1_000_000))
	repos, store := testRepos()
	eng := NewEngine(cfg, repos)

	result := eng.ProcessEvent(context.Background(), "alice", sampleEvent(1_000_000), domain.ProcessOptions{})
	if result.Degraded {
		t.Fatalf("happy path returned degraded result: %+v", result)
	}
	if result.Strategy.Difficulty == "" {
		t.Error("Strategy.Difficulty is empty")
	}

	if _, found, _ := store.StateRepository().Load(context.Background(), "alice"); !found {
		t.Error("state was not persisted after processEvent")
	}
	if _, found, _ := store.ModelRepository().Load(context.Background(), "alice"); !found {
		t.Error("bandit model was not persisted after processEvent")
	}
}

func TestProcessEvent_AnomalousEventReturnsDegradedFallback(t *testing.T) {
	cfg := DefaultConfig()
	repos, _ := testRepos()
	eng := NewEngine(cfg, repos)

	bad := sampleEvent(1_000_000)
	bad.ResponseTimeMs = 999_999 // exceeds DefaultAnomalyCaps.MaxResponseTimeMs

	result := eng.ProcessEvent(context.Background(), "bob", bad, domain.ProcessOptions{})
	if !result.Degraded {
		t.Error("anomalous event should return a degraded fallback result")
	}
	if result.FallbackReason != "degraded_state" {
		t.Errorf("FallbackReason = %q, want degraded_state", result.FallbackReason)
	}
}

func TestProcessEvent_ColdStartPhaseDelegatesToManager(t *testing.T) {
	cfg := DefaultConfig()
	repos, _ := testRepos()
	eng := NewEngine(cfg, repos)

	result := eng.ProcessEvent(context.Background(), "carol", sampleEvent(1_000_000), domain.ProcessOptions{})
	if result.Degraded {
		t.Fatalf("unexpected degraded result: %+v", result)
	}

	um, ok := eng.getCached("carol")
	if !ok {
		t.Fatal("user bundle not cached after processing")
	}
	if um.ColdStart == nil {
		t.Fatal("cold-start manager missing for a brand-new user")
	}
	if result.Explanation != "cold-start phase=classify" {
		t.Errorf("Explanation = %q, want the cold-start manager's classify-phase selection", result.Explanation)
	}
	if um.InteractionCount != 1 {
		t.Errorf("InteractionCount = %d, want 1 after the first interaction", um.InteractionCount)
	}
}

func TestProcessEvent_SkipUpdateLeavesInteractionCountUnchanged(t *testing.T) {
	cfg := DefaultConfig()
	repos, _ := testRepos()
	eng := NewEngine(cfg, repos)

	eng.ProcessEvent(context.Background(), "dana", sampleEvent(1_000_000), domain.ProcessOptions{})
	um, _ := eng.getCached("dana")
	before := um.InteractionCount

	eng.ProcessEvent(context.Background(), "dana", sampleEvent(1_000_100), domain.ProcessOptions{SkipUpdate: true})
	after := um.InteractionCount
	if after != before {
		t.Errorf("InteractionCount changed under SkipUpdate: %d -> %d", before, after)
	}
}

func TestCircuitBreaker_OpensAfterFailureCountThreshold(t *testing.T) {
	now := time.UnixMilli(0)
	cfg := DefaultCircuitBreakerConfig() // WindowSize=20, FailureRateTrip=0.5 -> trips at 10 failures
	cfg.Now = func() time.Time { return now }
	cb := NewCircuitBreaker(cfg)

	for i := 0; i < 9; i++ {
		cb.RecordFailure()
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v, want CLOSED before the 10th failure", cb.State())
	}
	cb.RecordFailure() // 10th consecutive failure
	if cb.State() != CircuitOpen {
		t.Errorf("state = %v, want OPEN at the 10th failure (ceil(0.5*20)), without needing a full window", cb.State())
	}
	if cb.CanExecute() {
		t.Error("CanExecute() = true while OPEN")
	}
}

// TestCircuitBreaker_TwelveSuccessiveFailuresOpenAtTen: 12 successive
// failing calls must open the breaker exactly at the 10th, not require all
// 20 window slots to fill first.
func TestCircuitBreaker_TwelveSuccessiveFailuresOpenAtTen(t *testing.T) {
	now := time.UnixMilli(0)
	cfg := DefaultCircuitBreakerConfig()
	cfg.Now = func() time.Time { return now }
	cb := NewCircuitBreaker(cfg)

	openedAt := -1
	for i := 1; i <= 12; i++ {
		if !cb.CanExecute() {
			if openedAt == -1 {
				openedAt = i
			}
			continue
		}
		cb.RecordFailure()
		if cb.State() == CircuitOpen && openedAt == -1 {
			openedAt = i
		}
	}
	if openedAt != 10 {
		t.Errorf("breaker opened at call #%d, want #10", openedAt)
	}
}

func TestCircuitBreaker_HalfOpenRecoversAfterProbes(t *testing.T) {
	now := time.UnixMilli(0)
	cfg := DefaultCircuitBreakerConfig()
	cfg.WindowSize = 2
	cfg.OpenDuration = 5 * time.Second
	cfg.HalfOpenProbes = 2
	cfg.Now = func() time.Time { return now }
	cb := NewCircuitBreaker(cfg)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want OPEN", cb.State())
	}

	now = now.Add(6 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want HALF_OPEN after OpenDuration elapses", cb.State())
	}
	if !cb.CanExecute() || !cb.CanExecute() {
		t.Fatal("HALF_OPEN should grant HalfOpenProbes calls")
	}
	if cb.CanExecute() {
		t.Error("HALF_OPEN should not grant more than HalfOpenProbes calls")
	}

	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want CLOSED after HalfOpenProbes consecutive successes", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.UnixMilli(0)
	cfg := DefaultCircuitBreakerConfig()
	cfg.WindowSize = 2
	cfg.OpenDuration = 5 * time.Second
	cfg.Now = func() time.Time { return now }
	cb := NewCircuitBreaker(cfg)

	cb.RecordFailure()
	cb.RecordFailure()
	now = now.Add(6 * time.Second)
	cb.State() // trigger the OPEN -> HALF_OPEN transition
	cb.CanExecute()
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Errorf("state = %v, want OPEN again after a HALF_OPEN failure", cb.State())
	}
}

func TestUserLocks_SerializesPerUserParallelAcrossUsers(t *testing.T) {
	locks := newUserLocks()

	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup
	active, overlapped := 0, false

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lk := locks.Lock("shared")
			defer lk.Unlock()
			mu.Lock()
			order = append(order, "shared")
			active++
			if active > 1 {
				overlapped = true
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(order) != 5 {
		t.Fatalf("len(order) = %d, want 5 (no lost updates under serialized access)", len(order))
	}
	if overlapped {
		t.Error("two holders of the same user's lock ran at once")
	}

	held := locks.Lock("shared")
	other := make(chan struct{})
	go func() {
		locks.Lock("other").Unlock()
		close(other)
	}()
	select {
	case <-other:
	case <-time.After(time.Second):
		t.Error("a different user's lock blocked while \"shared\" was held")
	}
	held.Unlock()
	if locks.UserCount() < 1 {
		t.Error("UserCount() should report at least the one user seen")
	}
}

// failingStateRepo errors on every Load/Save, simulating a broken backend.
type failingStateRepo struct{}

func (failingStateRepo) Load(ctx context.Context, userID string) (domain.UserState, bool, error) {
	return domain.UserState{}, false, errors.New("backend unavailable")
}
func (failingStateRepo) Save(ctx context.Context, userID string, state domain.UserState) error {
	return errors.New("backend unavailable")
}

func TestEngine_CircuitOpensUnderRepeatedRepositoryFailures(t *testing.T) {
	cfg := DefaultConfig()
	repos, _ := testRepos()
	repos.State = failingStateRepo{}
	eng := NewEngine(cfg, repos)

	var sawCircuitOpen bool
	for i := 1; i <= 12; i++ {
		result := eng.ProcessEvent(context.Background(), "frank", sampleEvent(int64(i)*1000), domain.ProcessOptions{})
		if !result.Degraded {
			t.Fatalf("call %d: result not degraded despite failing repository", i)
		}
		if i <= 10 && result.FallbackReason == "circuit_open" {
			t.Fatalf("call %d: breaker opened before the 10th failure", i)
		}
		if i > 10 {
			if result.FallbackReason != "circuit_open" {
				t.Errorf("call %d: FallbackReason = %q, want circuit_open after the breaker trips", i, result.FallbackReason)
			}
			sawCircuitOpen = true
		}
	}
	if !sawCircuitOpen {
		t.Error("breaker never refused a call after 10 failures")
	}
	if eng.circuit.State() != CircuitOpen {
		t.Errorf("circuit state = %v, want OPEN", eng.circuit.State())
	}
}

func TestEngine_PerUserIsolationUnderInterleaving(t *testing.T) {
	cfg := DefaultConfig()
	repos, store := testRepos()
	eng := NewEngine(cfg, repos)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		good := sampleEvent(int64(1_000_000 + i*60_000))
		eng.ProcessEvent(ctx, "winner", good, domain.ProcessOptions{})

		bad := good
		bad.IsCorrect = false
		bad.RetryCount = 3
		eng.ProcessEvent(ctx, "struggler", bad, domain.ProcessOptions{})
	}

	winState, _, _ := store.StateRepository().Load(ctx, "winner")
	loseState, _, _ := store.StateRepository().Load(ctx, "struggler")
	if winState.Motivation <= 0 {
		t.Errorf("always-correct user motivation = %v, want > 0", winState.Motivation)
	}
	if loseState.Motivation >= 0 {
		t.Errorf("always-wrong user motivation = %v, want < 0", loseState.Motivation)
	}

	winModel, _, _ := store.ModelRepository().Load(ctx, "winner")
	loseModel, _, _ := store.ModelRepository().Load(ctx, "struggler")
	same := true
	for i := range winModel.B {
		if winModel.B[i] != loseModel.B[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("the two users' b-vectors are identical; model state leaked across users")
	}
}

func TestEngine_ProcessEventRespectsCircuitOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircuitCfg.WindowSize = 1
	cfg.CircuitCfg.FailureRateTrip = 0.5
	repos, _ := testRepos()
	eng := NewEngine(cfg, repos)

	eng.circuit.RecordFailure() // trips open at window size 1

	result := eng.ProcessEvent(context.Background(), "erin", sampleEvent(1_000_000), domain.ProcessOptions{})
	if !result.Degraded || result.FallbackReason != "circuit_open" {
		t.Errorf("result = %+v, want degraded fallback with reason circuit_open", result)
	}
}
