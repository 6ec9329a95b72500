package actr

import (
	"testing"

	"github.com/lexiloop/adaptengine/internal/domain"
)

func TestScore_NoTraceReturnsBaselineLogistic(t *testing.T) {
	m := NewModel(DefaultConfig())
	a := domain.ActionSpace[0]
	want := logistic(0, DefaultConfig().Tau, DefaultConfig().Gain)
	if got := m.Score(a, 1000); got != want {
		t.Errorf("Score(no trace) = %v, want %v", got, want)
	}
}

func TestRecord_RecentReviewRaisesActivation(t *testing.T) {
	m := NewModel(DefaultConfig())
	a := domain.ActionSpace[0]
	now := int64(10_000_000)

	before := m.Score(a, now)
	m.Record(a, now-3_600_000) // reviewed one hour ago
	after := m.Score(a, now)

	if after <= before {
		t.Errorf("activation after recent review = %v, want > baseline %v", after, before)
	}
	if after < 0 || after > 1 {
		t.Errorf("score out of [0,1]: %v", after)
	}
}

func TestRecord_CapacityPruning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceCapacity = 3
	m := NewModel(cfg)
	a := domain.ActionSpace[0]

	for i := 0; i < 10; i++ {
		m.Record(a, int64(i)*1000)
	}
	tr := m.traces[actionKey(a)]
	if len(tr.timestamps) != 3 {
		t.Fatalf("trace length = %d, want 3", len(tr.timestamps))
	}
	if tr.timestamps[0] != 7000 {
		t.Errorf("oldest retained timestamp = %v, want 7000", tr.timestamps[0])
	}
}

func TestSelect_PicksHighestScoringCandidate(t *testing.T) {
	m := NewModel(DefaultConfig())
	favored := domain.ActionSpace[0]
	other := domain.ActionSpace[1]
	now := int64(10_000_000)
	m.Record(favored, now-1_800_000)

	vote := m.Select([]domain.Action{other, favored}, now)
	if !vote.Action.Equal(favored) {
		t.Errorf("Select() = %v, want favored action %v", vote.Action, favored)
	}
}

func TestToStateFromStateRoundTrip(t *testing.T) {
	m := NewModel(DefaultConfig())
	a := domain.ActionSpace[0]
	m.Record(a, 1000)
	m.Record(a, 2000)

	state := m.ToState()
	restored := FromState(DefaultConfig(), state)

	if restored.Score(a, 5000) != m.Score(a, 5000) {
		t.Error("round-tripped model diverges in score")
	}
}
