package modelers

import (
	"testing"

	"github.com/lexiloop/adaptengine/internal/domain"
)

func TestAttentionModel_ValueIsPure(t *testing.T) {
	m := NewAttentionModel(DefaultAttentionConfig())
	before := m.Value()
	// Update with zero-value FeatureVector is still 10 channels so the
	// guard does not trip; this test documents that Value() is stable
	// when called without Update.
	if m.Value() != before {
		t.Fatal("Value() should be pure")
	}
}

func TestAttentionModel_DistractionLowersAttention(t *testing.T) {
	m := NewAttentionModel(DefaultAttentionConfig())
	calm := domain.FeatureVector{}
	distracted := domain.FeatureVector{ZPause: 3, ZSwitch: 3, ZFocusLoss: 3}

	for i := 0; i < 5; i++ {
		m.Update(calm)
	}
	calmValue := m.Value()

	m2 := NewAttentionModel(DefaultAttentionConfig())
	for i := 0; i < 5; i++ {
		m2.Update(distracted)
	}
	distractedValue := m2.Value()

	if distractedValue >= calmValue {
		t.Errorf("distracted attention %v should be lower than calm %v", distractedValue, calmValue)
	}
	if distractedValue < 0 || distractedValue > 1 {
		t.Errorf("attention out of range: %v", distractedValue)
	}
}

func TestFatigueModel_RepeatedErrorsIncreaseFatigue(t *testing.T) {
	m := NewFatigueModel(DefaultFatigueConfig())
	start := int64(1_700_000_000_000)
	var last float64
	for i := 0; i < 6; i++ {
		last = m.Update(domain.RawEvent{IsCorrect: false, ResponseTimeMs: 2000, TimestampMs: start + int64(i)*60_000})
	}
	if last <= domain.DefaultUserState(0).Fatigue {
		t.Errorf("fatigue should rise with repeated errors, got %v", last)
	}
	if last < 0 || last > 1 {
		t.Errorf("fatigue out of range: %v", last)
	}
}

func TestFatigueModel_IdleDecay(t *testing.T) {
	cfg := DefaultFatigueConfig()
	m := NewFatigueModel(cfg)
	base := int64(0)
	for i := 0; i < 6; i++ {
		m.Update(domain.RawEvent{IsCorrect: false, ResponseTimeMs: 2000, TimestampMs: base + int64(i)*60_000})
	}
	elevated := m.Value()
	// Long idle gap before the next event should decay fatigue.
	idleMs := int64((cfg.IdleThreshold.Milliseconds()) * 2)
	m.Update(domain.RawEvent{IsCorrect: true, ResponseTimeMs: 1000, TimestampMs: base + 6*60_000 + idleMs})
	if m.Value() >= elevated {
		t.Errorf("idle decay should reduce fatigue below %v, got %v", elevated, m.Value())
	}
}

func TestCognitiveModel_AccuracyDrivesMem(t *testing.T) {
	m := NewCognitiveModel(DefaultCognitiveConfig())
	var c domain.Cognitive
	for i := 0; i < 20; i++ {
		c = m.Update(domain.RawEvent{IsCorrect: true, ResponseTimeMs: 1000})
	}
	if c.Mem < 0.5 {
		t.Errorf("sustained correctness should raise Mem above 0.5, got %v", c.Mem)
	}
}

func TestMotivationModel_SuccessAndFailure(t *testing.T) {
	m := NewMotivationModel(DefaultMotivationConfig())
	for i := 0; i < 10; i++ {
		m.Update(domain.RawEvent{IsCorrect: true})
	}
	if m.Value() <= 0 {
		t.Errorf("sustained success should push motivation positive, got %v", m.Value())
	}

	m2 := NewMotivationModel(DefaultMotivationConfig())
	for i := 0; i < 10; i++ {
		m2.Update(domain.RawEvent{IsCorrect: false, RetryCount: 3})
	}
	if m2.Value() >= 0 {
		t.Errorf("sustained quit-signal failure should push motivation negative, got %v", m2.Value())
	}
	if m2.ConsecutiveLowEvents() == 0 {
		t.Error("consecutive low-motivation streak should be tracked")
	}
}

func TestTrendModel_ClassifiesUp(t *testing.T) {
	m := NewTrendModel(DefaultTrendConfig())
	start := int64(0)
	dayMs := int64(24 * 3600 * 1000)
	var trend domain.Trend
	for i := 0; i < 20; i++ {
		ability := 0.3 + float64(i)*0.02
		trend = m.Update(start+int64(i)*dayMs, ability)
	}
	if trend != domain.TrendUp {
		t.Errorf("trend = %v, want up", trend)
	}
}

func TestTrendModel_ClassifiesDown(t *testing.T) {
	m := NewTrendModel(DefaultTrendConfig())
	start := int64(0)
	dayMs := int64(24 * 3600 * 1000)
	var trend domain.Trend
	for i := 0; i < 20; i++ {
		ability := 0.9 - float64(i)*0.02
		trend = m.Update(start+int64(i)*dayMs, ability)
	}
	if trend != domain.TrendDown {
		t.Errorf("trend = %v, want down", trend)
	}
}

func TestSuite_UpdateOrderProducesValidState(t *testing.T) {
	s := NewSuite(DefaultSuiteConfig())
	fv := domain.FeatureVector{ZPause: 1}
	state := s.Update(domain.RawEvent{IsCorrect: true, ResponseTimeMs: 1200, TimestampMs: 1000}, fv, 0.5)

	if state.Attention < 0 || state.Attention > 1 {
		t.Errorf("Attention out of range: %v", state.Attention)
	}
	if state.Fatigue < 0 || state.Fatigue > 1 {
		t.Errorf("Fatigue out of range: %v", state.Fatigue)
	}
	if state.Motivation < -1 || state.Motivation > 1 {
		t.Errorf("Motivation out of range: %v", state.Motivation)
	}
	if state.TS != 1000 {
		t.Errorf("TS = %v, want 1000", state.TS)
	}
}
