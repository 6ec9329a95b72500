package decision

import (
	"math"
	"testing"

	"github.com/lexiloop/adaptengine/internal/domain"
)

func TestMap_EMABlendsTowardAction(t *testing.T) {
	current := domain.StrategyParams{IntervalScale: 1.0, NewRatio: 0.2, Difficulty: domain.DifficultyMid, BatchSize: 10, HintLevel: 1}
	action := domain.Action{IntervalScale: 1.5, NewRatio: 0.4, Difficulty: domain.DifficultyHard, BatchSize: 16, HintLevel: 0}

	next := Map(DefaultConfig(), current, action)
	wantInterval := 0.5*1.0 + 0.5*1.5
	if math.Abs(next.IntervalScale-wantInterval) > 1e-9 {
		t.Errorf("IntervalScale = %v, want %v", next.IntervalScale, wantInterval)
	}
	if next.Difficulty != domain.DifficultyHard {
		t.Errorf("Difficulty = %v, want direct copy hard", next.Difficulty)
	}
}

func TestGuardrails_HighFatigueForcesSafety(t *testing.T) {
	p := domain.StrategyParams{IntervalScale: 0.8, NewRatio: 0.4, Difficulty: domain.DifficultyHard, BatchSize: 16, HintLevel: 0}
	s := domain.UserState{Fatigue: 0.9, Attention: 0.7, Motivation: 0}

	out := Guardrails(p, s)
	if out.Difficulty != domain.DifficultyEasy {
		t.Errorf("Difficulty = %v, want easy under extreme fatigue", out.Difficulty)
	}
	if out.BatchSize > 5 {
		t.Errorf("BatchSize = %v, want <= 5 under extreme fatigue", out.BatchSize)
	}
	if out.NewRatio > 0.1 {
		t.Errorf("NewRatio = %v, want <= 0.1 under extreme fatigue", out.NewRatio)
	}
}

func TestGuardrails_LowMotivationForcesEasyAndHints(t *testing.T) {
	p := domain.StrategyParams{IntervalScale: 1.0, NewRatio: 0.4, Difficulty: domain.DifficultyHard, BatchSize: 16, HintLevel: 0}
	s := domain.UserState{Fatigue: 0.1, Attention: 0.7, Motivation: -0.8}

	out := Guardrails(p, s)
	if out.HintLevel != 2 {
		t.Errorf("HintLevel = %v, want 2 under extreme low motivation", out.HintLevel)
	}
	if out.BatchSize > 5 {
		t.Errorf("BatchSize = %v, want <= 5", out.BatchSize)
	}
}

func TestGuardrails_TrendDownForcesEasyAndShortInterval(t *testing.T) {
	p := domain.StrategyParams{IntervalScale: 1.5, NewRatio: 0.4, Difficulty: domain.DifficultyHard, BatchSize: 16, HintLevel: 0}
	s := domain.UserState{Fatigue: 0.1, Attention: 0.7, Motivation: 0, Trend: domain.TrendDown}

	out := Guardrails(p, s)
	if out.Difficulty != domain.DifficultyEasy {
		t.Errorf("Difficulty = %v, want easy under downward trend", out.Difficulty)
	}
	if out.IntervalScale > 0.7 {
		t.Errorf("IntervalScale = %v, want <= 0.7 under downward trend", out.IntervalScale)
	}
}

func TestGuardrails_HealthyStateUnaffected(t *testing.T) {
	p := domain.StrategyParams{IntervalScale: 1.2, NewRatio: 0.3, Difficulty: domain.DifficultyHard, BatchSize: 16, HintLevel: 0}
	s := domain.UserState{Fatigue: 0.2, Attention: 0.8, Motivation: 0.5, Trend: domain.TrendUp}

	out := Guardrails(p, s)
	if out != p.Clamp() {
		t.Errorf("healthy-state Guardrails() = %v, want unchanged %v", out, p.Clamp())
	}
}

func TestShouldSuggestAndForceBreak(t *testing.T) {
	if ShouldSuggestBreak(domain.UserState{Fatigue: 0.5}) {
		t.Error("0.5 fatigue should not suggest a break")
	}
	if !ShouldSuggestBreak(domain.UserState{Fatigue: 0.7}) {
		t.Error("0.7 fatigue should suggest a break")
	}
	if ShouldForceBreak(domain.UserState{Fatigue: 0.7}) {
		t.Error("0.7 fatigue should not force a break")
	}
	if !ShouldForceBreak(domain.UserState{Fatigue: 0.9}) {
		t.Error("0.9 fatigue should force a break")
	}
}
