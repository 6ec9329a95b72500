// Package decision implements the decision mapper (EMA-smoothing a
// selected action into the next StrategyParams) and the ordered guardrail
// ladder that can override fields for the learner's safety.
package decision

import "github.com/lexiloop/adaptengine/internal/domain"

// Config tunes the EMA smoothing constant.
type Config struct {
	Tau float64 // EMA weight on the current params; (1-Tau) on the new action
}

// DefaultConfig returns the production smoothing constant.
func DefaultConfig() Config {
	return Config{Tau: 0.5}
}

// Map blends a selected action into the next StrategyParams via EMA on the
// continuous fields, EMA-then-round on the integer fields, and a direct
// copy for difficulty, then clamps to the declared ranges.
func Map(cfg Config, current domain.StrategyParams, action domain.Action) domain.StrategyParams {
	next := domain.StrategyParams{
		IntervalScale: cfg.Tau*current.IntervalScale + (1-cfg.Tau)*action.IntervalScale,
		NewRatio:      cfg.Tau*current.NewRatio + (1-cfg.Tau)*action.NewRatio,
		Difficulty:    action.Difficulty,
		BatchSize:     roundHalfAwayFromZero(cfg.Tau*current.BatchSize + (1-cfg.Tau)*float64(action.BatchSize)),
		HintLevel:     roundHalfAwayFromZero(cfg.Tau*current.HintLevel + (1-cfg.Tau)*float64(action.HintLevel)),
	}
	return next.Clamp()
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int(v + 0.5))
	}
	return float64(int(v - 0.5))
}

// Guardrails applies the ordered guardrail ladder to a
// mapped StrategyParams, given the UserState that produced it. Each rule
// may overwrite fields set by an earlier rule; later rules win.
func Guardrails(p domain.StrategyParams, s domain.UserState) domain.StrategyParams {
	p = fatigueProtection(p, s.Fatigue)
	p = motivationProtection(p, s.Motivation)
	p = attentionProtection(p, s.Attention)
	p = trendProtection(p, s.Trend)
	return p.Clamp()
}

func fatigueProtection(p domain.StrategyParams, fatigue float64) domain.StrategyParams {
	if fatigue > 0.65 {
		p.IntervalScale = maxF(p.IntervalScale, 1.0)
		p.NewRatio = minF(p.NewRatio, 0.2)
		p.BatchSize = minF(p.BatchSize, 8)
	}
	if fatigue > 0.85 {
		p.Difficulty = domain.DifficultyEasy
		p.HintLevel = maxF(p.HintLevel, 1)
		p.NewRatio = minF(p.NewRatio, 0.1)
		p.BatchSize = minF(p.BatchSize, 5)
	}
	return p
}

func motivationProtection(p domain.StrategyParams, motivation float64) domain.StrategyParams {
	if motivation < -0.3 {
		p.Difficulty = domain.DifficultyEasy
		p.HintLevel = maxF(p.HintLevel, 1)
		p.NewRatio = minF(p.NewRatio, 0.2)
	}
	if motivation < -0.6 {
		p.HintLevel = 2
		p.BatchSize = minF(p.BatchSize, 5)
		p.NewRatio = minF(p.NewRatio, 0.1)
	}
	return p
}

func attentionProtection(p domain.StrategyParams, attention float64) domain.StrategyParams {
	if attention < 0.35 {
		p.NewRatio = minF(p.NewRatio, 0.15)
		p.BatchSize = minF(p.BatchSize, 6)
		p.HintLevel = maxF(p.HintLevel, 1)
	}
	return p
}

func trendProtection(p domain.StrategyParams, trend domain.Trend) domain.StrategyParams {
	switch trend {
	case domain.TrendDown:
		p.NewRatio = minF(p.NewRatio, 0.1)
		p.Difficulty = domain.DifficultyEasy
		p.IntervalScale = minF(p.IntervalScale, 0.7)
		p.HintLevel = maxF(p.HintLevel, 1)
		p.BatchSize = minF(p.BatchSize, 8)
	case domain.TrendStuck:
		p.NewRatio = minF(p.NewRatio, 0.15)
	}
	return p
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ShouldSuggestBreak reports whether the learner's fatigue warrants
// suggesting (not forcing) a break.
func ShouldSuggestBreak(s domain.UserState) bool {
	return s.Fatigue > 0.65
}

// ShouldForceBreak reports whether fatigue is high enough to force a break.
func ShouldForceBreak(s domain.UserState) bool {
	return s.Fatigue > 0.85
}
