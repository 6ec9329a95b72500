// Package heuristic implements a deterministic, rule-based scorer that
// always returns a valid action. It is the ensemble's non-statistical
// fallback member; the engine's intelligentFallback ladder does not use it.
package heuristic

import "github.com/lexiloop/adaptengine/internal/domain"

// Threshold constants driving the rule table.
const (
	HighFatigue     = 0.66
	LowAttention    = 0.4
	LowMotivation   = -0.3
	HighMastery     = 0.75
	LowMastery      = 0.35
)

// Preferred is the rule table's output tuple: the (difficulty, hint_level,
// batch_size) this scorer currently considers ideal, used as the similarity
// target for scoring candidates.
type Preferred struct {
	Difficulty domain.Difficulty
	HintLevel  int
	BatchSize  int
}

// Config holds no tunables beyond the fixed rule table itself; it exists
// so tests can substitute a shrunk rule table later without an API break.
type Config struct{}

// DefaultConfig returns the zero-value config (the rule table is fixed).
func DefaultConfig() Config { return Config{} }

// Model is the stateless heuristic scorer.
type Model struct {
	cfg Config
}

// NewModel creates the heuristic scorer.
func NewModel(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// preferredFor applies the rule table to a UserState:
//   - high fatigue or low attention -> ease off: easy difficulty, more hints,
//     smaller batch.
//   - low motivation -> rebuild confidence: easy/mid difficulty, max hints.
//   - high mastery (cognitive mean above HighMastery) and otherwise healthy
//     state -> push harder: hard difficulty, fewer hints, larger batch.
//   - low mastery -> mid difficulty, moderate hints, moderate batch.
//   - default -> the safe mid-difficulty baseline.
func preferredFor(s domain.UserState) Preferred {
	mastery := (s.Cognitive.Mem + s.Cognitive.Speed + s.Cognitive.Stability) / 3.0

	switch {
	case s.Fatigue >= HighFatigue || s.Attention <= LowAttention:
		return Preferred{Difficulty: domain.DifficultyEasy, HintLevel: 2, BatchSize: 5}
	case s.Motivation <= LowMotivation:
		return Preferred{Difficulty: domain.DifficultyEasy, HintLevel: 2, BatchSize: 8}
	case mastery >= HighMastery && s.Fatigue < HighFatigue && s.Motivation > LowMotivation:
		return Preferred{Difficulty: domain.DifficultyHard, HintLevel: 0, BatchSize: 16}
	case mastery <= LowMastery:
		return Preferred{Difficulty: domain.DifficultyMid, HintLevel: 1, BatchSize: 8}
	default:
		return Preferred{Difficulty: domain.DifficultyMid, HintLevel: 1, BatchSize: 10}
	}
}

// similarity scores how close a candidate action is to the preferred tuple,
// in [0,1]: exact difficulty match contributes 0.5, and the hint-level and
// batch-size distances (normalized to their declared ranges) contribute the
// remaining 0.5 split evenly.
func similarity(a domain.Action, p Preferred) float64 {
	score := 0.0
	if a.Difficulty == p.Difficulty {
		score += 0.5
	}

	hintDist := absInt(a.HintLevel-p.HintLevel) / 2.0
	score += 0.25 * (1 - clamp01(hintDist))

	batchDist := absInt(a.BatchSize-p.BatchSize) / 11.0
	score += 0.25 * (1 - clamp01(batchDist))

	return score
}

func absInt(v int) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Vote is one member's decision.
type Vote struct {
	Action     domain.Action
	RawScore   float64
	Confidence float64
}

// Select scores every candidate by similarity to the state-driven preferred
// tuple and returns the argmax. Confidence is fixed: the heuristic has no
// statistical basis for expressing uncertainty, so it reports a constant
// mid confidence.
func (m *Model) Select(state domain.UserState, candidates []domain.Action) Vote {
	p := preferredFor(state)

	best := candidates[0]
	bestScore := similarity(best, p)
	for _, a := range candidates[1:] {
		s := similarity(a, p)
		if s > bestScore {
			best = a
			bestScore = s
		}
	}
	return Vote{Action: best, RawScore: bestScore, Confidence: 0.5}
}
