// Package actr implements an ACT-R style activation scorer over each
// action's recent review trace, transformed to a recall-probability vote via
// a logistic. It is a vote-only member of the ensemble; its only persisted
// state is the per-action review trace snapshot.
package actr

import (
	"fmt"
	"math"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// Config tunes the activation model.
type Config struct {
	Decay         float64 // d: the activation decay exponent
	Tau           float64 // tau: the logistic threshold/scale
	Gain          float64 // logistic gain multiplying (activation - tau)
	TraceCapacity int     // max review timestamps retained per action
}

// DefaultConfig returns production defaults: a standard ACT-R decay of 0.5.
func DefaultConfig() Config {
	return Config{Decay: 0.5, Tau: -0.5, Gain: 1.0, TraceCapacity: 50}
}

// trace is the recency-ordered review history for one action: the
// timestamps (ms) at which this action was presented and reviewed.
type trace struct {
	timestamps []int64
}

// Model is one user's ACT-R scorer: a per-action review trace. Owned
// exclusively by one user; callers must hold that user's serial lock around
// every method call.
type Model struct {
	cfg    Config
	traces map[string]*trace
}

// NewModel creates a fresh scorer with no review history.
func NewModel(cfg Config) *Model {
	return &Model{cfg: cfg, traces: make(map[string]*trace)}
}

// State is the persisted snapshot: per-action timestamp traces.
type State struct {
	Traces map[string][]int64 `json:"traces"`
}

// FromState restores a Model from a persisted trace snapshot.
func FromState(cfg Config, s State) *Model {
	m := NewModel(cfg)
	for key, ts := range s.Traces {
		cp := append([]int64(nil), ts...)
		m.traces[key] = &trace{timestamps: cp}
	}
	return m
}

// ToState snapshots the scorer's review traces for persistence.
func (m *Model) ToState() State {
	out := State{Traces: make(map[string][]int64, len(m.traces))}
	for key, tr := range m.traces {
		out.Traces[key] = append([]int64(nil), tr.timestamps...)
	}
	return out
}

// actionKey derives a stable map key for an action. Format mirrors
// internal/thompson's actionKey so the two packages' maps are independently
// stable, not so they interoperate (each owns its own map).
func actionKey(a domain.Action) string {
	return fmt.Sprintf("%.2f|%.2f|%s|%d|%d", a.IntervalScale, a.NewRatio, a.Difficulty, a.BatchSize, a.HintLevel)
}

// Vote is one member's decision.
type Vote struct {
	Action     domain.Action
	RawScore   float64 // recall probability in [0,1]
	Confidence float64
}

// Score computes the activation-derived recall probability for one action
// at tsMs: activation = sum over trace timestamps of exp(-tau_decay *
// delta^-d) where delta is elapsed time in hours since that review, then a
// logistic squashes the raw activation into [0,1].
func (m *Model) Score(a domain.Action, tsMs int64) float64 {
	tr, ok := m.traces[actionKey(a)]
	if !ok || len(tr.timestamps) == 0 {
		return logistic(0, m.cfg.Tau, m.cfg.Gain)
	}

	var activation float64
	for _, reviewTs := range tr.timestamps {
		deltaHours := float64(tsMs-reviewTs) / 3_600_000.0
		if deltaHours <= 0 {
			deltaHours = 1.0 / 3600.0 // clamp to avoid divide-by-zero on same-tick reviews
		}
		activation += math.Exp(-m.cfg.Decay * math.Pow(deltaHours, -m.cfg.Decay))
	}
	return logistic(activation, m.cfg.Tau, m.cfg.Gain)
}

func logistic(activation, tau, gain float64) float64 {
	return 1.0 / (1.0 + math.Exp(-gain*(activation-tau)))
}

// Select scores every candidate and returns the argmax as a Vote,
// confidence equal to twice the winning score's distance from the 0.5
// midpoint.
func (m *Model) Select(candidates []domain.Action, tsMs int64) Vote {
	best := candidates[0]
	bestScore := m.Score(best, tsMs)
	for _, a := range candidates[1:] {
		s := m.Score(a, tsMs)
		if s > bestScore {
			best = a
			bestScore = s
		}
	}
	confidence := math.Abs(bestScore-0.5) * 2
	return Vote{Action: best, RawScore: bestScore, Confidence: confidence}
}

// Record appends one review event for an action to its trace, pruning the
// oldest entries beyond TraceCapacity.
func (m *Model) Record(a domain.Action, tsMs int64) {
	key := actionKey(a)
	tr, ok := m.traces[key]
	if !ok {
		tr = &trace{}
		m.traces[key] = tr
	}
	tr.timestamps = append(tr.timestamps, tsMs)
	if len(tr.timestamps) > m.cfg.TraceCapacity {
		tr.timestamps = tr.timestamps[len(tr.timestamps)-m.cfg.TraceCapacity:]
	}
}
