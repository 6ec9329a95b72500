// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import "math"

// ─── Raw Event ──────────────────────────────────────────────────────────────

// RawEvent is a single sanitized learner interaction: an answer to one word,
// plus the timing/behavioral signals captured while the learner answered it.
type RawEvent struct {
	WordID               string  `json:"wordId"`
	IsCorrect            bool    `json:"isCorrect"`
	ResponseTimeMs       int     `json:"responseTime_ms"`
	DwellTimeMs          int     `json:"dwellTime_ms"`
	PauseCount           int     `json:"pauseCount"`
	SwitchCount          int     `json:"switchCount"`
	RetryCount           int     `json:"retryCount"`
	FocusLossDurationMs  int     `json:"focusLossDuration_ms"`
	InteractionDensity   float64 `json:"interactionDensity"`
	TimestampMs          int64   `json:"timestamp_ms"`
}

// AnomalyCaps bounds the numeric fields of a RawEvent. Values above a cap
// mark the event anomalous rather than rejecting it outright; only a
// non-positive response time or a non-finite or negative interaction
// density rejects the event.
type AnomalyCaps struct {
	MaxResponseTimeMs int
	MaxPauseCount     int
	MaxSwitchCount    int
	MaxFocusLossMs    int
}

// DefaultAnomalyCaps returns the production caps.
func DefaultAnomalyCaps() AnomalyCaps {
	return AnomalyCaps{
		MaxResponseTimeMs: 60_000,
		MaxPauseCount:     20,
		MaxSwitchCount:    10,
		MaxFocusLossMs:    300_000,
	}
}

// Rejects reports whether e must be rejected outright (never reaches the
// feature builder or state modelers): rt <= 0, or a non-finite or negative
// interaction density.
func (e RawEvent) Rejects() bool {
	if e.ResponseTimeMs <= 0 {
		return true
	}
	if math.IsNaN(e.InteractionDensity) || math.IsInf(e.InteractionDensity, 0) {
		return true
	}
	if e.InteractionDensity < 0 {
		return true
	}
	return false
}

// Anomalous reports whether e exceeds any configured cap; an event that
// Rejects() also counts as anomalous. The orchestrator routes an anomalous
// event to the degraded-state fallback instead of the normal pipeline.
func (e RawEvent) Anomalous(caps AnomalyCaps) bool {
	if e.Rejects() {
		return true
	}
	if e.ResponseTimeMs > caps.MaxResponseTimeMs {
		return true
	}
	if e.PauseCount > caps.MaxPauseCount || e.PauseCount < 0 {
		return true
	}
	if e.SwitchCount > caps.MaxSwitchCount || e.SwitchCount < 0 {
		return true
	}
	if e.FocusLossDurationMs > caps.MaxFocusLossMs || e.FocusLossDurationMs < 0 {
		return true
	}
	if e.RetryCount < 0 {
		return true
	}
	return false
}

// Sanitize clamps every numeric field of e to the ranges implied by caps,
// returning a copy safe to feed into feature computation regardless of
// whether Anomalous(e) was true.
func (e RawEvent) Sanitize(caps AnomalyCaps) RawEvent {
	s := e
	s.ResponseTimeMs = clampInt(s.ResponseTimeMs, 1, caps.MaxResponseTimeMs)
	s.DwellTimeMs = clampInt(s.DwellTimeMs, 0, caps.MaxResponseTimeMs)
	s.PauseCount = clampInt(s.PauseCount, 0, caps.MaxPauseCount)
	s.SwitchCount = clampInt(s.SwitchCount, 0, caps.MaxSwitchCount)
	s.RetryCount = clampInt(s.RetryCount, 0, 1<<20)
	s.FocusLossDurationMs = clampInt(s.FocusLossDurationMs, 0, caps.MaxFocusLossMs)
	if math.IsNaN(s.InteractionDensity) || math.IsInf(s.InteractionDensity, 0) || s.InteractionDensity < 0 {
		s.InteractionDensity = 0
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp restricts a float64 to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Finite reports whether v is neither NaN nor +/-Inf.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
