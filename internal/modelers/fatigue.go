package modelers

import (
	"time"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// FatigueConfig configures the fatigue estimator.
type FatigueConfig struct {
	// Beta is the EMA weight applied to the combined fatigue signal.
	Beta float64
	// IdleThreshold is how long without an event before the decay kicks
	// in ("long idle (> threshold minutes) applies a decay").
	IdleThreshold time.Duration
	// IdleDecay is the multiplicative decay applied per idle period.
	IdleDecay float64
	// ErrorTrendWeight, RTIncreaseWeight, RepeatErrorWeight weight the
	// three signal components that compose the raw fatigue sample.
	ErrorTrendWeight  float64
	RTIncreaseWeight  float64
	RepeatErrorWeight float64
}

// DefaultFatigueConfig returns production defaults.
func DefaultFatigueConfig() FatigueConfig {
	return FatigueConfig{
		Beta:              0.3,
		IdleThreshold:     20 * time.Minute,
		IdleDecay:         0.7,
		ErrorTrendWeight:  0.4,
		RTIncreaseWeight:  0.35,
		RepeatErrorWeight: 0.25,
	}
}

// FatigueModel is the fatigue estimator: F in [0, 1].
type FatigueModel struct {
	cfg FatigueConfig

	value           float64
	lastCorrect     bool
	haveLastCorrect bool
	errorEMA        float64
	lastRTMs        float64
	rtIncreaseEMA   float64
	consecutiveWrong int
	lastEventMs     int64
	haveLastEvent   bool
}

// NewFatigueModel creates a fresh estimator seeded at the UserState default.
func NewFatigueModel(cfg FatigueConfig) *FatigueModel {
	return &FatigueModel{cfg: cfg, value: domain.DefaultUserState(0).Fatigue}
}

// Value returns the current F_t without mutating state.
func (m *FatigueModel) Value() float64 { return m.value }

// Update folds in one event and returns the new F_t.
func (m *FatigueModel) Update(e domain.RawEvent) float64 {
	// Idle decay: a long gap since the previous event reduces fatigue —
	// the learner rested.
	if m.haveLastEvent {
		idle := time.Duration(e.TimestampMs-m.lastEventMs) * time.Millisecond
		if idle > m.cfg.IdleThreshold {
			m.value *= m.cfg.IdleDecay
		}
	}
	m.lastEventMs = e.TimestampMs
	m.haveLastEvent = true

	// Error-rate trend: EMA of the incorrect indicator.
	errSignal := 0.0
	if !e.IsCorrect {
		errSignal = 1.0
	}
	m.errorEMA = 0.5*errSignal + 0.5*m.errorEMA

	// RT increase rate: how much slower this response was than the last.
	rtIncrease := 0.0
	if m.lastRTMs > 0 {
		rtIncrease = (float64(e.ResponseTimeMs) - m.lastRTMs) / m.lastRTMs
	}
	m.lastRTMs = float64(e.ResponseTimeMs)
	m.rtIncreaseEMA = 0.5*domain.Clamp(rtIncrease, -1, 1) + 0.5*m.rtIncreaseEMA
	rtSignal := domain.Clamp((m.rtIncreaseEMA+1)/2, 0, 1) // remap [-1,1] -> [0,1]

	// Repeat errors: consecutive incorrect answers.
	if !e.IsCorrect {
		m.consecutiveWrong++
	} else {
		m.consecutiveWrong = 0
	}
	repeatSignal := domain.Clamp(float64(m.consecutiveWrong)/3.0, 0, 1)

	raw := m.cfg.ErrorTrendWeight*m.errorEMA +
		m.cfg.RTIncreaseWeight*rtSignal +
		m.cfg.RepeatErrorWeight*repeatSignal

	m.value = domain.Clamp(m.cfg.Beta*raw+(1-m.cfg.Beta)*m.value, 0, 1)
	return m.value
}

// SetState restores a previously persisted value.
func (m *FatigueModel) SetState(value float64) {
	m.value = domain.Clamp(value, 0, 1)
}
