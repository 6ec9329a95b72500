// Package modelers implements the five online state estimators —
// Attention, Fatigue, Cognitive, Motivation, Trend — that together produce
// the user-state vector (A, F, C, M, T). Each estimator is a small,
// isolated, single-user online model: the engine orchestrator instantiates
// one Suite per user and calls Update in the fixed order Attention ->
// Fatigue -> Cognitive -> Motivation -> Trend on every interaction.
package modelers

import (
	"math"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// AttentionConfig configures the attention estimator.
type AttentionConfig struct {
	// Beta is the EMA smoothing factor: A_t = beta*A_{t-1} + (1-beta)*A_raw.
	Beta float64
	// Weights projects the first 8 FeatureVector channels (the
	// distraction-relevant ones) onto a single logit before the sigmoid.
	// Positive weight = channel reduces attention when elevated; negative
	// weight = channel indicates engagement and raises attention.
	Weights [8]float64
}

// DefaultAttentionConfig returns production defaults. Sub-feature weights
// are not specified numerically by the source spec; these values encode
// the qualitative direction it does specify (pauses/switches/focus-loss
// reduce attention, interaction density raises it) and are tuned defaults.
func DefaultAttentionConfig() AttentionConfig {
	return AttentionConfig{
		Beta: 0.6,
		Weights: [8]float64{
			0.10, // z_rt_mean
			0.15, // z_rt_cv
			0.05, // z_pace_cv
			0.25, // z_pause
			0.20, // z_switch
			0.10, // z_drift
			-0.20, // z_interaction (engagement signal, negated)
			0.25, // z_focus_loss
		},
	}
}

// AttentionModel is the attention estimator: A in [0, 1].
type AttentionModel struct {
	cfg   AttentionConfig
	value float64
	init  bool
}

// NewAttentionModel creates a fresh estimator seeded at UserState's default.
func NewAttentionModel(cfg AttentionConfig) *AttentionModel {
	return &AttentionModel{cfg: cfg, value: domain.DefaultUserState(0).Attention, init: true}
}

// Value returns the current A_t without mutating state.
func (m *AttentionModel) Value() float64 { return m.value }

// Update folds in one event's feature vector and returns the new A_t. If
// the feature vector carries fewer channels than the configured weight
// vector, the previous value is returned unchanged rather than panicking.
func (m *AttentionModel) Update(fv domain.FeatureVector) float64 {
	sub := fv.Slice()[:8]
	if len(sub) < len(m.cfg.Weights) {
		return m.value
	}
	var logit float64
	for i, w := range m.cfg.Weights {
		logit += w * sub[i]
	}
	rawA := 1.0 / (1.0 + math.Exp(logit))

	beta := m.cfg.Beta
	if !m.init {
		m.value = rawA
		m.init = true
	} else {
		m.value = beta*m.value + (1-beta)*rawA
	}
	m.value = domain.Clamp(m.value, 0, 1)
	return m.value
}

// SetState restores a previously persisted value.
func (m *AttentionModel) SetState(value float64) {
	m.value = domain.Clamp(value, 0, 1)
	m.init = true
}
