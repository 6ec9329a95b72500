package modelers

import (
	"math"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// CognitiveConfig configures the cognitive estimator.
type CognitiveConfig struct {
	// LongTermBeta smooths C_long from C_short: C_long = beta*C_long + (1-beta)*C_short.
	LongTermBeta float64
	// MaturityK0 sets how quickly the blend favors C_long over C_short:
	// lambda = 1 - exp(-n/k0).
	MaturityK0 float64
	// ReferenceRTMs is the reference response time used for the speed ratio.
	ReferenceRTMs float64
	// ReferenceVariance is the reference RT variance used for the
	// stability ratio.
	ReferenceVariance float64
	// AccuracyWindowBeta is the EMA weight for the short-term accuracy
	// running average.
	AccuracyWindowBeta float64
}

// DefaultCognitiveConfig returns production defaults.
func DefaultCognitiveConfig() CognitiveConfig {
	return CognitiveConfig{
		LongTermBeta:       0.9,
		MaturityK0:         10,
		ReferenceRTMs:      2500,
		ReferenceVariance:  1_000_000, // (1000ms)^2
		AccuracyWindowBeta: 0.3,
	}
}

// CognitiveModel is the cognitive estimator producing {mem, speed,
// stability}, each in [0, 1].
type CognitiveModel struct {
	cfg CognitiveConfig

	n int

	accuracyEMA float64

	rtCount int
	rtMean  float64
	rtM2    float64 // Welford running variance accumulator

	long domain.Cognitive
}

// NewCognitiveModel creates a fresh estimator seeded at the UserState default.
func NewCognitiveModel(cfg CognitiveConfig) *CognitiveModel {
	d := domain.DefaultUserState(0).Cognitive
	return &CognitiveModel{cfg: cfg, long: d, accuracyEMA: 0.5}
}

// Value returns the current long-term C without mutating state (the
// maturity blend that Update returns is not stored).
func (m *CognitiveModel) Value() domain.Cognitive { return m.long }

// Update folds in one event and returns the new blended Cognitive state.
func (m *CognitiveModel) Update(e domain.RawEvent) domain.Cognitive {
	m.n++

	// Short-term accuracy: EMA of correctness.
	acc := 0.0
	if e.IsCorrect {
		acc = 1.0
	}
	m.accuracyEMA = m.cfg.AccuracyWindowBeta*acc + (1-m.cfg.AccuracyWindowBeta)*m.accuracyEMA

	// Short-term speed: ref_rt / rt, clamped to [0, 1] (faster than
	// reference saturates at 1; slower decays toward 0).
	speedShort := 0.0
	if e.ResponseTimeMs > 0 {
		speedShort = domain.Clamp(m.cfg.ReferenceRTMs/float64(e.ResponseTimeMs), 0, 1)
	}

	// Welford running RT variance, for the stability component.
	m.rtCount++
	rt := float64(e.ResponseTimeMs)
	delta := rt - m.rtMean
	m.rtMean += delta / float64(m.rtCount)
	delta2 := rt - m.rtMean
	m.rtM2 += delta * delta2
	variance := 0.0
	if m.rtCount > 1 {
		variance = m.rtM2 / float64(m.rtCount-1)
	}
	stabilityShort := domain.Clamp(1-variance/m.cfg.ReferenceVariance, 0, 1)

	short := domain.Cognitive{Mem: m.accuracyEMA, Speed: speedShort, Stability: stabilityShort}.Clamp()

	beta := m.cfg.LongTermBeta
	m.long = domain.Cognitive{
		Mem:       beta*m.long.Mem + (1-beta)*short.Mem,
		Speed:     beta*m.long.Speed + (1-beta)*short.Speed,
		Stability: beta*m.long.Stability + (1-beta)*short.Stability,
	}.Clamp()

	// lambda = 1 - exp(-n/k0): blends toward the long-term estimate as n grows.
	lambda := 1 - math.Exp(-float64(m.n)/m.cfg.MaturityK0)
	blended := domain.Cognitive{
		Mem:       lambda*m.long.Mem + (1-lambda)*short.Mem,
		Speed:     lambda*m.long.Speed + (1-lambda)*short.Speed,
		Stability: lambda*m.long.Stability + (1-lambda)*short.Stability,
	}.Clamp()
	return blended
}

// SetState restores previously persisted long-term state and event count.
func (m *CognitiveModel) SetState(c domain.Cognitive, n int) {
	m.long = c.Clamp()
	m.n = n
}

