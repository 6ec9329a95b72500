package modelers

import "github.com/lexiloop/adaptengine/internal/domain"

// SuiteConfig bundles the five estimator configs plus feature flags for the
// optional ones (Trend).
type SuiteConfig struct {
	Attention AttentionConfig
	Fatigue   FatigueConfig
	Cognitive CognitiveConfig
	Motivation MotivationConfig
	Trend     TrendConfig

	EnableTrend bool
}

// DefaultSuiteConfig returns production defaults with Trend enabled.
func DefaultSuiteConfig() SuiteConfig {
	return SuiteConfig{
		Attention:   DefaultAttentionConfig(),
		Fatigue:     DefaultFatigueConfig(),
		Cognitive:   DefaultCognitiveConfig(),
		Motivation:  DefaultMotivationConfig(),
		Trend:       DefaultTrendConfig(),
		EnableTrend: true,
	}
}

// Suite is the per-user bundle of all five estimators, owned exclusively
// by one user and mutated only inside that user's serial lock.
type Suite struct {
	cfg SuiteConfig

	Attention  *AttentionModel
	Fatigue    *FatigueModel
	Cognitive  *CognitiveModel
	Motivation *MotivationModel
	Trend      *TrendModel
}

// NewSuite constructs a fresh per-user estimator bundle.
func NewSuite(cfg SuiteConfig) *Suite {
	s := &Suite{
		cfg:        cfg,
		Attention:  NewAttentionModel(cfg.Attention),
		Fatigue:    NewFatigueModel(cfg.Fatigue),
		Cognitive:  NewCognitiveModel(cfg.Cognitive),
		Motivation: NewMotivationModel(cfg.Motivation),
	}
	if cfg.EnableTrend {
		s.Trend = NewTrendModel(cfg.Trend)
	}
	return s
}

// Update runs the five estimators in the required order — Attention,
// Fatigue, Cognitive, Motivation, Trend — and returns the resulting
// UserState. prevConfidence seeds the returned state's Confidence; TS is
// taken from the event.
func (s *Suite) Update(e domain.RawEvent, fv domain.FeatureVector, prevConfidence float64) domain.UserState {
	a := s.Attention.Update(fv)
	f := s.Fatigue.Update(e)
	c := s.Cognitive.Update(e)
	m := s.Motivation.Update(e)

	var trend domain.Trend
	if s.Trend != nil {
		ability := (c.Mem + c.Speed + c.Stability) / 3.0
		trend = s.Trend.Update(e.TimestampMs, ability)
	}

	confidence := domain.Clamp(prevConfidence+0.02, 0, 1)

	return domain.UserState{
		Attention:  a,
		Fatigue:    f,
		Cognitive:  c,
		Motivation: m,
		Trend:      trend,
		Confidence: confidence,
		TS:         e.TimestampMs,
	}.Clamped()
}

// SetState restores a Suite's observable estimator values from a persisted
// UserState plus an interaction count (used to reseed Cognitive's maturity
// blend and Motivation's low-event streak is not persisted — it resets,
// which only affects how soon the next low-M streak triggers, not
// correctness).
func (s *Suite) SetState(state domain.UserState, interactionCount int) {
	s.Attention.SetState(state.Attention)
	s.Fatigue.SetState(state.Fatigue)
	s.Cognitive.SetState(state.Cognitive, interactionCount)
	s.Motivation.SetState(state.Motivation)
}
