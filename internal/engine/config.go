package engine

import (
	"time"

	"github.com/lexiloop/adaptengine/internal/actr"
	"github.com/lexiloop/adaptengine/internal/bandit"
	"github.com/lexiloop/adaptengine/internal/coldstart"
	"github.com/lexiloop/adaptengine/internal/decision"
	"github.com/lexiloop/adaptengine/internal/ensemble"
	"github.com/lexiloop/adaptengine/internal/features"
	"github.com/lexiloop/adaptengine/internal/heuristic"
	"github.com/lexiloop/adaptengine/internal/modelers"
	"github.com/lexiloop/adaptengine/internal/reward"
	"github.com/lexiloop/adaptengine/internal/thompson"
)

// Features gates the optional sub-components, read once at engine
// construction to decide which components a UserModels bundle carries.
type Features struct {
	Trend         bool
	Thompson      bool
	ACTR          bool
	Heuristic     bool
	ColdStart     bool
	Ensemble      bool
	DelayedReward bool
}

// DefaultFeatures enables every optional component.
func DefaultFeatures() Features {
	return Features{
		Trend:         true,
		Thompson:      true,
		ACTR:          true,
		Heuristic:     true,
		ColdStart:     true,
		Ensemble:      true,
		DelayedReward: true,
	}
}

// RewardWeights tunes the immediate-reward formula:
// R = wCorrect*(2*isCorrect-1) - wFatigue*F + wSpeed*clip(refRT/rt-1,-1,1) - wFrustration*frustrationFlag.
type RewardWeights struct {
	Correct      float64
	Fatigue      float64
	Speed        float64
	Frustration  float64
	ReferenceRTMs float64
}

// DefaultRewardWeights returns production weights, normalized so R stays in
// [-1,1] given each term's own bounded range.
func DefaultRewardWeights() RewardWeights {
	return RewardWeights{
		Correct:       0.5,
		Fatigue:       0.2,
		Speed:         0.2,
		Frustration:   0.1,
		ReferenceRTMs: 2500,
	}
}

// Config bundles every sub-package's config plus the orchestrator's own
// timing, feature-flag and reward-formula knobs.
type Config struct {
	Features Features

	FeaturesCfg    features.Config
	SuiteCfg       modelers.SuiteConfig
	BanditCfg      bandit.Config
	ThompsonCfg    thompson.Config
	ACTRCfg        actr.Config
	HeuristicCfg   heuristic.Config
	EnsembleCfg    ensemble.Config
	ColdStartCfg   coldstart.Config
	DecisionCfg    decision.Config
	RewardCfg      reward.Config
	CircuitCfg     CircuitBreakerConfig

	RewardWeights RewardWeights

	// Timeout bounds one processEvent call end-to-end.
	Timeout time.Duration

	// ColdStartInteractionCeiling/ExploreInteractionCeiling drive the
	// interaction-count-based phase fallback used when Features.ColdStart
	// is disabled.
	ColdStartInteractionCeiling int
	ExploreInteractionCeiling   int

	Now func() time.Time
}

// DefaultConfig returns production defaults across every wired sub-package.
func DefaultConfig() Config {
	return Config{
		Features:                    DefaultFeatures(),
		FeaturesCfg:                 features.DefaultConfig(),
		SuiteCfg:                    modelers.DefaultSuiteConfig(),
		BanditCfg:                   bandit.DefaultConfig(),
		ThompsonCfg:                 thompson.DefaultConfig(),
		ACTRCfg:                     actr.DefaultConfig(),
		HeuristicCfg:                heuristic.DefaultConfig(),
		EnsembleCfg:                 ensemble.DefaultConfig(),
		ColdStartCfg:                coldstart.DefaultConfig(),
		DecisionCfg:                 decision.DefaultConfig(),
		RewardCfg:                   reward.DefaultConfig(),
		CircuitCfg:                  DefaultCircuitBreakerConfig(),
		RewardWeights:               DefaultRewardWeights(),
		Timeout:                     100 * time.Millisecond,
		ColdStartInteractionCeiling: 15,
		ExploreInteractionCeiling:   50,
		Now:                         time.Now,
	}
}
