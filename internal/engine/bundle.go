package engine

import (
	"hash/fnv"
	"math/rand"

	"github.com/lexiloop/adaptengine/internal/actr"
	"github.com/lexiloop/adaptengine/internal/bandit"
	"github.com/lexiloop/adaptengine/internal/coldstart"
	"github.com/lexiloop/adaptengine/internal/domain"
	"github.com/lexiloop/adaptengine/internal/ensemble"
	"github.com/lexiloop/adaptengine/internal/heuristic"
	"github.com/lexiloop/adaptengine/internal/modelers"
	"github.com/lexiloop/adaptengine/internal/thompson"
)

// UserModels bundles one user's entire in-memory model state: the five
// state estimators, every ensemble member that Features enables, and the
// running counters the cold-start/bandit schedules key off. Owned
// exclusively by the user holding that user's serial lock.
type UserModels struct {
	Suite     *modelers.Suite
	Bandit    *bandit.Learner
	Thompson  *thompson.Model
	ACTR      *actr.Model
	Heuristic *heuristic.Model
	Ensemble  *ensemble.Ensemble
	ColdStart *coldstart.Manager

	InteractionCount int
	CurrentParams    domain.StrategyParams
	RecentAccuracy   float64 // EMA of correctness, feeds the bandit's cold-start alpha gate
	RecentRTNorm     float64 // EMA of responseTime/referenceRT, feeds the context vector
	RecentErrorRate  float64 // EMA of (1-correctness), feeds the context vector
}

// userSeed derives a deterministic per-user RNG seed so Thompson's sampling
// is reproducible across repeated runs against the same userID — the
// posterior itself is persisted, but the RNG is not, so this only affects
// which of several equally-plausible samples a rerun draws.
func userSeed(userID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	return int64(h.Sum64())
}

// newUserModels constructs a fresh bundle for a brand-new user, honoring
// cfg.Features to decide which optional members are instantiated.
func newUserModels(cfg Config, userID string) *UserModels {
	um := &UserModels{
		Suite:         modelers.NewSuite(cfg.SuiteCfg),
		Bandit:        bandit.NewLearner(cfg.BanditCfg, domain.ContextDim),
		CurrentParams: domain.DefaultStrategyParams(),
		RecentRTNorm:  1.0,
	}
	if cfg.Features.Thompson {
		um.Thompson = thompson.NewModel(cfg.ThompsonCfg, rand.New(rand.NewSource(userSeed(userID))))
	}
	if cfg.Features.ACTR {
		um.ACTR = actr.NewModel(cfg.ACTRCfg)
	}
	if cfg.Features.Heuristic {
		um.Heuristic = heuristic.NewModel(cfg.HeuristicCfg)
	}
	if cfg.Features.Ensemble {
		um.Ensemble = ensemble.New(cfg.EnsembleCfg)
	}
	if cfg.Features.ColdStart {
		um.ColdStart = coldstart.New(cfg.ColdStartCfg)
	}
	if !cfg.Features.Trend || !cfg.SuiteCfg.EnableTrend {
		um.Suite.Trend = nil
	}
	return um
}
