// Package thompson implements Thompson Sampling over a Beta posterior
// per (action, context-bucket), with prior inheritance from a global
// per-action posterior when a bucket has not been observed yet. Sampling
// draws Beta variates from two Gammas (Marsaglia & Tsang's method) on
// plain math/rand.
package thompson

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// Config tunes the Thompson learner.
type Config struct {
	Prior domain.BetaParams
}

// DefaultConfig returns the production prior.
func DefaultConfig() Config {
	return Config{Prior: domain.DefaultBetaPrior}
}

// Model is one user's Thompson Sampling posterior. Owned exclusively by one
// user; callers must hold that user's serial lock around every method call.
type Model struct {
	cfg   Config
	state domain.ThompsonState
	rng   *rand.Rand
}

// NewModel creates a fresh Thompson model. rng may be nil, in which case a
// package-default source seeded from a fixed value is used — callers that
// need determinism across runs should always pass their own *rand.Rand.
func NewModel(cfg Config, rng *rand.Rand) *Model {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Model{cfg: cfg, state: domain.NewThompsonState(), rng: rng}
}

// FromState restores a Model from persisted state.
func FromState(cfg Config, state domain.ThompsonState, rng *rand.Rand) *Model {
	if state.Global == nil {
		state.Global = make(map[string]domain.BetaParams)
	}
	if state.Contextual == nil {
		state.Contextual = make(map[string]map[string]domain.BetaParams)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Model{cfg: cfg, state: state, rng: rng}
}

// ToState snapshots the model's posterior for persistence.
func (m *Model) ToState() domain.ThompsonState {
	return m.state
}

// actionKey derives a stable map key for an action, used as the wire-stable
// identifier across the global and contextual posterior maps.
func actionKey(a domain.Action) string {
	return fmt.Sprintf("%.2f|%.2f|%s|%d|%d", a.IntervalScale, a.NewRatio, a.Difficulty, a.BatchSize, a.HintLevel)
}

// ContextBucket derives the coarse context bucket Thompson posteriors are
// keyed on: time-of-day crossed with a coarse fatigue band, independent of
// the candidate action itself.
func ContextBucket(state domain.UserState, tsMs int64) string {
	band := "low"
	switch {
	case state.Fatigue >= 0.66:
		band = "high"
	case state.Fatigue >= 0.33:
		band = "mid"
	}
	return fmt.Sprintf("%s|%s", domain.ClassifyTimeBucket(tsMs), band)
}

// priorFor returns the Beta posterior to sample from for one action in one
// bucket, inheriting from the global per-action posterior (then the
// configured prior) when the bucket has no observations yet.
func (m *Model) priorFor(bucket, key string) domain.BetaParams {
	if bucketMap, ok := m.state.Contextual[bucket]; ok {
		if p, ok := bucketMap[key]; ok {
			return p
		}
	}
	if p, ok := m.state.Global[key]; ok {
		return p
	}
	return m.cfg.Prior
}

// Vote is one member's decision.
type Vote struct {
	Action     domain.Action
	RawScore   float64
	Confidence float64
}

// Select samples p ~ Beta(alpha, beta) for every candidate action (using the
// matching contextual bucket, falling back to global, falling back to the
// configured prior) and returns the argmax, breaking ties by the candidates'
// original order.
func (m *Model) Select(candidates []domain.Action, bucket string) Vote {
	best := candidates[0]
	bestP := m.sampleFor(bucket, best)
	bestConf := m.confidenceFor(bucket, best)

	for _, a := range candidates[1:] {
		p := m.sampleFor(bucket, a)
		if p > bestP {
			best = a
			bestP = p
			bestConf = m.confidenceFor(bucket, a)
		}
	}
	return Vote{Action: best, RawScore: bestP, Confidence: bestConf}
}

func (m *Model) sampleFor(bucket string, a domain.Action) float64 {
	p := m.priorFor(bucket, actionKey(a))
	return sampleBeta(m.rng, p.Alpha, p.Beta)
}

// confidenceFor grows with the amount of evidence accumulated beyond the
// prior's own pseudo-count mass.
func (m *Model) confidenceFor(bucket string, a domain.Action) float64 {
	p := m.priorFor(bucket, actionKey(a))
	evidence := (p.Alpha + p.Beta) - (m.cfg.Prior.Alpha + m.cfg.Prior.Beta)
	if evidence < 0 {
		evidence = 0
	}
	return evidence / (evidence + 10)
}

// Update folds in one observed (action, bucket, reward) pair into both the
// contextual bucket's posterior (inheriting from global if this is the
// bucket's first observation of the action) and the global posterior:
// reward > 0 adds to alpha, reward < 0 adds to beta, reward == 0 is a no-op.
func (m *Model) Update(action domain.Action, bucket string, reward float64) {
	if reward == 0 {
		return
	}
	key := actionKey(action)

	global := m.state.Global[key]
	if global == (domain.BetaParams{}) {
		global = m.cfg.Prior
	}
	m.state.Global[key] = applyReward(global, reward)

	bucketMap, ok := m.state.Contextual[bucket]
	if !ok {
		bucketMap = make(map[string]domain.BetaParams)
		m.state.Contextual[bucket] = bucketMap
	}
	contextual, ok := bucketMap[key]
	if !ok {
		contextual = global
	}
	bucketMap[key] = applyReward(contextual, reward)
}

func applyReward(p domain.BetaParams, reward float64) domain.BetaParams {
	if reward > 0 {
		p.Alpha += reward
	} else if reward < 0 {
		p.Beta += -reward
	}
	return p
}

// sampleBeta draws one sample from Beta(alpha, beta) via two independent
// Gamma(shape, 1) draws: X/(X+Y) ~ Beta(alpha, beta).
func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	x := sampleGamma(rng, alpha)
	y := sampleGamma(rng, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws one sample from Gamma(shape, 1) using Marsaglia & Tsang's
// method, boosting shapes below 1 via the standard u^(1/shape) correction.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape <= 0 {
		shape = 1e-3
	}
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
