// Package ensemble implements weighted-vote aggregation across the four
// learners (LinUCB, Thompson, ACT-R, Heuristic), adaptive weight updates
// from observed reward, and phase gating that delegates entirely to the
// cold-start manager outside the "normal" phase.
package ensemble

import (
	"math"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// MemberName identifies one of the four ensemble members.
type MemberName string

const (
	MemberThompson  MemberName = "thompson"
	MemberLinUCB    MemberName = "linucb"
	MemberACTR      MemberName = "actr"
	MemberHeuristic MemberName = "heuristic"
)

var allMembers = [...]MemberName{MemberThompson, MemberLinUCB, MemberACTR, MemberHeuristic}

// Vote is one member's decision for this tick.
type Vote struct {
	Action     domain.Action
	RawScore   float64
	Confidence float64
}

// Config tunes the weight-update schedule.
type Config struct {
	BaseLR            float64 // base learning rate before the adaptive multiplier
	LRFloor           float64
	LRCeiling         float64
	RewardWindowSize  int // samples retained for the sigma(recent_rewards) term
	ClipResetFraction int // number of members clipped at MinWeight before a full reset
}

// DefaultConfig returns production defaults. BaseLR of 0.2 keeps a single
// update's effect on a 0.25-mass weight within the [0.1,0.5]-clamped
// multiplier's natural range.
func DefaultConfig() Config {
	return Config{
		BaseLR:            0.2,
		LRFloor:           0.1,
		LRCeiling:         0.5,
		RewardWindowSize:  20,
		ClipResetFraction: 4,
	}
}

// Ensemble holds one user's adaptive member weights and recent-reward
// history. Owned exclusively by one user; callers must hold that user's
// serial lock around every method call.
type Ensemble struct {
	cfg     Config
	weights domain.EnsembleWeights

	updateCount int
	rewards     []float64 // ring of the last RewardWindowSize rewards
	rewardHead  int

	present map[MemberName]bool // membership set as of the previous tick
}

// New creates a fresh Ensemble at the initial member weights.
func New(cfg Config) *Ensemble {
	return &Ensemble{cfg: cfg, weights: domain.DefaultEnsembleWeights(), present: make(map[MemberName]bool)}
}

// FromWeights restores an Ensemble from a persisted weight snapshot.
func FromWeights(cfg Config, w domain.EnsembleWeights, updateCount int) *Ensemble {
	return &Ensemble{cfg: cfg, weights: w, updateCount: updateCount, present: make(map[MemberName]bool)}
}

// Weights returns the current member weight snapshot for persistence.
func (e *Ensemble) Weights() domain.EnsembleWeights { return e.weights }

// UpdateCount returns the number of weight updates folded in so far.
func (e *Ensemble) UpdateCount() int { return e.updateCount }

// ShouldDelegate reports whether vote aggregation must be skipped entirely
// in favor of the cold-start manager.
func ShouldDelegate(phase domain.ColdStartPhase) bool {
	return phase != domain.PhaseNormal
}

// Decision is the result of aggregating one tick's votes.
type Decision struct {
	Action      domain.Action
	Confidence  float64
	Contributions map[MemberName]float64
}

// Aggregate re-normalizes weights over the members that actually voted this
// tick, computes each member's contribution to its voted action, and
// returns the action with the highest total contribution along with the
// weighted-mean confidence of the members that backed it.
func (e *Ensemble) Aggregate(votes map[MemberName]Vote) Decision {
	weightMap := e.weights.AsMap()
	var presentMass float64
	for name := range votes {
		presentMass += weightMap[string(name)]
	}
	if presentMass <= 0 {
		presentMass = 1
	}

	type bucket struct {
		action       domain.Action
		contribution float64
		weightedConf float64
		weightMass   float64
	}
	buckets := make([]*bucket, 0, len(votes))
	find := func(a domain.Action) *bucket {
		for _, b := range buckets {
			if b.action.Equal(a) {
				return b
			}
		}
		return nil
	}

	for name, v := range votes {
		w := weightMap[string(name)] / presentMass
		contribution := w * math.Tanh(v.RawScore/2) * (0.5 + 0.5*v.Confidence)

		b := find(v.Action)
		if b == nil {
			b = &bucket{action: v.Action}
			buckets = append(buckets, b)
		}
		b.contribution += contribution
		b.weightedConf += w * v.Confidence
		b.weightMass += w
	}

	best := buckets[0]
	for _, b := range buckets[1:] {
		if b.contribution > best.contribution {
			best = b
		}
	}

	confidence := 0.0
	if best.weightMass > 0 {
		confidence = best.weightedConf / best.weightMass
	}

	contributions := make(map[MemberName]float64, len(votes))
	for name, v := range votes {
		if v.Action.Equal(best.action) {
			contributions[name] = weightMap[string(name)] / presentMass * math.Tanh(v.RawScore/2) * (0.5 + 0.5*v.Confidence)
		}
	}

	return Decision{Action: best.action, Confidence: domain.Clamp(confidence, 0, 1), Contributions: contributions}
}

// pushReward records one observed reward into the rolling window used by
// the adaptive learning-rate term.
func (e *Ensemble) pushReward(r float64) {
	if e.cfg.RewardWindowSize <= 0 {
		return
	}
	if len(e.rewards) < e.cfg.RewardWindowSize {
		e.rewards = append(e.rewards, r)
	} else {
		e.rewards[e.rewardHead] = r
		e.rewardHead = (e.rewardHead + 1) % e.cfg.RewardWindowSize
	}
}

func (e *Ensemble) rewardSigma() float64 {
	n := len(e.rewards)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, r := range e.rewards {
		mean += r
	}
	mean /= float64(n)
	var variance float64
	for _, r := range e.rewards {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(n)
	return math.Sqrt(variance)
}

func (e *Ensemble) learningRate() float64 {
	decay := 0.3 + 0.7*math.Exp(-float64(e.updateCount)/100.0)
	lr := e.cfg.BaseLR * decay * (1 + 0.5*sigmoidUnit(e.rewardSigma()))
	return domain.Clamp(lr, e.cfg.LRFloor, e.cfg.LRCeiling)
}

// sigmoidUnit squashes a non-negative spread measure into [0,1) via a
// logistic centered at zero: a raw standard deviation has no natural
// ceiling to feed the learning rate's bounded multiplier.
func sigmoidUnit(x float64) float64 {
	return 2.0/(1.0+math.Exp(-2*x)) - 1.0
}

// UpdateWeights applies one tick's reward to the member weights:
// absent-member decay, recovered-from-absence boost, the gradient step for
// present members, then clip-and-renormalize (resetting outright if too
// many members clip).
func (e *Ensemble) UpdateWeights(votes map[MemberName]Vote, execAction domain.Action, reward float64) {
	reward = domain.Clamp(reward, -1, 1)
	e.pushReward(reward)
	lr := e.learningRate()

	w := e.weights.AsMap()
	nowPresent := make(map[MemberName]bool, len(votes))

	for _, name := range allMembers {
		key := string(name)
		v, voted := votes[name]
		nowPresent[name] = voted

		if !voted {
			w[key] = math.Max(2*domain.MinWeight, 0.98*w[key])
			continue
		}

		if !e.present[name] {
			w[key] = math.Min(0.35, 1.05*w[key])
		}

		alignment := -0.5
		if v.Action.Equal(execAction) {
			alignment = 1.0
		}
		gradient := reward * alignment * (0.5 + 0.5*v.Confidence)
		w[key] = w[key] * math.Exp(lr*gradient)
	}

	e.weights = renormalize(w, e.cfg.ClipResetFraction)
	e.present = nowPresent
	e.updateCount++
}

// renormalize clips below-floor weights to MinWeight, then rescales only
// the un-clipped members to fill the remaining mass (1 - MinWeight per
// clipped member) so the whole vector sums to 1. Rescaling the un-clipped
// members can itself push one of them below the floor, so this repeats
// until a pass clips nothing new. If clipping ever touches at least
// resetFraction members, the whole vector resets to the initial weights
// rather than converging toward a degenerate distribution.
func renormalize(w map[string]float64, resetFraction int) domain.EnsembleWeights {
	clamped := make(map[string]bool, len(w))
	for {
		var sum float64
		for k, v := range w {
			if !clamped[k] {
				sum += v
			}
		}
		target := 1.0 - domain.MinWeight*float64(len(clamped))
		if sum <= 0 || target <= 0 {
			return domain.DefaultEnsembleWeights()
		}
		scale := target / sum

		newlyClamped := false
		for k, v := range w {
			if clamped[k] {
				continue
			}
			if v*scale < domain.MinWeight {
				clamped[k] = true
				w[k] = domain.MinWeight
				newlyClamped = true
			}
		}
		if !newlyClamped {
			for k, v := range w {
				if !clamped[k] {
					w[k] = v * scale
				}
			}
			break
		}
	}

	if len(clamped) >= resetFraction {
		return domain.DefaultEnsembleWeights()
	}
	return domain.EnsembleWeightsFromMap(w)
}
