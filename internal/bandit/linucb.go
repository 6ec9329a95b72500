// Package bandit implements the LinUCB contextual bandit learner: a
// ridge-regularized linear posterior maintained through a Cholesky factor
// (see cholesky.go), scored with an upper confidence bound.
package bandit

import (
	"log"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// Config tunes the cold-start alpha schedule. Thresholds are
// expressed in interaction counts and accuracy fractions so tests can shrink
// them without touching the learner's numerics.
type Config struct {
	Lambda float64

	WarmupInteractions int     // n below this uses AlphaCold
	StableInteractions int     // n below this (but >= warmup) uses the accuracy-gated alpha
	AccuracyGate       float64 // recentAccuracy above this, with low fatigue, allows AlphaLow
	FatigueGate        float64 // fatigue below this, with high accuracy, allows AlphaLow

	AlphaCold   float64 // n < WarmupInteractions
	AlphaLow    float64 // warmup <= n < stable, accuracy and fatigue gates pass
	AlphaHigh   float64 // warmup <= n < stable, gates fail
	AlphaSteady float64 // n >= StableInteractions
}

// DefaultConfig returns the production cold-start alpha schedule.
func DefaultConfig() Config {
	return Config{
		Lambda:             domain.DefaultLambda,
		WarmupInteractions: 15,
		StableInteractions: 50,
		AccuracyGate:       0.75,
		FatigueGate:        0.5,
		AlphaCold:          0.5,
		AlphaLow:           1.0,
		AlphaHigh:          2.0,
		AlphaSteady:        0.7,
	}
}

// Learner is one user's LinUCB posterior plus the config driving its
// exploration schedule. Owned exclusively by one user; callers must hold
// that user's serial lock around every method call.
type Learner struct {
	cfg   Config
	d     int
	A     []float64
	B     []float64
	L     []float64
	n     int
	alpha float64

	recentAccuracy float64
	fatigue        float64
}

// NewLearner creates a fresh learner at dimension d (domain.ContextDim in
// production; tests use smaller d to exercise the matrix math cheaply).
func NewLearner(cfg Config, d int) *Learner {
	m := domain.NewBanditModel(d, cfg.Lambda)
	return &Learner{cfg: cfg, d: d, A: m.A, B: m.B, L: m.L, n: 0, alpha: cfg.AlphaCold}
}

// FromModel restores a Learner from persisted state, handling the dimension
// migration rule: if the stored model's dimension is
// smaller than d, zero-pad A/b and recompute L at the new dimension; if it
// is larger, the stored model predates a schema shrink and cannot be safely
// narrowed, so it resets to a fresh model and logs a warning rather than
// silently discarding signal.
func FromModel(cfg Config, m domain.BanditModel, d int) *Learner {
	if m.D == d {
		l := m.L
		if len(l) != d*d {
			if recomputed, ok := cholesky(m.A, d); ok {
				l = recomputed
			} else {
				log.Printf("[bandit] model corrupted (L absent, recompute failed), resetting to fresh state")
				return NewLearner(cfg, d)
			}
		}
		return &Learner{cfg: cfg, d: d, A: append([]float64(nil), m.A...), B: append([]float64(nil), m.B...), L: l, n: m.UpdateCount, alpha: m.Alpha}
	}

	if m.D < d {
		log.Printf("[bandit] migrating model dimension %d -> %d (zero-pad + re-Cholesky)", m.D, d)
		a := zeroPadMatrix(m.A, m.D, d, cfg.Lambda)
		b := zeroPadVector(m.B, m.D, d)
		l, ok := cholesky(a, d)
		if !ok {
			log.Printf("[bandit] migration Cholesky failed, resetting to fresh state")
			return NewLearner(cfg, d)
		}
		return &Learner{cfg: cfg, d: d, A: a, B: b, L: l, n: m.UpdateCount, alpha: m.Alpha}
	}

	log.Printf("[bandit] stored model dimension %d exceeds current %d, resetting (cannot safely narrow)", m.D, d)
	return NewLearner(cfg, d)
}

// zeroPadMatrix embeds the old d0×d0 matrix in the top-left of a new d×d
// matrix, with lambda on the newly added diagonal entries.
func zeroPadMatrix(a []float64, d0, d int, lambda float64) []float64 {
	out := make([]float64, d*d)
	for i := 0; i < d; i++ {
		out[i*d+i] = lambda
	}
	for i := 0; i < d0; i++ {
		for j := 0; j < d0; j++ {
			out[i*d+j] = a[i*d0+j]
		}
	}
	return out
}

func zeroPadVector(b []float64, d0, d int) []float64 {
	out := make([]float64, d)
	copy(out, b)
	return out
}

// ToModel snapshots the learner's current state for persistence.
func (lr *Learner) ToModel() domain.BanditModel {
	return domain.BanditModel{
		D:           lr.d,
		Lambda:      lr.cfg.Lambda,
		Alpha:       lr.alpha,
		A:           append([]float64(nil), lr.A...),
		B:           append([]float64(nil), lr.B...),
		L:           append([]float64(nil), lr.L...),
		UpdateCount: lr.n,
	}
}

// Score computes (theta.x, ucb) for one context vector: theta solves
// A*theta = b, and ucb = theta.x + alpha*||L^{-1}.x||.
func (lr *Learner) Score(ctx domain.ContextVector) (mean, ucb float64) {
	theta := solve(lr.L, lr.d, lr.B)
	x := ctx[:]
	for i, t := range theta {
		mean += t * x[i]
	}
	width := quadFormNorm(lr.L, lr.d, x)
	return mean, mean + lr.alpha*width
}

// Candidate pairs an action with its pre-built context vector, so the
// engine orchestrator can build contexts once per candidate and reuse them
// across ensemble members.
type Candidate struct {
	Action domain.Action
	Ctx    domain.ContextVector
}

// BuildCandidates builds one context vector per action in the candidate set
// for a given user state, time and recent signals.
func BuildCandidates(state domain.UserState, actions []domain.Action, tsMs int64, sig Signals) []Candidate {
	out := make([]Candidate, len(actions))
	for i, a := range actions {
		out[i] = Candidate{Action: a, Ctx: buildContext(state, a, tsMs, sig)}
	}
	return out
}

// Select scores every candidate and returns the argmax action, its UCB
// score and its mean estimate, breaking ties by the candidates' original
// order (which callers should supply in domain.ActionSpace order to keep
// selection deterministic).
func (lr *Learner) Select(candidates []Candidate) (domain.Action, float64, float64) {
	lr.updateAlpha()

	best := candidates[0]
	bestMean, bestUCB := lr.Score(best.Ctx)
	for _, c := range candidates[1:] {
		mean, ucb := lr.Score(c.Ctx)
		if ucb > bestUCB {
			best = c
			bestUCB = ucb
			bestMean = mean
		}
	}
	return best.Action, bestUCB, bestMean
}

// Update folds in one observed (context, reward) pair: A += x.xᵀ,
// b += reward*x, and the Cholesky factor updates via a rank-1 update with
// fallback to a full recompute, and a last-resort reset-to-lambda*I if even
// that fails. A non-finite context component rejects
// the whole update; out-of-range but finite components are clamped.
func (lr *Learner) Update(ctx domain.ContextVector, reward float64) {
	x := make([]float64, lr.d)
	for i := range x {
		if !domain.Finite(ctx[i]) {
			log.Printf("[bandit] update rejected: non-finite context component at index %d", i)
			return
		}
		if ctx[i] > 50 || ctx[i] < -50 {
			log.Printf("[bandit] context component %d overflows [-50,50] (%v), clamping", i, ctx[i])
		}
		x[i] = domain.Clamp(ctx[i], -50, 50)
	}

	for i := 0; i < lr.d; i++ {
		for j := 0; j < lr.d; j++ {
			lr.A[i*lr.d+j] += x[i] * x[j]
		}
		lr.B[i] += reward * x[i]
	}

	if !choleskyRank1Update(lr.L, lr.d, x, 1) {
		if l, ok := cholesky(lr.A, lr.d); ok {
			lr.L = l
		} else {
			log.Printf("[bandit] Cholesky recompute failed after %d updates, resetting posterior to lambda*I", lr.n)
			fresh := domain.NewBanditModel(lr.d, lr.cfg.Lambda)
			lr.A, lr.B, lr.L = fresh.A, fresh.B, fresh.L
		}
	}

	lr.n++
}

// updateAlpha applies the cold-start exploration schedule.
// recentAccuracy/fatigue default to neutral values until the caller records
// them via SetRecentStats; Select always recomputes alpha from the current
// interaction count so persistence of alpha itself is advisory only.
func (lr *Learner) updateAlpha() {
	switch {
	case lr.n < lr.cfg.WarmupInteractions:
		lr.alpha = lr.cfg.AlphaCold
	case lr.n < lr.cfg.StableInteractions:
		if lr.recentAccuracy > lr.cfg.AccuracyGate && lr.fatigue < lr.cfg.FatigueGate {
			lr.alpha = lr.cfg.AlphaLow
		} else {
			lr.alpha = lr.cfg.AlphaHigh
		}
	default:
		lr.alpha = lr.cfg.AlphaSteady
	}
}

// recentAccuracy/fatigue back the cold-start alpha gate; SetRecentStats lets
// the orchestrator feed in the short-horizon signals ahead of Select.
func (lr *Learner) SetRecentStats(recentAccuracy, fatigue float64) {
	lr.recentAccuracy = recentAccuracy
	lr.fatigue = fatigue
}

// Dim reports the learner's context dimension.
func (lr *Learner) Dim() int { return lr.d }

// UpdateCount reports the number of Update calls folded into the posterior.
func (lr *Learner) UpdateCount() int { return lr.n }

// Alpha reports the current exploration coefficient.
func (lr *Learner) Alpha() float64 { return lr.alpha }
