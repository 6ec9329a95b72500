package domain

import "math"

// ─── LinUCB Bandit Model ────────────────────────────────────────────────────

// DefaultLambda is the ridge-regression regularizer floor.
const DefaultLambda = 1.0

// MinLambda is the minimum permitted ridge regularizer.
const MinLambda = 0.001

// CholeskyFloor is the floor applied to Cholesky diagonal entries to avoid
// a singular factor after repeated rank-1 updates.
const CholeskyFloor = 1e-9

// BanditModel is the persisted state of one user's LinUCB posterior. A and
// L are row-major flattenings of d×d matrices. Owned exclusively by one
// user; mutated only under that user's lock.
type BanditModel struct {
	D           int       `json:"d"`
	Lambda      float64   `json:"lambda"`
	Alpha       float64   `json:"alpha"`
	A           []float64 `json:"A"`
	B           []float64 `json:"b"`
	L           []float64 `json:"L,omitempty"`
	UpdateCount int       `json:"updateCount"`
}

// NewBanditModel returns the initial model state for dimension d:
// A = λI, b = 0, L = sqrt(λ)·I.
func NewBanditModel(d int, lambda float64) BanditModel {
	if lambda < MinLambda {
		lambda = MinLambda
	}
	a := make([]float64, d*d)
	l := make([]float64, d*d)
	sqrtLambda := math.Sqrt(lambda)
	for i := 0; i < d; i++ {
		a[i*d+i] = lambda
		l[i*d+i] = sqrtLambda
	}
	return BanditModel{
		D:      d,
		Lambda: lambda,
		Alpha:  0,
		A:      a,
		B:      make([]float64, d),
		L:      l,
	}
}

// ─── Thompson Sampling State ────────────────────────────────────────────────

// BetaParams is a Beta(alpha, beta) posterior over one arm's success rate.
type BetaParams struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// DefaultBetaPrior is the configurable default prior.
var DefaultBetaPrior = BetaParams{Alpha: 1, Beta: 1}

// ThompsonState is the persisted per-user Thompson Sampling posterior map:
// a global map keyed by action, and a contextual map keyed by
// (context bucket, action).
type ThompsonState struct {
	Global     map[string]BetaParams            `json:"global"`
	Contextual map[string]map[string]BetaParams `json:"contextual"`
}

// NewThompsonState returns an empty Thompson state.
func NewThompsonState() ThompsonState {
	return ThompsonState{
		Global:     make(map[string]BetaParams),
		Contextual: make(map[string]map[string]BetaParams),
	}
}

// ─── Ensemble Weights ───────────────────────────────────────────────────────

// MinWeight is the floor every ensemble member weight must respect.
const MinWeight = 0.05

// EnsembleWeights holds the non-negative, sum-to-one weights of the four
// ensemble members.
type EnsembleWeights struct {
	Thompson  float64 `json:"thompson"`
	LinUCB    float64 `json:"linucb"`
	ACTR      float64 `json:"actr"`
	Heuristic float64 `json:"heuristic"`
}

// DefaultEnsembleWeights returns the initial member weights.
func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{Thompson: 0.25, LinUCB: 0.40, ACTR: 0.25, Heuristic: 0.10}
}

// Sum returns the total weight mass.
func (w EnsembleWeights) Sum() float64 {
	return w.Thompson + w.LinUCB + w.ACTR + w.Heuristic
}

// AsMap returns the weights keyed by member name, in the fixed iteration
// order thompson, linucb, actr, heuristic.
func (w EnsembleWeights) AsMap() map[string]float64 {
	return map[string]float64{
		"thompson":  w.Thompson,
		"linucb":    w.LinUCB,
		"actr":      w.ACTR,
		"heuristic": w.Heuristic,
	}
}

// EnsembleWeightsFromMap rebuilds an EnsembleWeights from a member-keyed map,
// leaving any missing member at zero.
func EnsembleWeightsFromMap(m map[string]float64) EnsembleWeights {
	return EnsembleWeights{
		Thompson:  m["thompson"],
		LinUCB:    m["linucb"],
		ACTR:      m["actr"],
		Heuristic: m["heuristic"],
	}
}
