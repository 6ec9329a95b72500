// Package memrepo is an in-process, map-backed implementation of every
// domain repository interface, for tests and for running the engine
// without a database.
package memrepo

import (
	"context"
	"log"
	"math"
	"sync"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// Store is an in-memory implementation of every domain repository
// interface. Safe for concurrent use by multiple users; the engine's own
// per-user locking bounds concurrent access to any one user's entries but
// Store's mutex protects the maps themselves against concurrent access
// from different users.
type Store struct {
	mu sync.RWMutex

	states     map[string]domain.UserState
	models     map[string]domain.BanditModel
	coldStarts map[string]domain.ColdStartState
	ensembles  map[string]domain.EnsembleWeights
	thompsons  map[string]domain.ThompsonState
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		states:     make(map[string]domain.UserState),
		models:     make(map[string]domain.BanditModel),
		coldStarts: make(map[string]domain.ColdStartState),
		ensembles:  make(map[string]domain.EnsembleWeights),
		thompsons:  make(map[string]domain.ThompsonState),
	}
}

// ─── StateRepository ────────────────────────────────────────────────────────

func (s *Store) LoadState(ctx context.Context, userID string) (domain.UserState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[userID]
	return st, ok, nil
}

func (s *Store) SaveState(ctx context.Context, userID string, state domain.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state.Clamped()
	return nil
}

// stateRepo adapts Store's exported methods to domain.StateRepository so
// Store itself can expose one method set per interface without name clashes
// (Load/Save would otherwise collide across all five interfaces).
type stateRepo struct{ s *Store }

func (r stateRepo) Load(ctx context.Context, userID string) (domain.UserState, bool, error) {
	return r.s.LoadState(ctx, userID)
}
func (r stateRepo) Save(ctx context.Context, userID string, state domain.UserState) error {
	return r.s.SaveState(ctx, userID, state)
}

// StateRepository returns the domain.StateRepository view of s.
func (s *Store) StateRepository() domain.StateRepository { return stateRepo{s} }

// ─── ModelRepository ────────────────────────────────────────────────────────

type modelRepo struct{ s *Store }

func (r modelRepo) Load(ctx context.Context, userID string) (domain.BanditModel, bool, error) {
	r.s.mu.RLock()
	m, ok := r.s.models[userID]
	r.s.mu.RUnlock()
	if !ok {
		return domain.BanditModel{}, false, nil
	}
	return RepairModel(m), true, nil
}

func (r modelRepo) Save(ctx context.Context, userID string, model domain.BanditModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.models[userID] = model
	return nil
}

// ModelRepository returns the domain.ModelRepository view of s.
func (s *Store) ModelRepository() domain.ModelRepository { return modelRepo{s} }

// RepairModel validates a loaded BanditModel's integrity:
// a malformed A matrix (wrong length or any non-finite entry) resets the
// model to a fresh one at its own declared dimension, with a warning; a
// missing or wrong-length Cholesky factor is recomputed from A via a plain
// Cholesky decomposition rather than trusting the stored L. Exported so the
// sqlite-backed repository can apply the same integrity check on load.
func RepairModel(m domain.BanditModel) domain.BanditModel {
	d := m.D
	if d <= 0 || len(m.A) != d*d || len(m.B) != d || !allFinite(m.A) || !allFinite(m.B) {
		log.Printf("[memrepo] bandit model corrupted (dim=%d len(A)=%d), resetting to fresh state", d, len(m.A))
		lambda := m.Lambda
		if lambda <= 0 {
			lambda = domain.DefaultLambda
		}
		if d <= 0 {
			d = domain.ContextDim
		}
		return domain.NewBanditModel(d, lambda)
	}

	if len(m.L) == d*d && allFinite(m.L) {
		return m
	}

	l, ok := recomputeCholesky(symmetrize(m.A, d), d)
	if !ok {
		log.Printf("[memrepo] bandit model's Cholesky factor could not be recomputed, resetting to fresh state")
		return domain.NewBanditModel(d, m.Lambda)
	}
	m.L = l
	return m
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if !domain.Finite(x) {
			return false
		}
	}
	return true
}

// symmetrize averages A with its transpose and floors the diagonal at
// domain.CholeskyFloor, repairing small asymmetries or degenerate entries
// that repeated rank-1 updates can introduce before a full Cholesky retry.
func symmetrize(a []float64, d int) []float64 {
	out := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			v := (a[i*d+j] + a[j*d+i]) / 2
			out[i*d+j] = v
		}
		if out[i*d+i] < domain.CholeskyFloor {
			out[i*d+i] = domain.CholeskyFloor
		}
	}
	return out
}

// recomputeCholesky performs a plain Cholesky decomposition of the d×d
// matrix a (row-major). A non-positive pivot is floored at
// domain.CholeskyFloor rather than rejected; ok is false only if a zero
// diagonal entry is met.
func recomputeCholesky(a []float64, d int) ([]float64, bool) {
	l := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i*d+j]
			for k := 0; k < j; k++ {
				sum -= l[i*d+k] * l[j*d+k]
			}
			if i == j {
				if sum <= 0 {
					sum = domain.CholeskyFloor
				}
				l[i*d+i] = math.Sqrt(sum)
			} else {
				if l[j*d+j] == 0 {
					return nil, false
				}
				l[i*d+j] = sum / l[j*d+j]
			}
		}
	}
	return l, true
}

// ─── ColdStartRepository ────────────────────────────────────────────────────

type coldStartRepo struct{ s *Store }

func (r coldStartRepo) Load(ctx context.Context, userID string) (domain.ColdStartState, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.coldStarts[userID]
	if !ok {
		return domain.ColdStartState{}, false, nil
	}
	if !st.Valid() {
		log.Printf("[memrepo] cold-start state for user %s invalid, resetting to classify", userID)
		return domain.DefaultColdStartState(), true, nil
	}
	return st, true, nil
}

func (r coldStartRepo) Save(ctx context.Context, userID string, state domain.ColdStartState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.coldStarts[userID] = state
	return nil
}

// ColdStartRepository returns the domain.ColdStartRepository view of s.
func (s *Store) ColdStartRepository() domain.ColdStartRepository { return coldStartRepo{s} }

// ─── EnsembleRepository ─────────────────────────────────────────────────────

type ensembleRepo struct{ s *Store }

func (r ensembleRepo) Load(ctx context.Context, userID string) (domain.EnsembleWeights, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.ensembles[userID]
	return w, ok, nil
}

func (r ensembleRepo) Save(ctx context.Context, userID string, weights domain.EnsembleWeights) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.ensembles[userID] = weights
	return nil
}

// EnsembleRepository returns the domain.EnsembleRepository view of s.
func (s *Store) EnsembleRepository() domain.EnsembleRepository { return ensembleRepo{s} }

// ─── ThompsonRepository ─────────────────────────────────────────────────────

type thompsonRepo struct{ s *Store }

func (r thompsonRepo) Load(ctx context.Context, userID string) (domain.ThompsonState, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.thompsons[userID]
	return st, ok, nil
}

func (r thompsonRepo) Save(ctx context.Context, userID string, state domain.ThompsonState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.thompsons[userID] = state
	return nil
}

// ThompsonRepository returns the domain.ThompsonRepository view of s.
func (s *Store) ThompsonRepository() domain.ThompsonRepository { return thompsonRepo{s} }
