package domain

import "context"

// ─── Repository Interfaces ──────────────────────────────────────────────────
// These interfaces define the boundary between the decision engine core and
// its durable storage. Infrastructure (internal/infra/memrepo,
// internal/infra/sqlite) implements them; the engine core depends only on
// the interface.

// StateRepository loads and saves a user's UserState.
type StateRepository interface {
	Load(ctx context.Context, userID string) (UserState, bool, error)
	Save(ctx context.Context, userID string, state UserState) error
}

// ModelRepository loads and saves a user's LinUCB BanditModel. Load must
// repair a missing or invalid Cholesky factor by recomputing it from A, and
// must reset to a fresh model (with a warning) if A itself is malformed.
type ModelRepository interface {
	Load(ctx context.Context, userID string) (BanditModel, bool, error)
	Save(ctx context.Context, userID string, model BanditModel) error
}

// ColdStartRepository loads and saves a user's cold-start FSM state. An
// invalid persisted state resets to a fresh classify-phase state.
type ColdStartRepository interface {
	Load(ctx context.Context, userID string) (ColdStartState, bool, error)
	Save(ctx context.Context, userID string, state ColdStartState) error
}

// EnsembleRepository loads and saves a user's ensemble member weights.
type EnsembleRepository interface {
	Load(ctx context.Context, userID string) (EnsembleWeights, bool, error)
	Save(ctx context.Context, userID string, weights EnsembleWeights) error
}

// ThompsonRepository loads and saves a user's Thompson Sampling posteriors.
type ThompsonRepository interface {
	Load(ctx context.Context, userID string) (ThompsonState, bool, error)
	Save(ctx context.Context, userID string, state ThompsonState) error
}
