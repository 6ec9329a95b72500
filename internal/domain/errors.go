package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Event / feature errors
	ErrAnomalousEvent     = errors.New("event rejected: anomalous or malformed")
	ErrNonFiniteValue     = errors.New("non-finite numeric value")
	ErrDimensionMismatch  = errors.New("feature vector dimension mismatch")

	// Bandit / model errors
	ErrModelCorrupted   = errors.New("bandit model failed integrity check")
	ErrModelDimGrew     = errors.New("persisted model dimension exceeds current dimension")

	// Orchestrator errors
	ErrCircuitOpen     = errors.New("circuit breaker is open — service unavailable")
	ErrCircuitHalfOpen = errors.New("circuit breaker is half-open — limited traffic")
	ErrTimeout         = errors.New("operation exceeded deadline")
	ErrCancelled       = errors.New("operation cancelled")

	// Repository errors
	ErrPersistenceFailure = errors.New("persistence operation failed")
	ErrStateNotFound      = errors.New("user state not found")
	ErrModelNotFound      = errors.New("bandit model not found")

	// Delayed-reward errors
	ErrRewardEventExpired = errors.New("delayed-reward event expired before full delivery")
)
