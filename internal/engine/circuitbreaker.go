// Package engine implements the orchestrator that wires every other
// component into the single ProcessEvent pipeline, plus the circuit breaker
// and per-user isolation the pipeline depends on.
package engine

import (
	"math"
	"sync"
	"time"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// CircuitState is one state of the circuit breaker FSM.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// CircuitBreakerConfig tunes the breaker's window, trip threshold and
// recovery timing.
type CircuitBreakerConfig struct {
	WindowSize       int           // ring buffer capacity for recent outcomes
	SampleTTL        time.Duration // time-based expiry of a ring sample
	FailureRateTrip  float64       // failures in the window >= ceil(this*WindowSize) trips OPEN
	OpenDuration     time.Duration // OPEN -> HALF_OPEN after this long
	HalfOpenProbes   int           // consecutive successes needed HALF_OPEN -> CLOSED
	Now              func() time.Time
}

// DefaultCircuitBreakerConfig returns the production tuning: window 20,
// 60s sample expiry, trip at failureRate>=0.5, 5s OPEN cooldown, 2
// half-open probes.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		WindowSize:      20,
		SampleTTL:       60 * time.Second,
		FailureRateTrip: 0.5,
		OpenDuration:    5 * time.Second,
		HalfOpenProbes:  2,
		Now:             time.Now,
	}
}

type sample struct {
	ok bool
	at time.Time
}

// CircuitBreaker gates engine execution across all users: CLOSED lets every
// call through, OPEN rejects outright until OpenDuration elapses, HALF_OPEN
// lets a probe budget of calls through to test recovery. Shared across the
// whole engine (not per-user), guarded by its own mutex.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu          sync.Mutex
	state       CircuitState
	ring        []sample
	head        int
	openedAt    time.Time
	halfOpenBudget int
	halfOpenOK  int
}

// NewCircuitBreaker creates a breaker starting CLOSED.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	return &CircuitBreaker{cfg: cfg, state: CircuitClosed, ring: make([]sample, 0, cfg.WindowSize)}
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransitionLocked()
	return cb.state
}

// CanExecute reports whether the caller may proceed: true in CLOSED,
// false in OPEN, and a budgeted true in HALF_OPEN — each HALF_OPEN grant
// decrements the probe budget so only HalfOpenProbes calls run concurrently
// during recovery testing.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransitionLocked()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if cb.halfOpenBudget <= 0 {
			return false
		}
		cb.halfOpenBudget--
		return true
	default: // OPEN
		return false
	}
}

// maybeTransitionLocked advances OPEN -> HALF_OPEN once OpenDuration has
// elapsed. Caller must hold cb.mu.
func (cb *CircuitBreaker) maybeTransitionLocked() {
	if cb.state == CircuitOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.OpenDuration {
		cb.state = CircuitHalfOpen
		cb.halfOpenBudget = cb.cfg.HalfOpenProbes
		cb.halfOpenOK = 0
	}
}

// RecordSuccess folds in a successful call. In HALF_OPEN, HalfOpenProbes
// consecutive successes close the breaker; in CLOSED it just feeds the
// ring window.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.pushLocked(true)

	if cb.state == CircuitHalfOpen {
		cb.halfOpenOK++
		if cb.halfOpenOK >= cb.cfg.HalfOpenProbes {
			cb.closeLocked()
		}
	}
}

// RecordFailure folds in a failed call. Any HALF_OPEN failure immediately
// re-opens the breaker; in CLOSED, a failure count reaching
// ceil(FailureRateTrip*WindowSize) among the live samples trips it open —
// the breaker need not wait for a full window to fill first.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.pushLocked(false)

	if cb.state == CircuitHalfOpen {
		cb.openLocked()
		return
	}
	if cb.state == CircuitClosed && cb.failureRateLocked() {
		cb.openLocked()
	}
}

func (cb *CircuitBreaker) pushLocked(ok bool) {
	now := cb.cfg.Now()
	s := sample{ok: ok, at: now}
	if len(cb.ring) < cb.cfg.WindowSize {
		cb.ring = append(cb.ring, s)
	} else {
		cb.ring[cb.head] = s
		cb.head = (cb.head + 1) % cb.cfg.WindowSize
	}
}

// failureRateLocked reports whether the number of live (non-expired)
// failed samples has reached ceil(FailureRateTrip*WindowSize) — e.g. 10 of
// a window of 20 at the default 0.5 trip rate. Tripping depends only on
// the failure count, not on the window being fully populated first: 10
// failures among the first 10 calls trips exactly as readily as 10
// failures among a full window of 20. Caller must hold cb.mu.
func (cb *CircuitBreaker) failureRateLocked() bool {
	now := cb.cfg.Now()
	var failed int
	for _, s := range cb.ring {
		if now.Sub(s.at) > cb.cfg.SampleTTL {
			continue
		}
		if !s.ok {
			failed++
		}
	}
	threshold := int(math.Ceil(cb.cfg.FailureRateTrip * float64(cb.cfg.WindowSize)))
	if threshold < 1 {
		threshold = 1
	}
	return failed >= threshold
}

func (cb *CircuitBreaker) openLocked() {
	cb.state = CircuitOpen
	cb.openedAt = cb.cfg.Now()
	cb.ring = cb.ring[:0]
	cb.head = 0
}

func (cb *CircuitBreaker) closeLocked() {
	cb.state = CircuitClosed
	cb.ring = cb.ring[:0]
	cb.head = 0
	cb.halfOpenBudget = 0
	cb.halfOpenOK = 0
}

// ErrFor maps the breaker's current state to the sentinel error processEvent
// should surface when execution is refused.
func (cb *CircuitBreaker) ErrFor() error {
	switch cb.State() {
	case CircuitOpen:
		return domain.ErrCircuitOpen
	case CircuitHalfOpen:
		return domain.ErrCircuitHalfOpen
	default:
		return nil
	}
}
