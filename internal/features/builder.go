package features

import (
	"log"
	"sync"
	"time"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// Config controls the feature builder's windowing and eviction behavior.
type Config struct {
	Norm domain.FeatureNormConfig

	// TTL is how long a user's window state survives without an event
	// before it becomes eligible for eviction (default: 30m).
	TTL time.Duration

	// MaxUsers bounds the window map; once exceeded the oldest
	// (by LastAccess) entries are LRU-evicted (default: 10_000).
	MaxUsers int

	// RetryCap normalizes retry_norm: retryCount / RetryCap, clamped to 1.
	RetryCap float64

	// Now is an injectable clock for deterministic tests.
	Now func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Norm:     domain.DefaultFeatureNormConfig(),
		TTL:      30 * time.Minute,
		MaxUsers: 10_000,
		RetryCap: 5.0,
		Now:      time.Now,
	}
}

// userWindows is the per-user sliding-window state.
type userWindows struct {
	rt           ring
	pace         ring
	lastAccessMs int64
}

// Builder maintains per-user sliding windows and builds FeatureVectors.
// Thread-safe; each user's window is only ever mutated by that user's
// owning task under the engine's per-user lock, but the map itself is
// guarded here too since EvictExpired walks it independently of any user.
type Builder struct {
	mu      sync.Mutex
	cfg     Config
	windows map[string]*userWindows
}

// NewBuilder creates a feature builder with the given config. A zero-value
// Config.Now is replaced with time.Now.
func NewBuilder(cfg Config) *Builder {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxUsers <= 0 {
		cfg.MaxUsers = 10_000
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = 5.0
	}
	return &Builder{cfg: cfg, windows: make(map[string]*userWindows)}
}

// Build sanitizes e, updates userID's sliding windows in place, and computes
// the FeatureVector from the updated windows. caps bounds the
// anomaly gate; callers should check IsAnomalous before calling Build.
func (b *Builder) Build(userID string, e domain.RawEvent, caps domain.AnomalyCaps) domain.FeatureVector {
	e = e.Sanitize(caps)
	nowMs := b.cfg.Now().UnixMilli()

	b.mu.Lock()
	uw, ok := b.windows[userID]
	if !ok {
		uw = &userWindows{lastAccessMs: nowMs}
		b.windows[userID] = uw
		b.evictIfOverCapacityLocked()
	}
	uw.lastAccessMs = nowMs

	uw.rt.push(float64(e.ResponseTimeMs))
	pace := 0.0
	if e.ResponseTimeMs > 0 {
		pace = 60_000.0 / float64(e.ResponseTimeMs)
	}
	uw.pace.push(pace)

	rtMean := uw.rt.mean()
	rtCV := uw.rt.cv()
	paceCV := uw.pace.cv()
	drift := uw.rt.drift()
	b.mu.Unlock()

	n := b.cfg.Norm
	retryNorm := domain.Clamp(float64(e.RetryCount)/b.cfg.RetryCap, 0, 1)
	correctness := 0.0
	if e.IsCorrect {
		correctness = 1.0
	}

	return domain.FeatureVector{
		ZRTMean:      zscore(rtMean, n.RTMean.Mu, n.RTMean.Sigma),
		ZRTCV:        zscore(rtCV, n.RTCV.Mu, n.RTCV.Sigma),
		ZPaceCV:      zscore(paceCV, n.PaceCV.Mu, n.PaceCV.Sigma),
		ZPause:       zscore(float64(e.PauseCount), n.Pause.Mu, n.Pause.Sigma),
		ZSwitch:      zscore(float64(e.SwitchCount), n.Switch.Mu, n.Switch.Sigma),
		ZDrift:       zscore(drift, n.Drift.Mu, n.Drift.Sigma),
		ZInteraction: zscore(e.InteractionDensity, n.Interaction.Mu, n.Interaction.Sigma),
		ZFocusLoss:   zscore(float64(e.FocusLossDurationMs), n.FocusLoss.Mu, n.FocusLoss.Sigma),
		RetryNorm:    retryNorm,
		Correctness:  correctness,
	}
}

// IsAnomalous reports whether e should short-circuit the pipeline to the
// degraded-state fallback, without touching any window state.
func (b *Builder) IsAnomalous(e domain.RawEvent, caps domain.AnomalyCaps) bool {
	return e.Anomalous(caps)
}

// EvictExpired removes window state untouched for longer than cfg.TTL.
// Intended to run on a periodic background schedule, as a single pass that
// locks the map only briefly.
func (b *Builder) EvictExpired() int {
	nowMs := b.cfg.Now().UnixMilli()
	ttlMs := b.cfg.TTL.Milliseconds()

	b.mu.Lock()
	defer b.mu.Unlock()
	evicted := 0
	for userID, uw := range b.windows {
		if nowMs-uw.lastAccessMs > ttlMs {
			delete(b.windows, userID)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("[features] evicted %d expired user windows", evicted)
	}
	return evicted
}

// evictIfOverCapacityLocked drops the least-recently-accessed entries once
// the window map exceeds cfg.MaxUsers. Caller must hold b.mu.
func (b *Builder) evictIfOverCapacityLocked() {
	if len(b.windows) <= b.cfg.MaxUsers {
		return
	}
	oldestUser := ""
	oldestAccess := int64(1<<63 - 1)
	for userID, uw := range b.windows {
		if uw.lastAccessMs < oldestAccess {
			oldestAccess = uw.lastAccessMs
			oldestUser = userID
		}
	}
	if oldestUser != "" {
		delete(b.windows, oldestUser)
		log.Printf("[features] LRU-evicted user window, size exceeded MaxUsers=%d", b.cfg.MaxUsers)
	}
}

// UserCount returns the number of users with live window state. Exposed for
// tests and telemetry.
func (b *Builder) UserCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.windows)
}

// Reset clears all window state. Useful for tests.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows = make(map[string]*userWindows)
}
