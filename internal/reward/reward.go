// Package reward implements the multi-timescale delayed-reward
// aggregator. A single Aggregator is shared across all users (delayed
// reward events already carry their own userId), unlike the per-user
// components, so its queue is guarded by one mutex rather than a per-user
// lock map.
package reward

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// Tolerance is the numeric tolerance for "fully delivered" comparisons.
const Tolerance = 1e-9

// Config tunes the aggregator's schedule and queue bounds.
type Config struct {
	Schedule       []domain.RewardScale
	MaxQueueSize   int
	PruneTarget    int
	TTLSeconds     int64
	Now            func() time.Time
}

// DefaultConfig returns the production schedule and bounds,
// normalizing the schedule's weights to sum to 1 if they do not already.
func DefaultConfig() Config {
	return Config{
		Schedule:     normalizeSchedule(domain.DefaultRewardSchedule()),
		MaxQueueSize: domain.MaxRewardQueueSize,
		PruneTarget:  domain.RewardQueuePruneTarget,
		TTLSeconds:   domain.RewardEventTTLSeconds,
		Now:          time.Now,
	}
}

func normalizeSchedule(schedule []domain.RewardScale) []domain.RewardScale {
	var sum float64
	for _, s := range schedule {
		sum += s.Weight
	}
	if math.Abs(sum-1.0) < Tolerance || sum == 0 {
		return schedule
	}
	out := make([]domain.RewardScale, len(schedule))
	for i, s := range schedule {
		out[i] = domain.RewardScale{DelaySeconds: s.DelaySeconds, Weight: s.Weight / sum}
	}
	return out
}

func (c Config) maxDelaySeconds() int64 {
	var max int64
	for _, s := range c.Schedule {
		if s.DelaySeconds > max {
			max = s.DelaySeconds
		}
	}
	return max
}

// Aggregator holds the global pending delayed-reward queue.
type Aggregator struct {
	cfg   Config
	mu    sync.Mutex
	queue []domain.DelayedRewardEvent
}

// New creates an empty Aggregator.
func New(cfg Config) *Aggregator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Schedule) == 0 {
		cfg.Schedule = normalizeSchedule(domain.DefaultRewardSchedule())
	}
	return &Aggregator{cfg: cfg}
}

// FromEvents restores an Aggregator from a persisted event list.
func FromEvents(cfg Config, events []domain.DelayedRewardEvent) *Aggregator {
	a := New(cfg)
	a.queue = append(a.queue, events...)
	return a
}

// Events snapshots the pending queue for persistence.
func (a *Aggregator) Events() []domain.DelayedRewardEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.DelayedRewardEvent(nil), a.queue...)
}

// Enqueue pushes a new delayed-reward event, pruning the queue if it now
// exceeds MaxQueueSize.
func (a *Aggregator) Enqueue(userID string, rewardValue float64, tsMs int64, ctx *domain.ContextVector, actionIndex *int) domain.DelayedRewardEvent {
	event := domain.DelayedRewardEvent{
		ID:            uuid.NewString(),
		UserID:        userID,
		Reward:        domain.Clamp(rewardValue, -1, 1),
		TimestampMs:   tsMs,
		ContextVector: ctx,
		ActionIndex:   actionIndex,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = append(a.queue, event)
	if len(a.queue) > a.cfg.MaxQueueSize {
		a.pruneLocked()
	}
	return event
}

// deliveryProgress is the pruning-only progress metric:
// the fraction of total absolute reward mass already delivered. It is
// distinct from aggregate's per-scale progress_i.
func deliveryProgress(e domain.DelayedRewardEvent, schedule []domain.RewardScale) float64 {
	var deliveredAbs, targetAbs float64
	for _, d := range e.Delivered {
		deliveredAbs += math.Abs(d)
	}
	for _, s := range schedule {
		targetAbs += math.Abs(s.Weight * e.Reward)
	}
	if targetAbs == 0 {
		return 1
	}
	return deliveredAbs / targetAbs
}

// pruneLocked drops events — expired first, then highest delivery
// progress, then oldest — until the queue is at most PruneTarget long. The
// caller must hold a.mu.
func (a *Aggregator) pruneLocked() {
	nowMs := a.cfg.Now().UnixMilli()
	ttlMs := a.cfg.TTLSeconds * 1000

	type scored struct {
		event    domain.DelayedRewardEvent
		expired  bool
		progress float64
	}
	scoredEvents := make([]scored, len(a.queue))
	for i, e := range a.queue {
		scoredEvents[i] = scored{
			event:    e,
			expired:  nowMs-e.TimestampMs > ttlMs,
			progress: deliveryProgress(e, a.cfg.Schedule),
		}
	}

	sort.Slice(scoredEvents, func(i, j int) bool {
		si, sj := scoredEvents[i], scoredEvents[j]
		if si.expired != sj.expired {
			return si.expired // expired sorts first (dropped first)
		}
		if si.progress != sj.progress {
			return si.progress > sj.progress // highest progress next
		}
		return si.event.TimestampMs < sj.event.TimestampMs // then oldest
	})

	drop := len(scoredEvents) - a.cfg.PruneTarget
	if drop < 0 {
		drop = 0
	}
	log.Printf("[reward] queue over cap (%d), pruning %d events", len(scoredEvents), drop)

	kept := make([]domain.DelayedRewardEvent, 0, a.cfg.PruneTarget)
	for i := drop; i < len(scoredEvents); i++ {
		kept = append(kept, scoredEvents[i].event)
	}
	a.queue = kept
}

// Result is the return shape of Aggregate.
type Result struct {
	TotalIncrement float64
	Breakdown      []float64 // per-schedule-scale delta, aligned with cfg.Schedule
	PendingCount   int
}

// Aggregate walks the pending queue at "now", optionally filtered to one
// userID, applying each schedule scale's progressive delivery and dropping
// events that have either fully delivered or outlived the schedule's
// longest delay. Events outside the filter, or not yet expired but
// untouched this call, are left in the queue unprocessed.
func (a *Aggregator) Aggregate(nowMs int64, userID *string) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	schedule := a.cfg.Schedule
	maxDelay := a.cfg.maxDelaySeconds()
	ttlSeconds := a.cfg.TTLSeconds

	result := Result{Breakdown: make([]float64, len(schedule))}
	kept := make([]domain.DelayedRewardEvent, 0, len(a.queue))

	for _, e := range a.queue {
		if userID != nil && e.UserID != *userID {
			kept = append(kept, e)
			continue
		}

		ageSeconds := float64(nowMs-e.TimestampMs) / 1000.0
		if ageSeconds > float64(ttlSeconds) {
			log.Printf("[reward] event %s for user %s: %v (age %.0fs)", e.ID, e.UserID, domain.ErrRewardEventExpired, ageSeconds)
			continue
		}

		fullyDelivered := true
		for i, scale := range schedule {
			progress := 1.0
			if scale.DelaySeconds > 0 {
				progress = math.Min(1.0, ageSeconds/float64(scale.DelaySeconds))
			}
			target := scale.Weight * e.Reward * progress
			delta := target - e.Delivered[i]
			e.Delivered[i] += delta
			result.Breakdown[i] += delta
			result.TotalIncrement += delta

			finalTarget := scale.Weight * e.Reward
			if e.Reward >= 0 {
				if e.Delivered[i] < finalTarget-Tolerance {
					fullyDelivered = false
				}
			} else {
				if e.Delivered[i] > finalTarget+Tolerance {
					fullyDelivered = false
				}
			}
		}

		if !fullyDelivered && ageSeconds < float64(maxDelay) {
			kept = append(kept, e)
		}
	}

	a.queue = kept
	result.PendingCount = len(a.queue)
	return result
}
