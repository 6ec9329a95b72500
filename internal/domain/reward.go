package domain

// ─── Delayed Reward ─────────────────────────────────────────────────────────

// RewardScale is one (delay, weight) pair in the delayed-reward schedule.
type RewardScale struct {
	DelaySeconds int64
	Weight       float64
}

// DefaultRewardSchedule is the production multi-timescale schedule:
// immediate, 1h, 6h, 24h, 7d.
func DefaultRewardSchedule() []RewardScale {
	return []RewardScale{
		{DelaySeconds: 0, Weight: 0.30},
		{DelaySeconds: 3_600, Weight: 0.20},
		{DelaySeconds: 21_600, Weight: 0.15},
		{DelaySeconds: 86_400, Weight: 0.20},
		{DelaySeconds: 604_800, Weight: 0.15},
	}
}

// MaxRewardQueueSize is the hard cap on pending DelayedRewardEvents.
const MaxRewardQueueSize = 10_000

// RewardQueuePruneTarget is the size the queue is pruned down to once it
// exceeds MaxRewardQueueSize.
const RewardQueuePruneTarget = 9_000

// RewardEventTTLSeconds is the max age of a delayed-reward event before it
// expires with any undelivered remainder left on the table.
const RewardEventTTLSeconds = 8 * 24 * 3600

// DelayedRewardEvent is one pending multi-timescale reward delivery.
type DelayedRewardEvent struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Reward        float64   `json:"reward"`
	TimestampMs   int64     `json:"timestamp"`
	Delivered     [5]float64 `json:"delivered"`
	ContextVector *ContextVector `json:"featureVector,omitempty"`
	ActionIndex   *int      `json:"actionIndex,omitempty"`
}

// TotalDelivered sums the delivered fractions across all five scales.
func (e DelayedRewardEvent) TotalDelivered() float64 {
	var total float64
	for _, d := range e.Delivered {
		total += d
	}
	return total
}

// ─── Process Result ─────────────────────────────────────────────────────────

// ProcessOptions customizes a single processEvent invocation.
type ProcessOptions struct {
	CurrentParams    *StrategyParams
	InteractionCount int
	RecentAccuracy   *float64
	SkipUpdate       bool
}

// ProcessResult is the wire shape processEvent always returns — on the
// happy path or any fallback path alike.
type ProcessResult struct {
	Strategy      StrategyParams            `json:"strategy"`
	Action        Action                    `json:"action"`
	Explanation   string                    `json:"explanation"`
	State         UserState                 `json:"state"`
	Reward        float64                   `json:"reward"`
	Suggestion    *string                   `json:"suggestion"`
	ShouldBreak   bool                      `json:"shouldBreak"`
	FeatureVector *PersistableFeatureVector `json:"featureVector,omitempty"`
	Degraded      bool                      `json:"-"`
	FallbackReason string                   `json:"-"`
}
