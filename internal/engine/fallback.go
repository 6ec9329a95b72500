package engine

import "github.com/lexiloop/adaptengine/internal/domain"

// timeOfDayDefaults gives a coarse, time-aware strategy for the fallback
// ladder's third tier, independent of any learned state.
var timeOfDayDefaults = map[domain.TimeBucket]domain.StrategyParams{
	domain.TimeMorning: {IntervalScale: 1.0, NewRatio: 0.3, Difficulty: domain.DifficultyMid, BatchSize: 12, HintLevel: 1},
	domain.TimeNoon:    {IntervalScale: 1.0, NewRatio: 0.25, Difficulty: domain.DifficultyMid, BatchSize: 10, HintLevel: 1},
	domain.TimeEvening: {IntervalScale: 0.9, NewRatio: 0.2, Difficulty: domain.DifficultyMid, BatchSize: 8, HintLevel: 1},
	domain.TimeNight:   {IntervalScale: 0.7, NewRatio: 0.1, Difficulty: domain.DifficultyEasy, BatchSize: 5, HintLevel: 2},
}

// intelligentFallback computes a degraded-path ProcessResult when the
// normal pipeline cannot run: circuit open, a timeout/cancellation, or an
// unhandled exception.
//
// Tier order: a cold-start user (interactionCount below the cold-start
// ceiling) always gets SAFE_DEFAULT regardless of anything else; otherwise
// a high recent error rate forces an easy/heavy-hint strategy; otherwise a
// time-of-day default; otherwise state-based protection (high fatigue ->
// the fatigue-protected strategy); otherwise SAFE_DEFAULT.
func intelligentFallback(reason string, state domain.UserState, interactionCount int, recentErrorRate float64, tsMs int64, coldStartCeiling int) domain.ProcessResult {
	var strategy domain.StrategyParams

	switch {
	case interactionCount < coldStartCeiling:
		strategy = domain.DefaultStrategyParams()
	case recentErrorRate > 0.5:
		strategy = domain.StrategyParams{IntervalScale: 0.7, NewRatio: 0.1, Difficulty: domain.DifficultyEasy, BatchSize: 5, HintLevel: 2}
	case state.Fatigue > 0.65:
		strategy = domain.StrategyParams{IntervalScale: 1.0, NewRatio: 0.15, Difficulty: domain.DifficultyEasy, BatchSize: 6, HintLevel: 1}
	default:
		bucket := domain.ClassifyTimeBucket(tsMs)
		d, ok := timeOfDayDefaults[bucket]
		if !ok {
			d = domain.DefaultStrategyParams()
		}
		strategy = d
	}
	strategy = strategy.Clamp()

	return domain.ProcessResult{
		Strategy:       strategy,
		Action:         domain.Action{IntervalScale: strategy.IntervalScale, NewRatio: strategy.NewRatio, Difficulty: strategy.Difficulty, BatchSize: int(strategy.BatchSize), HintLevel: int(strategy.HintLevel)},
		Explanation:    "fallback: " + reason,
		State:          state,
		Reward:         0,
		ShouldBreak:    false,
		Degraded:       true,
		FallbackReason: reason,
	}
}
