package bandit

import "github.com/lexiloop/adaptengine/internal/domain"

// Signals bundles the short-horizon behavioral signals the context vector
// folds in alongside UserState and the candidate Action.
type Signals struct {
	RecentErrorRate float64 // fraction of the last events answered wrong, [0,1]
	RecentRTNorm    float64 // recent response time normalized to ~[0,2] (1.0 = population mean)
}

// intervalScaleMin/Max etc. are the min/max of each action axis, used to scale a
// candidate action's fields into the context vector's [0,1]-ish range.
const (
	intervalScaleMin = 0.5
	intervalScaleMax = 1.5
	newRatioMin      = 0.1
	newRatioMax      = 0.4
	batchSizeMin     = 5.0
	batchSizeMax     = 16.0
	hintLevelMax     = 2.0
)

func difficultyIndex(d domain.Difficulty) float64 {
	switch d {
	case domain.DifficultyEasy:
		return 0
	case domain.DifficultyMid:
		return 0.5
	case domain.DifficultyHard:
		return 1
	default:
		return 0.5
	}
}

// buildContext assembles the fixed 22-D ContextVector from a user's current
// state, a candidate action, the time bucket of the event, and the recent
// behavioral signals. Channel order matches domain.ContextLabels exactly.
func buildContext(state domain.UserState, action domain.Action, tsMs int64, sig Signals) domain.ContextVector {
	bucket := domain.ClassifyTimeBucket(tsMs)

	intervalIdx := (action.IntervalScale - intervalScaleMin) / (intervalScaleMax - intervalScaleMin)
	ratioIdx := (action.NewRatio - newRatioMin) / (newRatioMax - newRatioMin)
	diffIdx := difficultyIndex(action.Difficulty)
	batchIdx := (float64(action.BatchSize) - batchSizeMin) / (batchSizeMax - batchSizeMin)
	hintIdx := float64(action.HintLevel) / hintLevelMax

	var v domain.ContextVector
	v[0] = state.Attention
	v[1] = state.Fatigue
	v[2] = state.Cognitive.Mem
	v[3] = state.Cognitive.Speed
	v[4] = state.Cognitive.Stability
	v[5] = state.Motivation
	v[6] = domain.Clamp(intervalIdx, 0, 1)
	v[7] = domain.Clamp(ratioIdx, 0, 1)
	v[8] = diffIdx
	v[9] = domain.Clamp(batchIdx, 0, 1)
	v[10] = domain.Clamp(hintIdx, 0, 1)
	if bucket == domain.TimeMorning {
		v[11] = 1
	}
	if bucket == domain.TimeNoon {
		v[12] = 1
	}
	if bucket == domain.TimeEvening {
		v[13] = 1
	}
	if bucket == domain.TimeNight {
		v[14] = 1
	}
	v[15] = domain.Clamp(sig.RecentErrorRate, 0, 1)
	v[16] = domain.Clamp(sig.RecentRTNorm, 0, 2)
	v[17] = state.Attention * state.Fatigue
	v[18] = state.Cognitive.Mem * state.Cognitive.Speed
	v[19] = state.Motivation * v[15]
	v[20] = state.Cognitive.Stability * v[16]
	v[21] = 1

	return v
}
