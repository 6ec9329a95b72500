package domain

// ─── Feature Vectors ────────────────────────────────────────────────────────

// FeatureLabels names the 10 channels of FeatureVector, in order.
var FeatureLabels = [10]string{
	"z_rt_mean", "z_rt_cv", "z_pace_cv", "z_pause", "z_switch",
	"z_drift", "z_interaction", "z_focus_loss", "retry_norm", "correctness",
}

// FeatureVector is the fixed 10-dimensional per-event vector consumed by the
// state modelers. Order and dimension are invariant.
type FeatureVector struct {
	ZRTMean       float64
	ZRTCV         float64
	ZPaceCV       float64
	ZPause        float64
	ZSwitch       float64
	ZDrift        float64
	ZInteraction  float64
	ZFocusLoss    float64
	RetryNorm     float64
	Correctness   float64
}

// Slice returns the vector as a flat []float64 in FeatureLabels order.
func (f FeatureVector) Slice() []float64 {
	return []float64{
		f.ZRTMean, f.ZRTCV, f.ZPaceCV, f.ZPause, f.ZSwitch,
		f.ZDrift, f.ZInteraction, f.ZFocusLoss, f.RetryNorm, f.Correctness,
	}
}

// ContextDim is the fixed dimensionality of the LinUCB context vector: six
// user-state channels, five scaled action-axis indices, a one-hot
// time-of-day encoding (4), two recent-performance signals, four cross
// interactions, and a bias term.
const ContextDim = 22

// ContextVector is the 22-D feature vector the bandit scores actions with.
type ContextVector [ContextDim]float64

// ContextLabels names each of the 22 context channels, in construction
// order, for persistence and debugging.
var ContextLabels = [ContextDim]string{
	"attention", "fatigue", "mem", "speed", "stability", "motivation",
	"action_interval_idx", "action_ratio_idx", "action_difficulty_idx",
	"action_batch_idx", "action_hint_idx",
	"time_morning", "time_noon", "time_evening", "time_night",
	"recent_error_rate", "recent_rt_norm",
	"attn_x_fatigue", "mem_x_speed", "motivation_x_error",
	"stability_x_rt", "bias",
}

// PersistableFeatureVector is the wire/persistence shape of a
// ContextVector. Dimension, version and label count must all agree or the
// repository must refuse to persist it.
type PersistableFeatureVector struct {
	Values     [ContextDim]float64 `json:"values"`
	Version    int                 `json:"version"`
	NormMethod string              `json:"normMethod"`
	TS         int64               `json:"ts"`
	Labels     [ContextDim]string  `json:"labels"`
}

// FeatureVectorVersion is the current wire version for PersistableFeatureVector.
const FeatureVectorVersion = 1

// Valid reports whether p has consistent dimension, version and label count.
func (p PersistableFeatureVector) Valid() bool {
	if p.Version != FeatureVectorVersion {
		return false
	}
	if p.NormMethod != "ucb-context" {
		return false
	}
	if len(p.Values) != ContextDim || len(p.Labels) != ContextDim {
		return false
	}
	return true
}

// NewPersistableFeatureVector wraps a ContextVector for persistence.
func NewPersistableFeatureVector(v ContextVector, ts int64) PersistableFeatureVector {
	return PersistableFeatureVector{
		Values:     [ContextDim]float64(v),
		Version:    FeatureVectorVersion,
		NormMethod: "ucb-context",
		TS:         ts,
		Labels:     ContextLabels,
	}
}

// NormChannel is a static per-channel normalization reference (mu, sigma)
// used by the z-score step in the feature builder. Values are configured,
// not learned — they describe the expected population distribution.
type NormChannel struct {
	Mu    float64
	Sigma float64
}

// FeatureNormConfig holds the static normalization references for every
// z-scored channel computed by the feature builder.
type FeatureNormConfig struct {
	RTMean      NormChannel
	RTCV        NormChannel
	PaceCV      NormChannel
	Pause       NormChannel
	Switch      NormChannel
	Drift       NormChannel
	Interaction NormChannel
	FocusLoss   NormChannel
}

// DefaultFeatureNormConfig returns population-plausible defaults for a
// vocabulary-drill spaced-repetition app.
func DefaultFeatureNormConfig() FeatureNormConfig {
	return FeatureNormConfig{
		RTMean:      NormChannel{Mu: 2500, Sigma: 1200},
		RTCV:        NormChannel{Mu: 0.35, Sigma: 0.2},
		PaceCV:      NormChannel{Mu: 0.35, Sigma: 0.2},
		Pause:       NormChannel{Mu: 1.5, Sigma: 2.0},
		Switch:      NormChannel{Mu: 0.5, Sigma: 1.2},
		Drift:       NormChannel{Mu: 0, Sigma: 0.3},
		Interaction: NormChannel{Mu: 1.0, Sigma: 0.8},
		FocusLoss:   NormChannel{Mu: 500, Sigma: 3000},
	}
}
