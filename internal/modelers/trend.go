package modelers

import "github.com/lexiloop/adaptengine/internal/domain"

const (
	trendMinSamples   = 10
	trendMinSpanMs    = 15 * 24 * 3600 * 1000
	trendEMASpanDays  = 7
	trendSlopeUp      = 0.01
	trendSlopeDown    = -0.005
	trendFlatSlopeAbs = 0.005
	trendFlatVolatility = 0.05
	trendBufferCap    = 90
)

// trendSample is one (timestamp, ability) pair in the ring buffer.
type trendSample struct {
	tsMs    int64
	ability float64
}

// TrendConfig configures the trend estimator. The classification
// thresholds and window are fixed; this struct exists so tests can shrink
// the buffer capacity without changing behavior.
type TrendConfig struct {
	BufferCapacity int
}

// DefaultTrendConfig returns production defaults.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{BufferCapacity: trendBufferCap}
}

// TrendModel is the optional trend estimator classifying ability
// direction as up/flat/stuck/down.
type TrendModel struct {
	cfg     TrendConfig
	buf     []trendSample
	emaSlope float64
	haveEMA  bool
	volatility float64
}

// NewTrendModel creates a fresh estimator.
func NewTrendModel(cfg TrendConfig) *TrendModel {
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = trendBufferCap
	}
	return &TrendModel{cfg: cfg}
}

// Update records one (timestamp, ability) sample and returns the classified
// trend. ability is a scalar proxy for the learner's current skill level
// (the engine passes the Cognitive model's blended mean of mem/speed/
// stability — see engine orchestrator wiring).
func (m *TrendModel) Update(tsMs int64, ability float64) domain.Trend {
	if len(m.buf) > 0 {
		prev := m.buf[len(m.buf)-1]
		deltaDays := float64(tsMs-prev.tsMs) / (24 * 3600 * 1000)
		if deltaDays > 0 {
			dayDiff := (ability - prev.ability) / deltaDays
			alpha := 2.0 / (trendEMASpanDays + 1)
			if !m.haveEMA {
				m.emaSlope = dayDiff
				m.haveEMA = true
			} else {
				m.emaSlope = alpha*dayDiff + (1-alpha)*m.emaSlope
			}
			absDiff := dayDiff
			if absDiff < 0 {
				absDiff = -absDiff
			}
			m.volatility = alpha*absDiff + (1-alpha)*m.volatility
		}
	}

	m.buf = append(m.buf, trendSample{tsMs: tsMs, ability: ability})
	if len(m.buf) > m.cfg.BufferCapacity {
		m.buf = m.buf[len(m.buf)-m.cfg.BufferCapacity:]
	}

	slope := m.emaSlope
	if m.hasMatureWindow() {
		slope = m.regressionSlope()
	}

	switch {
	case slope > trendSlopeUp:
		return domain.TrendUp
	case slope < trendSlopeDown:
		return domain.TrendDown
	case absF(slope) <= trendFlatSlopeAbs && m.volatility < trendFlatVolatility:
		return domain.TrendFlat
	default:
		return domain.TrendStuck
	}
}

// hasMatureWindow reports whether the buffer holds >= 10 samples spanning
// >= 15 days, triggering the full linear-regression slope instead of the
// rolling 7-day EMA.
func (m *TrendModel) hasMatureWindow() bool {
	if len(m.buf) < trendMinSamples {
		return false
	}
	span := m.buf[len(m.buf)-1].tsMs - m.buf[0].tsMs
	return span >= trendMinSpanMs
}

// regressionSlope fits ability = a + b*days over the full buffer and
// returns b (ability change per day).
func (m *TrendModel) regressionSlope() float64 {
	n := float64(len(m.buf))
	if n < 2 {
		return 0
	}
	t0 := m.buf[0].tsMs
	var sumX, sumY, sumXY, sumXX float64
	for _, s := range m.buf {
		x := float64(s.tsMs-t0) / (24 * 3600 * 1000)
		y := s.ability
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// SetState restores a previously persisted EMA slope and volatility
// from a persisted snapshot. The sample buffer itself is not persisted; it rebuilds
// from subsequent events, which only widens the window the classifier sees.
func (m *TrendModel) SetState(emaSlope, volatility float64) {
	m.emaSlope = emaSlope
	m.volatility = volatility
	m.haveEMA = true
}
