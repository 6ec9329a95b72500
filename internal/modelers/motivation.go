package modelers

import "github.com/lexiloop/adaptengine/internal/domain"

// MotivationConfig configures the motivation estimator.
type MotivationConfig struct {
	Rho float64 // decay applied to the previous M value
	Kappa float64 // reward for success
	Lambda float64 // penalty for failure
	Mu float64 // penalty for a "quit" signal
	// QuitRetryThreshold: an incorrect answer with at least this many
	// retries counts as a quit signal (the learner gave up rather than
	// trying again).
	QuitRetryThreshold int
	// LowMotivationThreshold marks an event as "low-M" for the
	// consecutive-low-M counter.
	LowMotivationThreshold float64
}

// DefaultMotivationConfig returns production defaults.
func DefaultMotivationConfig() MotivationConfig {
	return MotivationConfig{
		Rho:                    0.9,
		Kappa:                  0.15,
		Lambda:                 0.20,
		Mu:                     0.30,
		QuitRetryThreshold:     2,
		LowMotivationThreshold: -0.3,
	}
}

// MotivationModel is the motivation estimator: M in [-1, 1].
type MotivationModel struct {
	cfg                 MotivationConfig
	value                float64
	consecutiveLowEvents int
}

// NewMotivationModel creates a fresh estimator seeded at the UserState default.
func NewMotivationModel(cfg MotivationConfig) *MotivationModel {
	return &MotivationModel{cfg: cfg, value: domain.DefaultUserState(0).Motivation}
}

// Value returns the current M_t without mutating state.
func (m *MotivationModel) Value() float64 { return m.value }

// ConsecutiveLowEvents returns the current streak of low-motivation events.
func (m *MotivationModel) ConsecutiveLowEvents() int { return m.consecutiveLowEvents }

// Update folds in one event and returns the new M_t.
func (m *MotivationModel) Update(e domain.RawEvent) float64 {
	success, failure, quit := 0.0, 0.0, 0.0
	if e.IsCorrect {
		success = 1.0
	} else {
		failure = 1.0
		if e.RetryCount >= m.cfg.QuitRetryThreshold {
			quit = 1.0
		}
	}

	next := m.cfg.Rho*m.value + m.cfg.Kappa*success - m.cfg.Lambda*failure - m.cfg.Mu*quit
	m.value = domain.Clamp(next, -1, 1)

	if m.value < m.cfg.LowMotivationThreshold {
		m.consecutiveLowEvents++
	} else {
		m.consecutiveLowEvents = 0
	}
	return m.value
}

// SetState restores a previously persisted value.
func (m *MotivationModel) SetState(value float64) {
	m.value = domain.Clamp(value, -1, 1)
}
