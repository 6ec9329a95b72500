// Package coldstart implements the cold-start finite state machine that
// runs a fixed 5-probe sequence on a new learner, classifies them into a
// user type, and hands a settled strategy back to the caller until the
// forced explore cap (MaxExploreInteractions) promotes the user to the
// normal phase. No ensemble-driven promotion is wired up.
package coldstart

import "github.com/lexiloop/adaptengine/internal/domain"

// Config tunes the classification thresholds and the forced-transition
// safety cap.
type Config struct {
	FastAccuracy    float64 // probe accuracy >= this -> candidate for "fast"
	FastMeanRTMs    float64 // probe mean RT <= this -> candidate for "fast"
	CautiousAccuracy float64 // probe accuracy <= this -> "cautious"
	CautiousMeanRTMs float64 // probe mean RT >= this -> "cautious"

	// MaxExploreInteractions is the number of explore-phase updates after
	// which Update forces the transition to normal; it is the only
	// promotion path the engine uses.
	MaxExploreInteractions int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		FastAccuracy:           0.75,
		FastMeanRTMs:           2000,
		CautiousAccuracy:       0.4,
		CautiousMeanRTMs:       4000,
		MaxExploreInteractions: 30,
	}
}

// probeSequence is the fixed 5-element probe sequence,
// chosen to span the action space's difficulty/interval/batch extremes.
// Each tuple is a genuine domain.ActionSpace member (difficulty/hint-level
// coupling from domain.buildActionSpace is respected by construction).
var probeSequence = [5]domain.Action{
	{IntervalScale: 1.0, NewRatio: 0.2, Difficulty: domain.DifficultyMid, BatchSize: 8, HintLevel: 1},
	{IntervalScale: 0.5, NewRatio: 0.1, Difficulty: domain.DifficultyEasy, BatchSize: 8, HintLevel: 2},
	{IntervalScale: 1.5, NewRatio: 0.4, Difficulty: domain.DifficultyHard, BatchSize: 16, HintLevel: 0},
	{IntervalScale: 0.8, NewRatio: 0.3, Difficulty: domain.DifficultyMid, BatchSize: 16, HintLevel: 1},
	{IntervalScale: 1.2, NewRatio: 0.2, Difficulty: domain.DifficultyHard, BatchSize: 8, HintLevel: 0},
}

var settledStrategyByType = map[domain.UserType]domain.Action{
	domain.UserFast:     {IntervalScale: 1.2, NewRatio: 0.3, Difficulty: domain.DifficultyHard, BatchSize: 16, HintLevel: 0},
	domain.UserStable:   {IntervalScale: 1.0, NewRatio: 0.2, Difficulty: domain.DifficultyMid, BatchSize: 8, HintLevel: 1},
	domain.UserCautious: {IntervalScale: 0.8, NewRatio: 0.1, Difficulty: domain.DifficultyEasy, BatchSize: 8, HintLevel: 2},
}

// probeOutcome is one classify-phase observation.
type probeOutcome struct {
	correct bool
	rtMs    int
}

// Manager is one user's cold-start FSM. Owned exclusively by one user;
// callers must hold that user's serial lock around every method call.
type Manager struct {
	cfg   Config
	state domain.ColdStartState

	outcomes []probeOutcome // accumulated during the classify phase only
}

// New creates a fresh Manager starting in the classify phase.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg, state: domain.DefaultColdStartState()}
}

// FromState restores a Manager from persisted state, resetting to a fresh
// classify-phase state if the stored state is malformed.
func FromState(cfg Config, s domain.ColdStartState) *Manager {
	if !s.Valid() {
		return New(cfg)
	}
	return &Manager{cfg: cfg, state: s}
}

// ToState snapshots the FSM for persistence.
func (m *Manager) ToState() domain.ColdStartState { return m.state }

// Phase reports the FSM's current phase.
func (m *Manager) Phase() domain.ColdStartPhase { return m.state.Phase }

// Select returns the action the cold-start manager wants to run this tick,
// and whether the caller should even ask (false once the phase is normal,
// at which point control returns to the Ensemble).
func (m *Manager) Select() (domain.Action, bool) {
	switch m.state.Phase {
	case domain.PhaseClassify:
		idx := m.state.ProbeIndex
		if idx > 4 {
			idx = 4
		}
		return probeSequence[idx], true
	case domain.PhaseExplore:
		if m.state.SettledStrategy != nil {
			return *m.state.SettledStrategy, true
		}
		return domain.ActionSpace[0], true
	default: // normal
		return domain.Action{}, false
	}
}

// Update folds in one observed outcome. In the classify phase this records
// a probe result and, on the 5th, classifies the user and transitions to
// explore. In the explore phase it advances the forced-transition counter
// (reusing ProbeIndex as an explore-interaction count) and force-promotes
// to normal once IsCompleted would report true. In the normal phase it is a
// no-op — the cold-start manager no longer participates.
func (m *Manager) Update(correct bool, rtMs int) {
	switch m.state.Phase {
	case domain.PhaseClassify:
		m.outcomes = append(m.outcomes, probeOutcome{correct: correct, rtMs: rtMs})
		if m.state.ProbeIndex >= 4 {
			m.classify()
			return
		}
		m.state.ProbeIndex++

	case domain.PhaseExplore:
		m.state.ProbeIndex++
		m.state.UpdateCount++
		if m.IsCompleted() {
			m.PromoteToNormal()
		}
	}
}

// classify computes userType from the accumulated probe outcomes, selects
// the settled strategy, and transitions classify -> explore.
func (m *Manager) classify() {
	n := len(m.outcomes)
	if n == 0 {
		n = 1
	}
	var correct int
	var rtSum float64
	for _, o := range m.outcomes {
		if o.correct {
			correct++
		}
		rtSum += float64(o.rtMs)
	}
	accuracy := float64(correct) / float64(n)
	meanRT := rtSum / float64(n)

	var userType domain.UserType
	switch {
	case accuracy >= m.cfg.FastAccuracy && meanRT <= m.cfg.FastMeanRTMs:
		userType = domain.UserFast
	case accuracy <= m.cfg.CautiousAccuracy || meanRT >= m.cfg.CautiousMeanRTMs:
		userType = domain.UserCautious
	default:
		userType = domain.UserStable
	}

	strategy := settledStrategyByType[userType]
	m.state.Phase = domain.PhaseExplore
	m.state.ProbeIndex = 0
	m.state.UserType = userType
	m.state.SettledStrategy = &strategy
	m.state.UpdateCount++
}

// IsCompleted reports whether the explore phase has run long enough that a
// forced transition to normal is warranted even without an explicit
// Ensemble-driven signal.
func (m *Manager) IsCompleted() bool {
	return m.state.Phase == domain.PhaseExplore && m.state.ProbeIndex >= m.cfg.MaxExploreInteractions
}

// PromoteToNormal forces phase -> normal. Update calls it once IsCompleted()
// is true; the ensemble package has no promotion criteria and never calls
// it, so the forced cap is the only promotion path in the engine.
func (m *Manager) PromoteToNormal() {
	if m.state.Phase == domain.PhaseNormal {
		return
	}
	m.state.Phase = domain.PhaseNormal
}
