package domain

// ─── Action Space ───────────────────────────────────────────────────────────

// Difficulty is one of the three discrete difficulty levels.
type Difficulty string

const (
	DifficultyEasy Difficulty = "easy"
	DifficultyMid  Difficulty = "mid"
	DifficultyHard Difficulty = "hard"
)

// Action is one tuple drawn from the closed action-space enumeration.
// Every learner and the cold-start manager select from the
// same package-level ACTION_SPACE slice; its content and order are a wire
// contract — delayed-reward events persist an index into it.
type Action struct {
	IntervalScale float64    `json:"interval_scale"`
	NewRatio      float64    `json:"new_ratio"`
	Difficulty    Difficulty `json:"difficulty"`
	BatchSize     int        `json:"batch_size"`
	HintLevel     int        `json:"hint_level"`
}

// Equal reports whether two actions have identical field values.
func (a Action) Equal(b Action) bool {
	return a.IntervalScale == b.IntervalScale &&
		a.NewRatio == b.NewRatio &&
		a.Difficulty == b.Difficulty &&
		a.BatchSize == b.BatchSize &&
		a.HintLevel == b.HintLevel
}

// discrete levels of each action axis.
var (
	intervalScaleLevels = [...]float64{0.5, 0.8, 1.0, 1.2, 1.5}
	newRatioLevels      = [...]float64{0.1, 0.2, 0.3, 0.4}
	difficultyLevels    = [...]Difficulty{DifficultyEasy, DifficultyMid, DifficultyHard}
	// batchSizeRepresentatives is the representative subset of the four configured
	// batch sizes {5, 8, 12, 16} that the frozen ACTION_SPACE spans; see
	// buildActionSpace for why the full 4-way cross is not taken.
	batchSizeRepresentatives = [...]int{8, 16}
)

// hintLevelForDifficulty couples the hint-level axis to difficulty so the
// frozen action space stays within the "≤ 120 actions" wire-contract bound
// (batch size is likewise limited to batchSizeRepresentatives):
// harder content defaults to fewer hints, easier content to more.
func hintLevelForDifficulty(d Difficulty) int {
	switch d {
	case DifficultyHard:
		return 0
	case DifficultyMid:
		return 1
	default: // easy
		return 2
	}
}

// buildActionSpace constructs the frozen, deterministic ACTION_SPACE.
//
// The full Cartesian product of the discrete levels is
// 5×4×3×4×3 = 720 tuples, far above the "≤ 120 Actions" wire-contract cap
// contract. Rather than truncate arbitrarily (which would silently
// favor whichever tuples happen to sort first), ACTION_SPACE couples the
// hint_level axis to difficulty (see hintLevelForDifficulty) and takes a
// 2-element representative subset of batch_size, giving an exact
// 5×4×3×2 = 120 tuples that still range over every discrete value of
// interval_scale, new_ratio and difficulty. Iteration
// order is interval_scale outer → new_ratio → difficulty → batch_size
// inner, frozen once at package init — this order is itself part of the
// wire contract since DelayedRewardEvent persists an action index.
func buildActionSpace() []Action {
	space := make([]Action, 0, 120)
	for _, iv := range intervalScaleLevels {
		for _, nr := range newRatioLevels {
			for _, diff := range difficultyLevels {
				hint := hintLevelForDifficulty(diff)
				for _, bs := range batchSizeRepresentatives {
					space = append(space, Action{
						IntervalScale: iv,
						NewRatio:      nr,
						Difficulty:    diff,
						BatchSize:     bs,
						HintLevel:     hint,
					})
				}
			}
		}
	}
	return space
}

// ActionSpace is the frozen, ordered ≤120-element action enumeration.
var ActionSpace = buildActionSpace()

// ActionIndex returns the index of a into ActionSpace, or -1 if not found.
func ActionIndex(a Action) int {
	for i, candidate := range ActionSpace {
		if candidate.Equal(a) {
			return i
		}
	}
	return -1
}

// ─── Strategy Params ────────────────────────────────────────────────────────

// StrategyParams is the continuous, safety-clamped strategy handed to the
// downstream learning application.
type StrategyParams struct {
	IntervalScale float64    `json:"interval_scale"`
	NewRatio      float64    `json:"new_ratio"`
	Difficulty    Difficulty `json:"difficulty"`
	BatchSize     float64    `json:"batch_size"`
	HintLevel     float64    `json:"hint_level"`
}

// Clamp restricts the continuous fields to their declared ranges.
func (p StrategyParams) Clamp() StrategyParams {
	p.IntervalScale = Clamp(p.IntervalScale, 0.5, 1.5)
	p.NewRatio = Clamp(p.NewRatio, 0.05, 0.5)
	p.BatchSize = Clamp(p.BatchSize, 5, 20)
	p.HintLevel = Clamp(p.HintLevel, 0, 2)
	if p.Difficulty == "" {
		p.Difficulty = DifficultyMid
	}
	return p
}

// FromAction seeds a StrategyParams from a discrete Action (identity map,
// prior to EMA smoothing by the decision mapper).
func FromAction(a Action) StrategyParams {
	return StrategyParams{
		IntervalScale: a.IntervalScale,
		NewRatio:      a.NewRatio,
		Difficulty:    a.Difficulty,
		BatchSize:     float64(a.BatchSize),
		HintLevel:     float64(a.HintLevel),
	}.Clamp()
}

// DefaultStrategyParams is the SAFE_DEFAULT strategy used by cold-start
// fallback and by a learner with no prior strategy to smooth from.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		IntervalScale: 1.0,
		NewRatio:      0.2,
		Difficulty:    DifficultyMid,
		BatchSize:     10,
		HintLevel:     1,
	}.Clamp()
}
