package engine

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/lexiloop/adaptengine/internal/bandit"
	"github.com/lexiloop/adaptengine/internal/coldstart"
	"github.com/lexiloop/adaptengine/internal/decision"
	"github.com/lexiloop/adaptengine/internal/domain"
	"github.com/lexiloop/adaptengine/internal/ensemble"
	"github.com/lexiloop/adaptengine/internal/features"
	"github.com/lexiloop/adaptengine/internal/reward"
	"github.com/lexiloop/adaptengine/internal/thompson"
)

// Repositories bundles the five persistence boundaries processEvent reads
// from and writes to.
type Repositories struct {
	State     domain.StateRepository
	Model     domain.ModelRepository
	ColdStart domain.ColdStartRepository
	Ensemble  domain.EnsembleRepository
	Thompson  domain.ThompsonRepository
}

// Engine is the orchestrator: it wires the feature builder, the five
// state estimators, every ensemble member, the decision mapper, the
// delayed-reward aggregator, the circuit breaker and per-user isolation
// into the single ProcessEvent pipeline.
type Engine struct {
	cfg   Config
	repos Repositories

	features *features.Builder
	rewards  *reward.Aggregator
	circuit  *CircuitBreaker
	locks    *userLocks

	mu    sync.Mutex // guards cache; per-user bundle mutation is already serialized by locks
	cache map[string]*UserModels
}

// NewEngine wires every sub-component from cfg and returns a ready Engine.
func NewEngine(cfg Config, repos Repositories) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		cfg:      cfg,
		repos:    repos,
		features: features.NewBuilder(cfg.FeaturesCfg),
		rewards:  reward.New(cfg.RewardCfg),
		circuit:  NewCircuitBreaker(cfg.CircuitCfg),
		locks:    newUserLocks(),
		cache:    make(map[string]*UserModels),
	}
}

// Circuit exposes the breaker for telemetry/health checks.
func (e *Engine) Circuit() *CircuitBreaker { return e.circuit }

// ProcessEvent runs one learner interaction through the full pipeline:
// per-user isolation, circuit-breaker gating, timeout
// enforcement, anomaly short-circuit, state/model hydration, feature
// extraction, state re-estimation, action selection (cold-start or
// ensemble), strategy mapping plus guardrails, reward computation, learning
// updates, and state-then-model persistence.
func (e *Engine) ProcessEvent(ctx context.Context, userID string, raw domain.RawEvent, opts domain.ProcessOptions) domain.ProcessResult {
	lk := e.locks.Lock(userID)
	defer lk.Unlock()

	if !e.circuit.CanExecute() {
		log.Printf("[engine] user=%s request refused: %v", userID, e.circuit.ErrFor())
		return intelligentFallback("circuit_open", domain.DefaultUserState(raw.TimestampMs), opts.InteractionCount, 0, raw.TimestampMs, e.cfg.ColdStartInteractionCeiling)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := e.cfg.Now()
	result, err := e.process(ctx, userID, raw, opts)
	if err != nil {
		e.circuit.RecordFailure()
		log.Printf("[engine] user=%s processEvent failed: %v", userID, err)
		reason := "exception"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			reason = "timeout"
		}
		return intelligentFallback(reason, domain.DefaultUserState(raw.TimestampMs), opts.InteractionCount, 0, raw.TimestampMs, e.cfg.ColdStartInteractionCeiling)
	}

	if elapsed := e.cfg.Now().Sub(start); elapsed > e.cfg.Timeout {
		log.Printf("[engine] user=%s processEvent exceeded budget: %s", userID, elapsed)
	}

	e.circuit.RecordSuccess()
	return result
}

func (e *Engine) process(ctx context.Context, userID string, raw domain.RawEvent, opts domain.ProcessOptions) (domain.ProcessResult, error) {
	caps := domain.DefaultAnomalyCaps()
	if e.features.IsAnomalous(raw, caps) {
		return intelligentFallback("degraded_state", domain.DefaultUserState(raw.TimestampMs), opts.InteractionCount, 0, raw.TimestampMs, e.cfg.ColdStartInteractionCeiling), nil
	}

	um, prevState, err := e.loadUser(ctx, userID)
	if err != nil {
		return domain.ProcessResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ProcessResult{}, err
	}
	if opts.CurrentParams != nil {
		um.CurrentParams = *opts.CurrentParams
	}
	if opts.InteractionCount > um.InteractionCount {
		um.InteractionCount = opts.InteractionCount
	}

	fv := e.features.Build(userID, raw, caps)
	newState := um.Suite.Update(raw, fv, prevState.Confidence)
	um.RecentErrorRate = ema(um.RecentErrorRate, boolToFloat(!raw.IsCorrect), 0.2)
	rtNorm := float64(raw.ResponseTimeMs) / e.cfg.RewardWeights.ReferenceRTMs
	um.RecentRTNorm = ema(um.RecentRTNorm, rtNorm, 0.2)
	if opts.RecentAccuracy != nil {
		um.RecentAccuracy = *opts.RecentAccuracy
	} else {
		um.RecentAccuracy = ema(um.RecentAccuracy, boolToFloat(raw.IsCorrect), 0.2)
	}
	um.Bandit.SetRecentStats(um.RecentAccuracy, newState.Fatigue)

	phase := e.resolvePhase(um)

	action, explanation, votes := e.selectAction(um, newState, raw.TimestampMs, phase)

	strategy := decision.Map(e.cfg.DecisionCfg, um.CurrentParams, action)
	strategy = decision.Guardrails(strategy, newState)
	um.CurrentParams = strategy

	rewardValue := e.computeReward(raw, newState)
	shouldBreak := decision.ShouldSuggestBreak(newState)

	if err := ctx.Err(); err != nil {
		return domain.ProcessResult{}, err
	}

	if !opts.SkipUpdate {
		e.applyLearning(um, newState, raw, action, rewardValue, phase, userID, votes)
	}

	pfv := domain.NewPersistableFeatureVector(bandit.BuildCandidates(newState, []domain.Action{action}, raw.TimestampMs, bandit.Signals{RecentErrorRate: um.RecentErrorRate, RecentRTNorm: um.RecentRTNorm})[0].Ctx, raw.TimestampMs)

	if err := e.repos.State.Save(ctx, userID, newState); err != nil {
		return domain.ProcessResult{}, err
	}
	if err := ctx.Err(); err != nil {
		// Ordering guarantee: state is already durable; abort
		// before the model write so no half-applied learning is persisted.
		return domain.ProcessResult{}, err
	}
	if !opts.SkipUpdate {
		if err := e.persistModels(ctx, userID, um); err != nil {
			return domain.ProcessResult{}, err
		}
	}

	var suggestion *string
	if shouldBreak {
		s := "Consider a short break."
		suggestion = &s
	}

	return domain.ProcessResult{
		Strategy:      strategy,
		Action:        action,
		Explanation:   explanation,
		State:         newState,
		Reward:        rewardValue,
		Suggestion:    suggestion,
		ShouldBreak:   shouldBreak,
		FeatureVector: &pfv,
	}, nil
}

// loadUser returns the cached or freshly-hydrated UserModels bundle for
// userID, plus the user's previously persisted state (or a fresh default).
func (e *Engine) loadUser(ctx context.Context, userID string) (*UserModels, domain.UserState, error) {
	if um, ok := e.getCached(userID); ok {
		state, found, err := e.repos.State.Load(ctx, userID)
		if err != nil {
			return nil, domain.UserState{}, err
		}
		if !found {
			state = domain.DefaultUserState(e.cfg.Now().UnixMilli())
		}
		return um, state, nil
	}

	um := newUserModels(e.cfg, userID)

	state, found, err := e.repos.State.Load(ctx, userID)
	if err != nil {
		return nil, domain.UserState{}, err
	}
	if !found {
		state = domain.DefaultUserState(e.cfg.Now().UnixMilli())
	}

	if model, ok, err := e.repos.Model.Load(ctx, userID); err == nil && ok {
		um.Bandit = bandit.FromModel(e.cfg.BanditCfg, model, domain.ContextDim)
	} else if err != nil {
		return nil, domain.UserState{}, err
	}
	um.InteractionCount = um.Bandit.UpdateCount()
	um.Suite.SetState(state, um.InteractionCount)

	if e.cfg.Features.ColdStart {
		if cs, ok, err := e.repos.ColdStart.Load(ctx, userID); err == nil && ok {
			um.ColdStart = coldstart.FromState(e.cfg.ColdStartCfg, cs)
		} else if err != nil {
			return nil, domain.UserState{}, err
		}
	}
	if e.cfg.Features.Ensemble {
		if w, ok, err := e.repos.Ensemble.Load(ctx, userID); err == nil && ok {
			um.Ensemble = ensemble.FromWeights(e.cfg.EnsembleCfg, w, um.InteractionCount)
		} else if err != nil {
			return nil, domain.UserState{}, err
		}
	}
	if e.cfg.Features.Thompson {
		if ts, ok, err := e.repos.Thompson.Load(ctx, userID); err == nil && ok {
			um.Thompson = thompson.FromState(e.cfg.ThompsonCfg, ts, rand.New(rand.NewSource(userSeed(userID))))
		} else if err != nil {
			return nil, domain.UserState{}, err
		}
	}

	e.setCached(userID, um)
	return um, state, nil
}

func (e *Engine) getCached(userID string) (*UserModels, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	um, ok := e.cache[userID]
	return um, ok
}

func (e *Engine) setCached(userID string, um *UserModels) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[userID] = um
}

// resolvePhase determines the cold-start phase governing this tick: the
// Manager's own phase if cold-start is enabled, otherwise an
// interaction-count-based fallback classification.
func (e *Engine) resolvePhase(um *UserModels) domain.ColdStartPhase {
	if um.ColdStart != nil {
		return um.ColdStart.Phase()
	}
	switch {
	case um.InteractionCount < e.cfg.ColdStartInteractionCeiling:
		return domain.PhaseClassify
	case um.InteractionCount < e.cfg.ExploreInteractionCeiling:
		return domain.PhaseExplore
	default:
		return domain.PhaseNormal
	}
}

// selectAction runs the cold-start manager while the phase is not "normal"
//; otherwise it builds every candidate's
// context once and aggregates the votes of every enabled ensemble member,
// falling back to the bare LinUCB argmax if the ensemble is disabled. The
// returned vote map is what each member actually decided this tick — the
// weight update after the reward lands needs it to compute per-member
// alignment, so it travels from here to applyLearning rather than being
// reconstructed.
func (e *Engine) selectAction(um *UserModels, state domain.UserState, tsMs int64, phase domain.ColdStartPhase) (domain.Action, string, map[ensemble.MemberName]ensemble.Vote) {
	if um.ColdStart != nil && ensemble.ShouldDelegate(phase) {
		if a, ok := um.ColdStart.Select(); ok {
			return a, "cold-start phase=" + string(phase), nil
		}
	}

	sig := bandit.Signals{RecentErrorRate: um.RecentErrorRate, RecentRTNorm: um.RecentRTNorm}
	candidates := bandit.BuildCandidates(state, domain.ActionSpace, tsMs, sig)

	linAction, ucb, _ := um.Bandit.Select(candidates)
	linVote := ensemble.Vote{Action: linAction, RawScore: ucb, Confidence: 0.6}

	if um.Ensemble == nil {
		return linAction, "linucb ucb", nil
	}

	votes := map[ensemble.MemberName]ensemble.Vote{ensemble.MemberLinUCB: linVote}
	actions := make([]domain.Action, len(candidates))
	for i, c := range candidates {
		actions[i] = c.Action
	}

	if um.Thompson != nil {
		bucket := thompson.ContextBucket(state, tsMs)
		tv := um.Thompson.Select(actions, bucket)
		votes[ensemble.MemberThompson] = ensemble.Vote{Action: tv.Action, RawScore: tv.RawScore, Confidence: tv.Confidence}
	}
	if um.ACTR != nil {
		av := um.ACTR.Select(actions, tsMs)
		votes[ensemble.MemberACTR] = ensemble.Vote{Action: av.Action, RawScore: av.RawScore, Confidence: av.Confidence}
	}
	if um.Heuristic != nil {
		hv := um.Heuristic.Select(state, actions)
		votes[ensemble.MemberHeuristic] = ensemble.Vote{Action: hv.Action, RawScore: hv.RawScore, Confidence: hv.Confidence}
	}

	agg := um.Ensemble.Aggregate(votes)
	return agg.Action, "ensemble vote", votes
}

// computeReward applies the immediate-reward formula
// step 10: R = wCorrect*(2*isCorrect-1) - wFatigue*F + wSpeed*clip(refRT/rt-1,-1,1) - wFrustration*frustrationFlag,
// clamped to [-1,1]. frustrationFlag is 1 when retryCount>=2, mirroring the
// motivation estimator's own quit-signal threshold.
func (e *Engine) computeReward(raw domain.RawEvent, state domain.UserState) float64 {
	w := e.cfg.RewardWeights
	correctTerm := 2*boolToFloat(raw.IsCorrect) - 1

	speedTerm := 0.0
	if raw.ResponseTimeMs > 0 {
		speedTerm = domain.Clamp(w.ReferenceRTMs/float64(raw.ResponseTimeMs)-1, -1, 1)
	}

	frustration := 0.0
	if raw.RetryCount >= 2 {
		frustration = 1
	}

	r := w.Correct*correctTerm - w.Fatigue*state.Fatigue + w.Speed*speedTerm - w.Frustration*frustration
	return domain.Clamp(r, -1, 1)
}

// applyLearning folds the observed outcome into every learner that should
// see it this tick: the bandit always (its exploration schedule needs
// every interaction, cold-start phases included, to mature), the
// cold-start manager only while the phase is not yet normal, the remaining
// ensemble members only once cold-start has handed control to the normal
// phase, plus the delayed-reward aggregator regardless of phase.
func (e *Engine) applyLearning(um *UserModels, state domain.UserState, raw domain.RawEvent, action domain.Action, rewardValue float64, phase domain.ColdStartPhase, userID string, votes map[ensemble.MemberName]ensemble.Vote) {
	sig := bandit.Signals{RecentErrorRate: um.RecentErrorRate, RecentRTNorm: um.RecentRTNorm}
	ctxVec := bandit.BuildCandidates(state, []domain.Action{action}, raw.TimestampMs, sig)[0].Ctx
	um.Bandit.Update(ctxVec, rewardValue)

	if um.ColdStart != nil && phase != domain.PhaseNormal {
		um.ColdStart.Update(raw.IsCorrect, raw.ResponseTimeMs)
	}

	if phase == domain.PhaseNormal {
		if um.Thompson != nil {
			bucket := thompson.ContextBucket(state, raw.TimestampMs)
			um.Thompson.Update(action, bucket, rewardValue)
		}
		if um.ACTR != nil {
			um.ACTR.Record(action, raw.TimestampMs)
		}
		if um.Ensemble != nil && len(votes) > 0 {
			um.Ensemble.UpdateWeights(votes, action, rewardValue)
		}
	}

	um.InteractionCount++

	if !e.cfg.Features.DelayedReward {
		return
	}

	// Aggregate before Enqueue: folding in pending events first, then
	// queuing this tick's event, means the 0s-scale share of *this* event
	// is delivered on a later tick rather than immediately re-folded into
	// the full reward just applied above.
	delayed := e.rewards.Aggregate(raw.TimestampMs, &userID)
	if delayed.TotalIncrement != 0 {
		um.Bandit.Update(ctxVec, delayed.TotalIncrement)
	}

	actionIdx := domain.ActionIndex(action)
	var idxPtr *int
	if actionIdx >= 0 {
		idxPtr = &actionIdx
	}
	e.rewards.Enqueue(userID, rewardValue, raw.TimestampMs, &ctxVec, idxPtr)
}

// persistModels writes every persisted sub-model once learning has been
// folded in, after state is already durable.
func (e *Engine) persistModels(ctx context.Context, userID string, um *UserModels) error {
	if err := e.repos.Model.Save(ctx, userID, um.Bandit.ToModel()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if um.ColdStart != nil {
		if err := e.repos.ColdStart.Save(ctx, userID, um.ColdStart.ToState()); err != nil {
			return err
		}
	}
	if um.Ensemble != nil {
		if err := e.repos.Ensemble.Save(ctx, userID, um.Ensemble.Weights()); err != nil {
			return err
		}
	}
	if um.Thompson != nil {
		if err := e.repos.Thompson.Save(ctx, userID, um.Thompson.ToState()); err != nil {
			return err
		}
	}
	return nil
}

func ema(prev, sample, alpha float64) float64 {
	return alpha*sample + (1-alpha)*prev
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
