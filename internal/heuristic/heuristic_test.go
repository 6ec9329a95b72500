package heuristic

import (
	"testing"

	"github.com/lexiloop/adaptengine/internal/domain"
)

func TestPreferredFor_HighFatigueEasesOff(t *testing.T) {
	s := domain.DefaultUserState(0)
	s.Fatigue = 0.9
	p := preferredFor(s)
	if p.Difficulty != domain.DifficultyEasy {
		t.Errorf("difficulty = %v, want easy under high fatigue", p.Difficulty)
	}
	if p.HintLevel != 2 {
		t.Errorf("hint level = %v, want max hints under high fatigue", p.HintLevel)
	}
}

func TestPreferredFor_HighMasteryPushesHarder(t *testing.T) {
	s := domain.DefaultUserState(0)
	s.Cognitive = domain.Cognitive{Mem: 0.9, Speed: 0.9, Stability: 0.9}
	s.Fatigue = 0.1
	s.Motivation = 0.5
	p := preferredFor(s)
	if p.Difficulty != domain.DifficultyHard {
		t.Errorf("difficulty = %v, want hard under high mastery", p.Difficulty)
	}
}

func TestPreferredFor_LowMotivationEasesOff(t *testing.T) {
	s := domain.DefaultUserState(0)
	s.Motivation = -0.8
	p := preferredFor(s)
	if p.Difficulty != domain.DifficultyEasy {
		t.Errorf("difficulty = %v, want easy under low motivation", p.Difficulty)
	}
}

func TestSelect_AlwaysReturnsAnActionFromCandidates(t *testing.T) {
	m := NewModel(DefaultConfig())
	s := domain.DefaultUserState(0)
	vote := m.Select(s, domain.ActionSpace)

	found := false
	for _, a := range domain.ActionSpace {
		if a.Equal(vote.Action) {
			found = true
			break
		}
	}
	if !found {
		t.Error("Select returned an action not in ActionSpace")
	}
	if vote.RawScore < 0 || vote.RawScore > 1 {
		t.Errorf("RawScore out of [0,1]: %v", vote.RawScore)
	}
}

func TestSelect_ExactMatchScoresMaximally(t *testing.T) {
	m := NewModel(DefaultConfig())
	s := domain.DefaultUserState(0)
	s.Cognitive = domain.Cognitive{Mem: 0.9, Speed: 0.9, Stability: 0.9}
	s.Fatigue = 0.1
	s.Motivation = 0.5

	exact := domain.Action{Difficulty: domain.DifficultyHard, HintLevel: 0, BatchSize: 16}
	other := domain.Action{Difficulty: domain.DifficultyEasy, HintLevel: 2, BatchSize: 5}

	vote := m.Select(s, []domain.Action{other, exact})
	if !vote.Action.Equal(exact) {
		t.Errorf("Select() = %v, want exact match %v", vote.Action, exact)
	}
	if vote.RawScore != 1.0 {
		t.Errorf("RawScore = %v, want 1.0 for exact match", vote.RawScore)
	}
}
