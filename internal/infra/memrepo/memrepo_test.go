package memrepo

import (
	"context"
	"math"
	"testing"

	"github.com/lexiloop/adaptengine/internal/domain"
)

func TestStateRepository_RoundTrip(t *testing.T) {
	s := New()
	repo := s.StateRepository()
	ctx := context.Background()

	_, found, err := repo.Load(ctx, "u1")
	if err != nil || found {
		t.Fatalf("Load() on empty store = (_, %v, %v), want (_, false, nil)", found, err)
	}

	want := domain.DefaultUserState(1000)
	want.Attention = 0.9
	if err := repo.Save(ctx, "u1", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := repo.Load(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("Load() after save = (_, %v, %v), want (_, true, nil)", found, err)
	}
	if got.Attention != 0.9 {
		t.Errorf("Attention = %v, want 0.9", got.Attention)
	}
}

func TestModelRepository_RepairsCorruptedA(t *testing.T) {
	s := New()
	repo := s.ModelRepository()
	ctx := context.Background()

	corrupt := domain.BanditModel{D: 4, Lambda: 1.0, A: []float64{1, 2, 3}, B: []float64{0, 0, 0, 0}}
	if err := repo.Save(ctx, "u1", corrupt); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := repo.Load(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("Load() = (_, %v, %v), want (_, true, nil)", found, err)
	}
	if len(got.A) != 4*4 {
		t.Errorf("len(A) = %d, want 16 after repair-reset", len(got.A))
	}
	if len(got.L) != 4*4 {
		t.Errorf("len(L) = %d, want 16 after repair-reset", len(got.L))
	}
}

func TestModelRepository_RecomputesMissingCholesky(t *testing.T) {
	s := New()
	repo := s.ModelRepository()
	ctx := context.Background()

	base := domain.NewBanditModel(3, 1.0)
	base.L = nil // simulate a persisted blob that dropped L
	if err := repo.Save(ctx, "u1", base); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, _, err := repo.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.L) != 9 {
		t.Fatalf("len(L) = %d, want 9 after recompute", len(got.L))
	}
	wantDiag := math.Sqrt(1.0)
	if math.Abs(got.L[0]-wantDiag) > 1e-9 {
		t.Errorf("L[0] = %v, want sqrt(lambda) = %v", got.L[0], wantDiag)
	}
}

func TestColdStartRepository_InvalidStateResetsOnLoad(t *testing.T) {
	s := New()
	repo := s.ColdStartRepository()
	ctx := context.Background()

	bad := domain.ColdStartState{Phase: "bogus"}
	if err := repo.Save(ctx, "u1", bad); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := repo.Load(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("Load() = (_, %v, %v), want (_, true, nil)", found, err)
	}
	if got.Phase != domain.PhaseClassify {
		t.Errorf("Phase = %v, want classify after invalid-state reset", got.Phase)
	}
}

func TestEnsembleAndThompsonRepositories_RoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	ew := domain.EnsembleWeights{Thompson: 0.3, LinUCB: 0.3, ACTR: 0.3, Heuristic: 0.1}
	if err := s.EnsembleRepository().Save(ctx, "u1", ew); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := s.EnsembleRepository().Load(ctx, "u1")
	if err != nil || !found || got != ew {
		t.Errorf("EnsembleRepository round-trip = (%v, %v, %v), want (%v, true, nil)", got, found, err, ew)
	}

	ts := domain.NewThompsonState()
	ts.Global["k"] = domain.BetaParams{Alpha: 2, Beta: 3}
	if err := s.ThompsonRepository().Save(ctx, "u1", ts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	gotTS, found, err := s.ThompsonRepository().Load(ctx, "u1")
	if err != nil || !found || gotTS.Global["k"] != ts.Global["k"] {
		t.Errorf("ThompsonRepository round-trip mismatch: %+v", gotTS)
	}
}
