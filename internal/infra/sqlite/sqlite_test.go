package sqlite

import (
	"context"
	"math"
	"testing"

	"github.com/lexiloop/adaptengine/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStateRepository_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := db.StateRepository()
	ctx := context.Background()

	_, found, err := repo.Load(ctx, "u1")
	if err != nil || found {
		t.Fatalf("Load() on empty db = (_, %v, %v), want (_, false, nil)", found, err)
	}

	want := domain.DefaultUserState(1000)
	want.Attention = 0.8
	if err := repo.Save(ctx, "u1", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := repo.Load(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("Load() after save = (_, %v, %v), want (_, true, nil)", found, err)
	}
	if got.Attention != 0.8 {
		t.Errorf("Attention = %v, want 0.8", got.Attention)
	}
}

func TestStateRepository_UpsertOverwrites(t *testing.T) {
	db := newTestDB(t)
	repo := db.StateRepository()
	ctx := context.Background()

	s1 := domain.DefaultUserState(1000)
	s1.Fatigue = 0.2
	s2 := domain.DefaultUserState(2000)
	s2.Fatigue = 0.9

	repo.Save(ctx, "u1", s1)
	repo.Save(ctx, "u1", s2)

	got, _, err := repo.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Fatigue != 0.9 {
		t.Errorf("Fatigue = %v, want 0.9 after overwrite", got.Fatigue)
	}
}

func TestModelRepository_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := db.ModelRepository()
	ctx := context.Background()

	m := domain.NewBanditModel(5, 1.0)
	if err := repo.Save(ctx, "u1", m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := repo.Load(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("Load() = (_, %v, %v), want (_, true, nil)", found, err)
	}
	if got.D != 5 || len(got.A) != 25 {
		t.Errorf("got D=%d len(A)=%d, want D=5 len(A)=25", got.D, len(got.A))
	}
}

func TestModelRepository_RepairsCorruptedA(t *testing.T) {
	db := newTestDB(t)
	repo := db.ModelRepository()
	ctx := context.Background()

	corrupt := domain.BanditModel{D: 4, Lambda: 1.0, A: []float64{1, 2, 3}, B: []float64{0, 0, 0, 0}}
	if err := repo.Save(ctx, "u1", corrupt); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, _, err := repo.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.A) != 16 || len(got.L) != 16 {
		t.Errorf("len(A)=%d len(L)=%d, want 16/16 after repair-reset", len(got.A), len(got.L))
	}
}

func TestModelRepository_RecomputesMissingCholesky(t *testing.T) {
	db := newTestDB(t)
	repo := db.ModelRepository()
	ctx := context.Background()

	base := domain.NewBanditModel(3, 2.0)
	base.L = nil
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
	if math.Abs(got.L[0]-math.Sqrt(2.0)) > 1e-9 {
		t.Errorf("L[0] = %v, want sqrt(lambda) = %v", got.L[0], math.Sqrt(2.0))
	}
}

func TestColdStartRepository_RoundTripAndRepair(t *testing.T) {
	db := newTestDB(t)
	repo := db.ColdStartRepository()
	ctx := context.Background()

	valid := domain.DefaultColdStartState()
	valid.ProbeIndex = 2
	if err := repo.Save(ctx, "u1", valid); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := repo.Load(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("Load() = (_, %v, %v), want (_, true, nil)", found, err)
	}
	if got.ProbeIndex != 2 {
		t.Errorf("ProbeIndex = %d, want 2", got.ProbeIndex)
	}

	bad := domain.ColdStartState{Phase: "bogus"}
	if err := repo.Save(ctx, "u2", bad); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got2, found2, err := repo.Load(ctx, "u2")
	if err != nil || !found2 {
		t.Fatalf("Load() = (_, %v, %v), want (_, true, nil)", found2, err)
	}
	if got2.Phase != domain.PhaseClassify {
		t.Errorf("Phase = %v, want classify after invalid-state reset", got2.Phase)
	}
}

func TestEnsembleAndThompsonRepositories_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ew := domain.EnsembleWeights{Thompson: 0.3, LinUCB: 0.3, ACTR: 0.3, Heuristic: 0.1}
	if err := db.EnsembleRepository().Save(ctx, "u1", ew); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := db.EnsembleRepository().Load(ctx, "u1")
	if err != nil || !found || got != ew {
		t.Errorf("EnsembleRepository round-trip = (%v, %v, %v), want (%v, true, nil)", got, found, err, ew)
	}

	ts := domain.NewThompsonState()
	ts.Global["k"] = domain.BetaParams{Alpha: 2, Beta: 3}
	if err := db.ThompsonRepository().Save(ctx, "u1", ts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	gotTS, found, err := db.ThompsonRepository().Load(ctx, "u1")
	if err != nil || !found || gotTS.Global["k"] != ts.Global["k"] {
		t.Errorf("ThompsonRepository round-trip mismatch: %+v", gotTS)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	db1.Close()

	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open() on the same dir error = %v", err)
	}
	defer db2.Close()
}
