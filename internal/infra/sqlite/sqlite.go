// Package sqlite implements the durable repository backend: every domain
// repository interface persisted to a single modernc.org/sqlite database
// file. Each domain type is stored as a JSON blob column, since its shape
// is owned by the domain package, not by this persistence layer, and the
// in-memory counterpart (internal/infra/memrepo) needs to apply the exact
// same repair-on-load logic either way.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	// modernc.org/sqlite registers the "sqlite" database/sql driver as a
	// pure-Go, cgo-free implementation.
	_ "modernc.org/sqlite"

	"github.com/lexiloop/adaptengine/internal/domain"
	"github.com/lexiloop/adaptengine/internal/infra/memrepo"
)

// DB wraps a *sql.DB holding every table this package defines.
type DB struct {
	db *sql.DB
}

// migrations returns every schema statement, one per string, applied in
// order and guarded by IF NOT EXISTS so Open is safe to call repeatedly
// against the same file.
func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS user_states (
			user_id    TEXT PRIMARY KEY,
			state_json TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS bandit_models (
			user_id    TEXT PRIMARY KEY,
			model_json TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS coldstart_states (
			user_id    TEXT PRIMARY KEY,
			state_json TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS ensemble_weights (
			user_id      TEXT PRIMARY KEY,
			weights_json TEXT NOT NULL,
			updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS thompson_states (
			user_id    TEXT PRIMARY KEY,
			state_json TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

// Open creates (or reuses) an adaptengine.db file under dir and applies
// every migration.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "adaptengine.db")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes at the C-library level; a
	// single connection avoids SQLITE_BUSY under concurrent per-user
	// goroutines without needing a WAL-mode busy_timeout dance.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	for _, stmt := range migrations() {
		if _, err := sqlDB.Exec(stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return &DB{db: sqlDB}, nil
}

// Close releases the underlying database handle.
func (db *DB) Close() error { return db.db.Close() }

// ─── StateRepository ────────────────────────────────────────────────────────

func (db *DB) LoadState(ctx context.Context, userID string) (domain.UserState, bool, error) {
	var blob string
	err := db.db.QueryRowContext(ctx, `SELECT state_json FROM user_states WHERE user_id = ?`, userID).Scan(&blob)
	if err == sql.ErrNoRows {
		return domain.UserState{}, false, nil
	}
	if err != nil {
		return domain.UserState{}, false, err
	}
	var st domain.UserState
	if err := json.Unmarshal([]byte(blob), &st); err != nil {
		return domain.UserState{}, false, fmt.Errorf("sqlite: decode user_states: %w", err)
	}
	return st, true, nil
}

func (db *DB) SaveState(ctx context.Context, userID string, state domain.UserState) error {
	blob, err := json.Marshal(state.Clamped())
	if err != nil {
		return fmt.Errorf("sqlite: encode user_states: %w", err)
	}
	_, err = db.db.ExecContext(ctx, `
		INSERT INTO user_states (user_id, state_json, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			state_json = excluded.state_json,
			updated_at = datetime('now')
	`, userID, string(blob))
	return err
}

type stateRepo struct{ db *DB }

func (r stateRepo) Load(ctx context.Context, userID string) (domain.UserState, bool, error) {
	return r.db.LoadState(ctx, userID)
}
func (r stateRepo) Save(ctx context.Context, userID string, state domain.UserState) error {
	return r.db.SaveState(ctx, userID, state)
}

// StateRepository returns the domain.StateRepository view of db.
func (db *DB) StateRepository() domain.StateRepository { return stateRepo{db} }

// ─── ModelRepository ────────────────────────────────────────────────────────

type modelRepo struct{ db *DB }

func (r modelRepo) Load(ctx context.Context, userID string) (domain.BanditModel, bool, error) {
	var blob string
	err := r.db.db.QueryRowContext(ctx, `SELECT model_json FROM bandit_models WHERE user_id = ?`, userID).Scan(&blob)
	if err == sql.ErrNoRows {
		return domain.BanditModel{}, false, nil
	}
	if err != nil {
		return domain.BanditModel{}, false, err
	}
	var m domain.BanditModel
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		log.Printf("[sqlite] bandit model for user %s failed to decode, treating as missing: %v", userID, err)
		return domain.BanditModel{}, false, nil
	}
	return memrepo.RepairModel(m), true, nil
}

func (r modelRepo) Save(ctx context.Context, userID string, model domain.BanditModel) error {
	blob, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("sqlite: encode bandit_models: %w", err)
	}
	_, err = r.db.db.ExecContext(ctx, `
		INSERT INTO bandit_models (user_id, model_json, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			model_json = excluded.model_json,
			updated_at = datetime('now')
	`, userID, string(blob))
	return err
}

// ModelRepository returns the domain.ModelRepository view of db.
func (db *DB) ModelRepository() domain.ModelRepository { return modelRepo{db} }

// ─── ColdStartRepository ────────────────────────────────────────────────────

type coldStartRepo struct{ db *DB }

func (r coldStartRepo) Load(ctx context.Context, userID string) (domain.ColdStartState, bool, error) {
	var blob string
	err := r.db.db.QueryRowContext(ctx, `SELECT state_json FROM coldstart_states WHERE user_id = ?`, userID).Scan(&blob)
	if err == sql.ErrNoRows {
		return domain.ColdStartState{}, false, nil
	}
	if err != nil {
		return domain.ColdStartState{}, false, err
	}
	var st domain.ColdStartState
	if err := json.Unmarshal([]byte(blob), &st); err != nil || !st.Valid() {
		log.Printf("[sqlite] cold-start state for user %s invalid, resetting to classify", userID)
		return domain.DefaultColdStartState(), true, nil
	}
	return st, true, nil
}

func (r coldStartRepo) Save(ctx context.Context, userID string, state domain.ColdStartState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("sqlite: encode coldstart_states: %w", err)
	}
	_, err = r.db.db.ExecContext(ctx, `
		INSERT INTO coldstart_states (user_id, state_json, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			state_json = excluded.state_json,
			updated_at = datetime('now')
	`, userID, string(blob))
	return err
}

// ColdStartRepository returns the domain.ColdStartRepository view of db.
func (db *DB) ColdStartRepository() domain.ColdStartRepository { return coldStartRepo{db} }

// ─── EnsembleRepository ─────────────────────────────────────────────────────

type ensembleRepo struct{ db *DB }

func (r ensembleRepo) Load(ctx context.Context, userID string) (domain.EnsembleWeights, bool, error) {
	var blob string
	err := r.db.db.QueryRowContext(ctx, `SELECT weights_json FROM ensemble_weights WHERE user_id = ?`, userID).Scan(&blob)
	if err == sql.ErrNoRows {
		return domain.EnsembleWeights{}, false, nil
	}
	if err != nil {
		return domain.EnsembleWeights{}, false, err
	}
	var w domain.EnsembleWeights
	if err := json.Unmarshal([]byte(blob), &w); err != nil {
		log.Printf("[sqlite] ensemble weights for user %s failed to decode, resetting to default", userID)
		return domain.DefaultEnsembleWeights(), true, nil
	}
	return w, true, nil
}

func (r ensembleRepo) Save(ctx context.Context, userID string, weights domain.EnsembleWeights) error {
	blob, err := json.Marshal(weights)
	if err != nil {
		return fmt.Errorf("sqlite: encode ensemble_weights: %w", err)
	}
	_, err = r.db.db.ExecContext(ctx, `
		INSERT INTO ensemble_weights (user_id, weights_json, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			weights_json = excluded.weights_json,
			updated_at   = datetime('now')
	`, userID, string(blob))
	return err
}

// EnsembleRepository returns the domain.EnsembleRepository view of db.
func (db *DB) EnsembleRepository() domain.EnsembleRepository { return ensembleRepo{db} }

// ─── ThompsonRepository ─────────────────────────────────────────────────────

type thompsonRepo struct{ db *DB }

func (r thompsonRepo) Load(ctx context.Context, userID string) (domain.ThompsonState, bool, error) {
	var blob string
	err := r.db.db.QueryRowContext(ctx, `SELECT state_json FROM thompson_states WHERE user_id = ?`, userID).Scan(&blob)
	if err == sql.ErrNoRows {
		return domain.ThompsonState{}, false, nil
	}
	if err != nil {
		return domain.ThompsonState{}, false, err
	}
	var st domain.ThompsonState
	if err := json.Unmarshal([]byte(blob), &st); err != nil {
		log.Printf("[sqlite] thompson state for user %s failed to decode, resetting to fresh state", userID)
		return domain.NewThompsonState(), true, nil
	}
	return st, true, nil
}

func (r thompsonRepo) Save(ctx context.Context, userID string, state domain.ThompsonState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("sqlite: encode thompson_states: %w", err)
	}
	_, err = r.db.db.ExecContext(ctx, `
		INSERT INTO thompson_states (user_id, state_json, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			state_json = excluded.state_json,
			updated_at = datetime('now')
	`, userID, string(blob))
	return err
}

// ThompsonRepository returns the domain.ThompsonRepository view of db.
func (db *DB) ThompsonRepository() domain.ThompsonRepository { return thompsonRepo{db} }
