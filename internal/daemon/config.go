// Package daemon loads the on-disk TOML configuration for the adaptive
// decision engine and translates it into the Config structs each
// subpackage already defines.
package daemon

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lexiloop/adaptengine/internal/engine"
)

// ServerConfig configures the metrics/health HTTP listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// PersistenceConfig selects and configures the repository backend.
type PersistenceConfig struct {
	Backend string `toml:"backend"` // "memory" or "sqlite"
	DataDir string `toml:"data_dir"`
}

// PipelineConfig carries the human-editable subset of engine.Config: the
// knobs an operator tunes without touching code.
type PipelineConfig struct {
	TimeoutMs                   int     `toml:"timeout_ms"`
	ColdStartInteractionCeiling int     `toml:"cold_start_interaction_ceiling"`
	ExploreInteractionCeiling   int     `toml:"explore_interaction_ceiling"`
	EnableThompson               bool   `toml:"enable_thompson"`
	EnableACTR                   bool   `toml:"enable_actr"`
	EnableHeuristic               bool   `toml:"enable_heuristic"`
	EnableColdStart               bool   `toml:"enable_cold_start"`
	EnableEnsemble                 bool   `toml:"enable_ensemble"`
	EnableDelayedReward          bool    `toml:"enable_delayed_reward"`
}

// Config is the daemon's full on-disk configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Persistence PersistenceConfig `toml:"persistence"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
}

// DefaultConfig returns the configuration used when no TOML file is
// supplied, matching engine.DefaultConfig()'s own defaults.
func DefaultConfig() Config {
	ec := engine.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 9090,
		},
		Persistence: PersistenceConfig{
			Backend: "memory",
			DataDir: "./data",
		},
		Pipeline: PipelineConfig{
			TimeoutMs:                   int(ec.Timeout / time.Millisecond),
			ColdStartInteractionCeiling: ec.ColdStartInteractionCeiling,
			ExploreInteractionCeiling:   ec.ExploreInteractionCeiling,
			EnableThompson:              ec.Features.Thompson,
			EnableACTR:                  ec.Features.ACTR,
			EnableHeuristic:             ec.Features.Heuristic,
			EnableColdStart:             ec.Features.ColdStart,
			EnableEnsemble:              ec.Features.Ensemble,
			EnableDelayedReward:         ec.Features.DelayedReward,
		},
	}
}

// Load decodes a TOML file at path, falling back to DefaultConfig()'s
// values for anything the file omits.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("daemon: decode config %s: %w", path, err)
	}
	return cfg, nil
}

// EngineConfig translates the daemon's on-disk Config into an engine.Config,
// starting from engine.DefaultConfig() and overlaying only the fields the
// daemon config exposes.
func (c Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.Timeout = time.Duration(c.Pipeline.TimeoutMs) * time.Millisecond
	ec.ColdStartInteractionCeiling = c.Pipeline.ColdStartInteractionCeiling
	ec.ExploreInteractionCeiling = c.Pipeline.ExploreInteractionCeiling
	ec.Features.Thompson = c.Pipeline.EnableThompson
	ec.Features.ACTR = c.Pipeline.EnableACTR
	ec.Features.Heuristic = c.Pipeline.EnableHeuristic
	ec.Features.ColdStart = c.Pipeline.EnableColdStart
	ec.Features.Ensemble = c.Pipeline.EnableEnsemble
	ec.Features.DelayedReward = c.Pipeline.EnableDelayedReward
	return ec
}
