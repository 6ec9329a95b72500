package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiloop/adaptengine/internal/daemon"
	"github.com/lexiloop/adaptengine/internal/domain"
	"github.com/lexiloop/adaptengine/internal/engine"
	"github.com/lexiloop/adaptengine/internal/infra/memrepo"
	"github.com/lexiloop/adaptengine/internal/infra/sqlite"
	"github.com/lexiloop/adaptengine/internal/infra/telemetry"
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("user", "u", "", "user ID to attribute every event to (required)")
	runCmd.Flags().StringP("input", "i", "", "path to a newline-delimited JSON RawEvent file (defaults to stdin)")
}

// runCmd replays a stream of RawEvents through the engine and prints the
// resulting ProcessResult stream, one JSON object per line.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay recorded learner events through the decision engine",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return fmt.Errorf("run: --user is required")
	}
	inputPath, _ := cmd.Flags().GetString("input")

	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	repos, closeRepos, err := buildRepositories(cfg)
	if err != nil {
		return err
	}
	defer closeRepos()

	eng := engine.NewEngine(cfg.EngineConfig(), repos)

	var in io.Reader = os.Stdin
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("run: open %s: %w", inputPath, err)
		}
		defer f.Close()
		in = f
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ctx := context.Background()
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw domain.RawEvent
		if err := json.Unmarshal(line, &raw); err != nil {
			return fmt.Errorf("run: decode event: %w", err)
		}

		start := time.Now()
		result := eng.ProcessEvent(ctx, userID, raw, domain.ProcessOptions{})
		latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

		telemetry.ObserveResult(result, latencyMs)
		telemetry.ObserveCircuit(eng.Circuit())

		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("run: encode result: %w", err)
		}
	}
	return scanner.Err()
}

// buildRepositories constructs the engine.Repositories bundle named by
// cfg.Persistence.Backend, plus a close function releasing any backing
// resources (a no-op for the in-memory backend).
func buildRepositories(cfg daemon.Config) (engine.Repositories, func(), error) {
	switch cfg.Persistence.Backend {
	case "sqlite":
		if err := os.MkdirAll(cfg.Persistence.DataDir, 0o755); err != nil {
			return engine.Repositories{}, nil, fmt.Errorf("run: create data dir: %w", err)
		}
		db, err := sqlite.Open(cfg.Persistence.DataDir)
		if err != nil {
			return engine.Repositories{}, nil, err
		}
		return engine.Repositories{
			State:     db.StateRepository(),
			Model:     db.ModelRepository(),
			ColdStart: db.ColdStartRepository(),
			Ensemble:  db.EnsembleRepository(),
			Thompson:  db.ThompsonRepository(),
		}, func() { db.Close() }, nil
	default:
		s := memrepo.New()
		return engine.Repositories{
			State:     s.StateRepository(),
			Model:     s.ModelRepository(),
			ColdStart: s.ColdStartRepository(),
			Ensemble:  s.EnsembleRepository(),
			Thompson:  s.ThompsonRepository(),
		}, func() {}, nil
	}
}
