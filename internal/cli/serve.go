package cli

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lexiloop/adaptengine/internal/daemon"
	// Imported for its side effect: every adaptengine_* promauto metric
	// registers against the default registry promhttp.Handler() serves
	// below, independent of whether this process also runs `run`.
	_ "github.com/lexiloop/adaptengine/internal/infra/telemetry"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serveCmd exposes /metrics and /healthz for scraping and liveness checks.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Prometheus metrics and a health endpoint",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}
