// Package cli implements the adaptengine command-line interface:
// package-level *cobra.Command vars wired together in init(), a root
// command other files' init()s attach subcommands to via
// rootCmd.AddCommand.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "adaptengine",
	Short: "Online adaptive decision engine for a spaced-repetition learning app",
	Long: `adaptengine runs the perception -> modeling -> learning -> decision
pipeline that chooses each learner's next study strategy: a LinUCB bandit,
an ensemble of contextual bandits, a cold-start manager, and a
delayed-reward aggregator, all behind a circuit breaker and per-user
isolation.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML configuration file")
}

// Execute runs the CLI, printing any error to stderr and returning a
// process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
