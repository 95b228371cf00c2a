package cmd

import (
	"os"

	"github.com/go-sif/sched/logging"
	"github.com/spf13/cobra"
)

var logLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "schedsim",
	Short: "Simulates split scheduling for fixed-partitioned stages",
	Long: `schedsim runs a scenario of Nodes, buckets and scan plan nodes through the
split scheduler, executing splits in memory, and reports scheduling statistics.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel != "" {
			applyLogLevel(logLevel)
		}
	},
}

// applyLogLevel sets the level of the shared logger and reports the effective level
func applyLogLevel(name string) string {
	level := logging.ParseLevel(name)
	logging.SetLevel(level)
	effective := logging.LogLevelToString(level)
	logging.Logger.Debug().Str("level", effective).Msg("Log level set")
	return effective
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overriding the scenario")
}
