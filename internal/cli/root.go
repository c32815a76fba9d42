// Package cli wires the hotune commands.
package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string // YAML config file
	logLevel   string // overrides log_level when set
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:           "hotune",
	Short:         "Tune a classifier on Iris with Bayesian optimization and replay the trials into a tracker",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// setupLogging applies the flag level, or fallback when the flag is unset.
func setupLogging(fallback string) error {
	level := logLevel
	if level == "" {
		level = fallback
	}

	if level == "" {
		return nil
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	logrus.SetLevel(parsed)

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $HOTUNE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(runCmd, datasetCmd, sessionsCmd)
}
