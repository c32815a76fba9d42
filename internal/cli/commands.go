package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thalesfsp/hotune/internal/config"
	"github.com/thalesfsp/hotune/internal/dataset"
	"github.com/thalesfsp/hotune/internal/tracking/sqlite"
)

var (
	trials   int    // overrides study.trials when > 0
	sinkKind string // overrides tracking.sink when set
	seed     int64  // overrides study.seed when the flag is given
	reportTo string // overrides output.report when set
	dbPath   string // sqlite database for the sessions command
)

// runCmd runs the search once to completion.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the search and replay every trial into the tracking sink",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cmd.Context(), configPath)
		if err != nil {
			return err
		}

		if trials > 0 {
			cfg.Study.Trials = trials
		}

		if sinkKind != "" {
			cfg.Tracking.Sink = sinkKind
		}

		if cmd.Flags().Changed("seed") {
			cfg.Study.Seed = seed
			cfg.Evaluation.Seed = seed
		}

		if reportTo != "" {
			cfg.Output.Report = reportTo
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := setupLogging(cfg.LogLevel); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := &Runner{Config: cfg, Out: cmd.OutOrStdout(), Logger: logrus.StandardLogger()}

		_, err = runner.Run(ctx)

		return err
	},
}

// datasetCmd describes the embedded dataset.
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Print the shape and class balance of the embedded Iris dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ds, err := dataset.LoadIris()
		if err != nil {
			return err
		}

		rows, cols := ds.Shape()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "%s: %d samples, %d features %v\n", ds.Name, rows, cols, ds.FeatureNames)

		for i, n := range ds.ClassCounts() {
			fmt.Fprintf(out, "  %-12s %d\n", ds.ClassNames[i], n)
		}

		return nil
	},
}

// sessionsCmd lists what the sqlite sink stored.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the tracking sessions stored by the sqlite sink",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := setupLogging(""); err != nil {
			return err
		}

		path := dbPath
		if path == "" {
			cfg, err := config.Load(cmd.Context(), configPath)
			if err != nil {
				return err
			}

			path = cfg.Tracking.SQLitePath
		}

		return listSessions(cmd.Context(), cmd, path)
	},
}

func listSessions(ctx context.Context, cmd *cobra.Command, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	for _, s := range sessions {
		fmt.Fprintf(out, "%s project=%s tags=%v", s.ID, s.ProjectName, s.Tags)

		for _, p := range s.Params {
			fmt.Fprintf(out, " %s=%v", p.Name, p.Value)
		}

		for _, m := range s.Metrics {
			fmt.Fprintf(out, " %s=%v", m.Name, m.Value)
		}

		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%d sessions\n", len(sessions))

	return nil
}

func init() {
	runCmd.Flags().IntVar(&trials, "trials", 0, "Trial budget (overrides study.trials)")
	runCmd.Flags().StringVar(&sinkKind, "sink", "", "Tracking sink: none, log, comet or sqlite")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for the sampler and the random forest")
	runCmd.Flags().StringVar(&reportTo, "report", "", "Write the YAML study report to this path")

	sessionsCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (defaults to tracking.sqlite_path)")
}
