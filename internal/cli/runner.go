package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/thalesfsp/hotune"
	"github.com/thalesfsp/hotune/internal/config"
	"github.com/thalesfsp/hotune/internal/dataset"
	"github.com/thalesfsp/hotune/internal/metrics"
	"github.com/thalesfsp/hotune/internal/objective"
	"github.com/thalesfsp/hotune/internal/report"
	"github.com/thalesfsp/hotune/internal/tracking"
	"github.com/thalesfsp/hotune/internal/tracking/comet"
	"github.com/thalesfsp/hotune/internal/tracking/sqlite"
)

// Result is the outcome of one run.
type Result struct {
	Study  *hotune.Study
	Best   *hotune.TrialRecord // nil when no trial completed
	Replay tracking.ReplayReport
}

// Runner executes the whole pipeline once: search, replay, export.
type Runner struct {
	Config *config.Config
	Out    io.Writer
	Logger *logrus.Logger

	// Sink, if set, replaces the sink selected by Config.Tracking.Sink.
	Sink tracking.Sink
}

// Run optimizes, replays every completed trial into the sink, then writes
// the report and the metrics textfile when configured. Any failure ends the
// run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.Config

	logger := r.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	log := logger.WithField("study", cfg.Study.Name)

	ds, err := dataset.LoadIris()
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	rows, cols := ds.Shape()
	log.WithFields(logrus.Fields{"rows": rows, "cols": cols}).Debug("dataset loaded")

	direction, err := cfg.Direction()
	if err != nil {
		return nil, err
	}

	optConfig, err := cfg.OptimizationConfig()
	if err != nil {
		return nil, err
	}

	progress := make(chan hotune.ProgressUpdate, cfg.Study.Trials)
	optConfig.ProgressChan = progress

	opts := []hotune.StudyOption{hotune.WithConfig(optConfig)}
	if cfg.Study.Sampler == config.SamplerRandom {
		opts = append(opts, hotune.WithSampler(hotune.NewRandomSampler(cfg.Study.Seed)))
	}

	study, err := hotune.CreateStudy(cfg.Study.Name, direction, opts...)
	if err != nil {
		return nil, err
	}

	m := metrics.NewManager(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithConstLabels(map[string]string{"study": cfg.Study.Name}),
	)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for update := range progress {
			m.ObserveTrial(update)

			log.WithFields(logrus.Fields{
				"phase": update.Phase,
				"trial": update.Trial.Number,
				"state": update.Trial.State,
				"value": update.Trial.Value,
				"best":  update.CurrentBestValue,
			}).Infof("trial %d/%d finished", update.CurrentIteration, update.TotalIterations)
		}
	}()

	evaluator := objective.New(ds.X, ds.Y)
	evaluator.Folds = cfg.Evaluation.Folds
	evaluator.Parallelism = cfg.Evaluation.Parallelism
	evaluator.Seed = cfg.Evaluation.Seed
	evaluator.Logger = log

	log.WithFields(logrus.Fields{
		"trials":      cfg.Study.Trials,
		"parallelism": cfg.Study.Parallelism,
		"sampler":     cfg.Study.Sampler,
	}).Info("starting optimization")

	optErr := study.Optimize(ctx, evaluator.Objective(), cfg.Study.Trials, cfg.Study.Parallelism)

	close(progress)
	wg.Wait()

	if optErr != nil {
		return nil, fmt.Errorf("optimize: %w", optErr)
	}

	result := &Result{Study: study}

	best, err := study.BestTrial()
	switch {
	case err == nil:
		result.Best = &best
	case errors.Is(err, hotune.ErrNoCompleteTrials):
		log.Warn("no trial completed")
	default:
		return nil, err
	}

	sink, closeSink, err := r.sink(logger)
	if err != nil {
		return nil, err
	}

	if sink != nil {
		result.Replay, err = tracking.Replay(ctx, study.Trials(), cfg.Study.Name, sink,
			tracking.WithSessionConfig(tracking.SessionConfig{
				ProjectName: cfg.Tracking.ProjectName,
				Workspace:   cfg.Tracking.Workspace,
			}),
			tracking.WithMetricName(cfg.Tracking.MetricName),
			tracking.WithLogger(log),
			tracking.WithObserver(m.ObserveSession),
		)

		err = errors.Join(err, closeSink())
		if err != nil {
			return nil, fmt.Errorf("replay: %w", err)
		}

		log.WithFields(logrus.Fields{
			"sink":    cfg.Tracking.Sink,
			"logged":  result.Replay.Logged,
			"skipped": result.Replay.Skipped,
		}).Info("trials replayed")
	}

	if cfg.Output.Report != "" {
		if err := report.Write(cfg.Output.Report, report.FromStudy(study)); err != nil {
			return nil, err
		}
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return nil, err
		}
	}

	r.printSummary(result)

	return result, nil
}

// sink builds the configured sink. The returned closer is never nil.
func (r *Runner) sink(logger *logrus.Logger) (tracking.Sink, func() error, error) {
	noop := func() error { return nil }

	if r.Sink != nil {
		return r.Sink, noop, nil
	}

	tc := r.Config.Tracking

	switch tc.Sink {
	case config.SinkNone:
		return nil, noop, nil
	case config.SinkLog:
		return tracking.NewLogSink(logger), noop, nil
	case config.SinkComet:
		sink, err := comet.New(comet.Config{
			BaseURL:     tc.BaseURL,
			APIKey:      tc.APIKey,
			APIKeyEnv:   tc.APIKeyEnv,
			Workspace:   tc.Workspace,
			ProjectName: tc.ProjectName,
			Timeout:     tc.Timeout,
		}, comet.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}

		return sink, noop, nil
	case config.SinkSQLite:
		store, err := sqlite.Open(tc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}

		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown tracking.sink %q", config.ErrInvalidConfig, tc.Sink)
	}
}

func (r *Runner) printSummary(result *Result) {
	if r.Out == nil {
		return
	}

	trials := result.Study.Trials()

	fmt.Fprintf(r.Out, "Study %q (%s): %d trials\n", result.Study.Name(), result.Study.Direction(), len(trials))

	for _, rec := range trials {
		fmt.Fprintf(r.Out, "  #%-3d %-8s %s", rec.Number, rec.State, formatParams(rec.Params))

		if rec.State == hotune.TrialComplete {
			fmt.Fprintf(r.Out, " -> %.4f", rec.Value)
		}

		fmt.Fprintln(r.Out)
	}

	if result.Best == nil {
		fmt.Fprintln(r.Out, "No trial completed")

		return
	}

	fmt.Fprintf(r.Out, "Best trial #%d: %.4f %s\n", result.Best.Number, result.Best.Value, formatParams(result.Best.Params))
}

func formatParams(params []hotune.Param) string {
	out := ""

	for i, p := range params {
		if i > 0 {
			out += " "
		}

		out += fmt.Sprintf("%s=%v", p.Name, p.Value)
	}

	return out
}
