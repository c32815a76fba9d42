// Package tracking replays a finished study into an experiment-tracking
// sink, one logging session per trial.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thalesfsp/hotune"
)

// ErrSessionFinalized is returned by every Session call made after End.
var ErrSessionFinalized = errors.New("session already finalized")

// Field names written for every trial.
const (
	OtherTrialStep    = "trial_step"
	DefaultMetricName = "accuracy"
)

// SessionConfig holds the recognized session options.
type SessionConfig struct {
	ProjectName string
	Workspace   string
}

// Sink opens logging sessions.
type Sink interface {
	OpenSession(ctx context.Context, config SessionConfig) (Session, error)
}

// Session is one remote bookkeeping unit, scoped to exactly one trial.
// Timestamps are seconds since the Unix epoch.
type Session interface {
	LogParameter(ctx context.Context, name string, value any) error
	LogOther(ctx context.Context, name string, value any) error
	LogMetric(ctx context.Context, name string, value float64) error
	AddTags(ctx context.Context, tags ...string) error
	SetStartTime(ctx context.Context, epochSeconds float64) error
	SetEndTime(ctx context.Context, epochSeconds float64) error

	// End finalizes the session. Nothing may be logged afterwards.
	End(ctx context.Context) error
}

// ReplayReport summarizes one replay.
type ReplayReport struct {
	// Logged is the number of sessions opened and finalized.
	Logged int

	// Skipped is the number of records that were not replayed because they
	// did not complete.
	Skipped int
}

// Observer is notified of every replayed record with "logged", "skipped"
// or "failed".
type Observer func(result string)

// Recorder replays trial histories into a Sink.
type Recorder struct {
	Sink Sink

	// Config is passed to every OpenSession call.
	Config SessionConfig

	// MetricName names the fitness metric. Defaults to "accuracy".
	MetricName string

	Logger   logrus.FieldLogger
	Observer Observer
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSessionConfig sets the session options.
func WithSessionConfig(config SessionConfig) Option {
	return func(r *Recorder) {
		r.Config = config
	}
}

// WithMetricName overrides the fitness metric name.
func WithMetricName(name string) Option {
	return func(r *Recorder) {
		if name != "" {
			r.MetricName = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.Logger = logger
		}
	}
}

// WithObserver sets the per-record observer.
func WithObserver(observer Observer) Option {
	return func(r *Recorder) {
		r.Observer = observer
	}
}

// NewRecorder returns a Recorder writing to sink.
func NewRecorder(sink Sink, opts ...Option) *Recorder {
	r := &Recorder{
		Sink:       sink,
		MetricName: DefaultMetricName,
		Logger:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Replay is a shorthand for NewRecorder(sink, opts...).Replay.
func Replay(ctx context.Context, history []hotune.TrialRecord, label string, sink Sink, opts ...Option) (ReplayReport, error) {
	return NewRecorder(sink, opts...).Replay(ctx, history, label)
}

// Replay logs every completed record of history, in the order given, each
// in its own session tagged with label. A nil Logger and an empty MetricName
// fall back to the NewRecorder defaults. Sessions never overlap. The first
// error aborts the replay; records after it stay unlogged.
func (r *Recorder) Replay(ctx context.Context, history []hotune.TrialRecord, label string) (ReplayReport, error) {
	var report ReplayReport

	if r.Sink == nil {
		return report, errors.New("tracking: nil sink")
	}

	if r.Logger == nil {
		r.Logger = logrus.StandardLogger()
	}

	if r.MetricName == "" {
		r.MetricName = DefaultMetricName
	}

	for _, rec := range history {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		logger := r.Logger.WithFields(logrus.Fields{
			"study": label,
			"trial": rec.Number,
		})

		if rec.State != hotune.TrialComplete || rec.DatetimeComplete == nil {
			logger.WithField("state", rec.State).Warn("skipping incomplete trial")

			report.Skipped++
			r.observe("skipped")

			continue
		}

		if err := r.replayOne(ctx, rec, label); err != nil {
			r.observe("failed")

			return report, fmt.Errorf("replay trial %d: %w", rec.Number, err)
		}

		logger.Debug("trial logged")

		report.Logged++
		r.observe("logged")
	}

	return report, nil
}

func (r *Recorder) replayOne(ctx context.Context, rec hotune.TrialRecord, label string) error {
	session, err := r.Sink.OpenSession(ctx, r.Config)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	for _, p := range rec.Params {
		if err := session.LogParameter(ctx, p.Name, p.Value); err != nil {
			return fmt.Errorf("log parameter %q: %w", p.Name, err)
		}
	}

	if err := session.LogOther(ctx, OtherTrialStep, rec.Number); err != nil {
		return fmt.Errorf("log %s: %w", OtherTrialStep, err)
	}

	if err := session.LogMetric(ctx, r.MetricName, rec.Value); err != nil {
		return fmt.Errorf("log metric %q: %w", r.MetricName, err)
	}

	if err := session.AddTags(ctx, label); err != nil {
		return fmt.Errorf("add tags: %w", err)
	}

	if err := session.SetStartTime(ctx, EpochSeconds(rec.DatetimeStart)); err != nil {
		return fmt.Errorf("set start time: %w", err)
	}

	if err := session.SetEndTime(ctx, EpochSeconds(*rec.DatetimeComplete)); err != nil {
		return fmt.Errorf("set end time: %w", err)
	}

	return session.End(ctx)
}

func (r *Recorder) observe(result string) {
	if r.Observer != nil {
		r.Observer(result)
	}
}

// EpochSeconds converts t to fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpochSeconds is the inverse of EpochSeconds, to the microsecond.
func FromEpochSeconds(s float64) time.Time {
	return time.UnixMicro(int64(math.Round(s * 1e6)))
}
