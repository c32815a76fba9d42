// Package config defines the run configuration and its loader.
//
// Every field has a default (New); a YAML file and HOTUNE_ environment
// variables override them, see Load.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/thalesfsp/hotune"
)

// Sink kinds.
const (
	SinkNone   = "none"
	SinkLog    = "log"
	SinkComet  = "comet"
	SinkSQLite = "sqlite"
)

// Sampler kinds.
const (
	SamplerGP     = "gp"
	SamplerRandom = "random"
)

// Config contains the run configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	Study      StudyConfig      `koanf:"study"`
	Evaluation EvaluationConfig `koanf:"evaluation"`
	Tracking   TrackingConfig   `koanf:"tracking"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Output     OutputConfig     `koanf:"output"`
}

// StudyConfig configures the search.
type StudyConfig struct {
	// Name labels the study and tags every tracking session.
	Name string `koanf:"name"`

	// Direction is "maximize" or "minimize".
	Direction string `koanf:"direction"`

	// Trials is the trial budget.
	Trials int `koanf:"trials"`

	// Parallelism bounds concurrently running trials.
	Parallelism int `koanf:"parallelism"`

	// Seed seeds the sampler; 0 picks a time-based seed.
	Seed int64 `koanf:"seed"`

	// Sampler is "gp" or "random".
	Sampler string `koanf:"sampler"`

	InitialSamples int     `koanf:"initial_samples"`
	NumCandidates  int     `koanf:"num_candidates"`
	KernelWidth    float64 `koanf:"kernel_width"`

	// Acquisition is "ucb", "pi", "ei" or "thompson".
	Acquisition string  `koanf:"acquisition"`
	Beta        float64 `koanf:"beta"`
	Xi          float64 `koanf:"xi"`

	// ContinueOnError records failed trials and keeps searching.
	ContinueOnError bool `koanf:"continue_on_error"`
}

// EvaluationConfig configures the objective.
type EvaluationConfig struct {
	// Folds is the number of cross-validation folds.
	Folds int `koanf:"folds"`

	// Parallelism bounds concurrently fitted folds; -1 uses every CPU.
	Parallelism int `koanf:"parallelism"`

	// Seed seeds the random forest.
	Seed int64 `koanf:"seed"`
}

// TrackingConfig configures the replay sink.
type TrackingConfig struct {
	// Sink is "none", "log", "comet" or "sqlite".
	Sink string `koanf:"sink"`

	ProjectName string `koanf:"project_name"`
	Workspace   string `koanf:"workspace"`
	MetricName  string `koanf:"metric_name"`

	// APIKey takes precedence over APIKeyEnv.
	APIKey    string        `koanf:"api_key"`
	APIKeyEnv string        `koanf:"api_key_env"`
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`

	// SQLitePath is the database of the sqlite sink.
	SQLitePath string `koanf:"sqlite_path"`
}

// MetricsConfig configures the Prometheus export.
type MetricsConfig struct {
	// Textfile, if set, receives the metrics at the end of the run.
	Textfile  string `koanf:"textfile"`
	Namespace string `koanf:"namespace"`
}

// OutputConfig configures run artifacts.
type OutputConfig struct {
	// Report, if set, receives the YAML study summary.
	Report string `koanf:"report"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Study: StudyConfig{
			Name:           "sklearn_simple",
			Direction:      "maximize",
			Trials:         10,
			Parallelism:    1,
			Sampler:        SamplerGP,
			InitialSamples: 4,
			NumCandidates:  64,
			KernelWidth:    0.15,
			Acquisition:    "ucb",
			Beta:           2.0,
			Xi:             0.01,
		},
		Evaluation: EvaluationConfig{
			Folds:       3,
			Parallelism: -1,
		},
		Tracking: TrackingConfig{
			Sink:        SinkLog,
			ProjectName: "optuna",
			MetricName:  "accuracy",
			APIKeyEnv:   "COMET_API_KEY",
			Timeout:     30 * time.Second,
			SQLitePath:  "hotune.db",
		},
		Metrics: MetricsConfig{
			Namespace: "hotune",
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var problems []string

	if c.Study.Name == "" {
		problems = append(problems, "study.name must not be empty")
	}

	if _, err := hotune.ParseDirection(c.Study.Direction); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Study.Trials < 1 {
		problems = append(problems, "study.trials must be positive")
	}

	if c.Study.Parallelism < 1 {
		problems = append(problems, "study.parallelism must be positive")
	}

	switch c.Study.Sampler {
	case SamplerGP, SamplerRandom:
	default:
		problems = append(problems, fmt.Sprintf("unknown study.sampler %q", c.Study.Sampler))
	}

	if _, ok := hotune.AcquisitionByName(c.Study.Acquisition); !ok {
		problems = append(problems, fmt.Sprintf("unknown study.acquisition %q", c.Study.Acquisition))
	}

	if c.Evaluation.Folds < 2 {
		problems = append(problems, "evaluation.folds must be at least 2")
	}

	switch c.Tracking.Sink {
	case SinkNone, SinkLog, SinkComet:
	case SinkSQLite:
		if c.Tracking.SQLitePath == "" {
			problems = append(problems, "tracking.sqlite_path must not be empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown tracking.sink %q", c.Tracking.Sink))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	return nil
}

// Direction returns the parsed study direction.
func (c *Config) Direction() (hotune.Direction, error) {
	return hotune.ParseDirection(c.Study.Direction)
}

// OptimizationConfig translates the study section.
func (c *Config) OptimizationConfig() (hotune.OptimizationConfig, error) {
	acq, ok := hotune.AcquisitionByName(c.Study.Acquisition)
	if !ok {
		return hotune.OptimizationConfig{}, fmt.Errorf("%w: unknown study.acquisition %q", ErrInvalidConfig, c.Study.Acquisition)
	}

	out := hotune.DefaultConfig()
	out.InitialSamples = c.Study.InitialSamples
	out.NumCandidates = c.Study.NumCandidates
	out.KernelWidth = c.Study.KernelWidth
	out.Seed = c.Study.Seed
	out.AcquisitionFunc = acq
	out.AcqParams.Beta = c.Study.Beta
	out.AcqParams.Xi = c.Study.Xi
	out.ContinueOnError = c.Study.ContinueOnError

	return out, nil
}
