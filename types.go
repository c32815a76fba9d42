package hotune

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/exp/constraints"
)

//////
// Errors.
//////

var (
	// ErrInvalidDistribution is returned when a suggestion is requested with
	// an empty choice set, an inverted range, or a log range touching zero.
	ErrInvalidDistribution = errors.New("invalid distribution")

	// ErrIncompatibleDistribution is returned when a parameter that was
	// already drawn in a trial is requested again with a different domain.
	ErrIncompatibleDistribution = errors.New("incompatible distribution")

	// ErrNoCompleteTrials is returned by BestTrial when the study has no
	// successfully completed trial.
	ErrNoCompleteTrials = errors.New("no complete trials")
)

//////
// Direction and trial state.
//////

// Direction tells the study whether the objective value should be minimized
// or maximized.
type Direction int

const (
	// Minimize treats lower objective values as better.
	Minimize Direction = iota + 1

	// Maximize treats higher objective values as better.
	Maximize
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Minimize:
		return "minimize"
	case Maximize:
		return "maximize"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection converts "minimize" or "maximize" (case-insensitive) into a
// Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimize":
		return Minimize, nil
	case "maximize":
		return Maximize, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// loss maps an objective value onto the "lower is better" scale used by the
// surrogate model and the acquisition functions.
func (d Direction) loss(value float64) float64 {
	if d == Maximize {
		return -value
	}

	return value
}

// better reports whether a is strictly better than b.
func (d Direction) better(a, b float64) bool {
	return d.loss(a) < d.loss(b)
}

// TrialState is the lifecycle state of a trial.
type TrialState int

const (
	// TrialRunning means the objective has not returned yet.
	TrialRunning TrialState = iota

	// TrialComplete means the objective returned a usable value.
	TrialComplete

	// TrialFail means the objective returned an error or NaN.
	TrialFail
)

// String implements fmt.Stringer.
func (s TrialState) String() string {
	switch s {
	case TrialRunning:
		return "RUNNING"
	case TrialComplete:
		return "COMPLETE"
	case TrialFail:
		return "FAIL"
	default:
		return fmt.Sprintf("TrialState(%d)", int(s))
	}
}

//////
// Search space.
//////

// ParameterRange defines the valid range for a numeric hyperparameter.
//
// Type Parameter:
//   - T: The numeric type for this parameter range (int64 or float64)
//
// Fields:
// - Min: The minimum (inclusive) value for this hyperparameter
// - Max: The maximum (inclusive) value for this hyperparameter
// - Log: Sample uniformly in log space, so every order of magnitude is
// equally likely. Requires Min > 0.
//
// Usage:
//
//	// Regularization strength from 1e-10 to 1e10, log-scaled
//	cRange := ParameterRange[float64]{Min: 1e-10, Max: 1e10, Log: true}
//
//	// Tree depth from 2 to 32, log-scaled
//	depthRange := ParameterRange[int64]{Min: 2, Max: 32, Log: true}
type ParameterRange[T constraints.Integer | constraints.Float] struct {
	// Min defines the minimum allowed value (inclusive) for this hyperparameter.
	Min T

	// Max defines the maximum allowed value (inclusive) for this hyperparameter.
	Max T

	// Log enables logarithmic sampling density.
	Log bool
}

func (r ParameterRange[T]) validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: min %v > max %v", ErrInvalidDistribution, r.Min, r.Max)
	}

	if r.Log && r.Min <= 0 {
		return fmt.Errorf("%w: log range requires min > 0, got %v", ErrInvalidDistribution, r.Min)
	}

	return nil
}

// bounds returns the sampling interval, widened by pad on both sides and
// moved to log space when Log is set.
func (r ParameterRange[T]) bounds(pad float64) (lo, hi float64) {
	lo, hi = float64(r.Min)-pad, float64(r.Max)+pad
	if r.Log {
		lo, hi = math.Log(lo), math.Log(hi)
	}

	return lo, hi
}

func (r ParameterRange[T]) toUnit(v, pad float64) float64 {
	lo, hi := r.bounds(pad)
	if r.Log {
		v = math.Log(v)
	}

	if hi == lo {
		return 0
	}

	return clamp01((v - lo) / (hi - lo))
}

func (r ParameterRange[T]) fromUnit(u, pad float64) float64 {
	lo, hi := r.bounds(pad)

	x := lo + clamp01(u)*(hi-lo)
	if r.Log {
		x = math.Exp(x)
	}

	return clampTo(x, float64(r.Min), float64(r.Max))
}

// Distribution is the declared domain of one named parameter. Values drawn
// from a CategoricalDistribution are strings, from a FloatDistribution
// float64, and from an IntDistribution int64.
//
// Every distribution maps its values onto the unit interval, which is the
// coordinate system the Gaussian Process surrogate works in.
type Distribution interface {
	// Contains reports whether v belongs to the domain.
	Contains(v any) bool

	validate() error
	toUnit(v any) float64
	fromUnit(u float64) any
	equal(other Distribution) bool
}

// CategoricalDistribution is a choice from a fixed set of strings.
type CategoricalDistribution struct {
	Choices []string
}

// Contains implements Distribution.
func (d CategoricalDistribution) Contains(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}

	return d.index(s) >= 0
}

func (d CategoricalDistribution) index(s string) int {
	for i, c := range d.Choices {
		if c == s {
			return i
		}
	}

	return -1
}

func (d CategoricalDistribution) validate() error {
	if len(d.Choices) == 0 {
		return fmt.Errorf("%w: empty choice set", ErrInvalidDistribution)
	}

	return nil
}

func (d CategoricalDistribution) toUnit(v any) float64 {
	s, _ := v.(string)

	i := d.index(s)
	if i < 0 || len(d.Choices) == 1 {
		return 0
	}

	return float64(i) / float64(len(d.Choices)-1)
}

func (d CategoricalDistribution) fromUnit(u float64) any {
	i := int(clamp01(u) * float64(len(d.Choices)))
	if i >= len(d.Choices) {
		i = len(d.Choices) - 1
	}

	return d.Choices[i]
}

func (d CategoricalDistribution) equal(other Distribution) bool {
	o, ok := other.(CategoricalDistribution)
	if !ok || len(o.Choices) != len(d.Choices) {
		return false
	}

	for i := range d.Choices {
		if d.Choices[i] != o.Choices[i] {
			return false
		}
	}

	return true
}

// FloatDistribution is a real value from a bounded, optionally log-scaled
// range.
type FloatDistribution struct {
	ParameterRange[float64]
}

// Contains implements Distribution.
func (d FloatDistribution) Contains(v any) bool {
	f, ok := v.(float64)

	return ok && f >= d.Min && f <= d.Max
}

func (d FloatDistribution) toUnit(v any) float64 {
	f, _ := v.(float64)

	return d.ParameterRange.toUnit(f, 0)
}

func (d FloatDistribution) fromUnit(u float64) any {
	return d.ParameterRange.fromUnit(u, 0)
}

func (d FloatDistribution) equal(other Distribution) bool {
	o, ok := other.(FloatDistribution)

	return ok && o.ParameterRange == d.ParameterRange
}

// IntDistribution is an integer from a bounded, optionally log-scaled range.
// Each integer owns the interval [v-0.5, v+0.5] of the continuous space, so
// the endpoints are as likely as their neighbours.
type IntDistribution struct {
	ParameterRange[int64]
}

const intPad = 0.5

// Contains implements Distribution.
func (d IntDistribution) Contains(v any) bool {
	i, ok := v.(int64)

	return ok && i >= d.Min && i <= d.Max
}

func (d IntDistribution) toUnit(v any) float64 {
	i, _ := v.(int64)

	return d.ParameterRange.toUnit(float64(i), intPad)
}

func (d IntDistribution) fromUnit(u float64) any {
	x := math.Round(d.ParameterRange.fromUnit(u, intPad))

	return int64(clampTo(x, float64(d.Min), float64(d.Max)))
}

func (d IntDistribution) equal(other Distribution) bool {
	o, ok := other.(IntDistribution)

	return ok && o.ParameterRange == d.ParameterRange
}

//////
// Trials.
//////

// Param is one (name, value) pair drawn during a trial.
type Param struct {
	Name  string
	Value any
}

// TrialRecord is the immutable result of one evaluation.
type TrialRecord struct {
	// Number is the ordinal index of the trial inside its study.
	Number int

	// State is the lifecycle state of the trial.
	State TrialState

	// Params holds the drawn configuration in the order it was drawn.
	Params []Param

	// Distributions holds the declared domain of every drawn parameter.
	Distributions map[string]Distribution

	// Value is the objective value. Only meaningful for TrialComplete.
	Value float64

	// DatetimeStart is the wall-clock time the trial was created.
	DatetimeStart time.Time

	// DatetimeComplete is the wall-clock time the objective returned. Nil
	// while the trial is running.
	DatetimeComplete *time.Time

	// Err is the objective failure message for TrialFail records.
	Err string
}

// Param returns the value drawn for name, if any.
func (r TrialRecord) Param(name string) (any, bool) {
	for _, p := range r.Params {
		if p.Name == name {
			return p.Value, true
		}
	}

	return nil, false
}

// Duration returns the wall-clock duration of the trial, or zero when the
// trial has not completed.
func (r TrialRecord) Duration() time.Duration {
	if r.DatetimeComplete == nil {
		return 0
	}

	return r.DatetimeComplete.Sub(r.DatetimeStart)
}

func (r TrialRecord) clone() TrialRecord {
	out := r

	out.Params = append([]Param(nil), r.Params...)

	out.Distributions = make(map[string]Distribution, len(r.Distributions))
	for k, v := range r.Distributions {
		out.Distributions[k] = v
	}

	if r.DatetimeComplete != nil {
		t := *r.DatetimeComplete
		out.DatetimeComplete = &t
	}

	return out
}

// ObjectiveFunc evaluates one trial. It draws its configuration from the
// trial and returns the fitness of that configuration.
//
// Usage example:
//
//	objective := func(ctx context.Context, trial *Trial) (float64, error) {
//	    x, err := trial.SuggestFloat("x", -10, 10, false)
//	    if err != nil {
//	        return 0, err
//	    }
//
//	    return (x - 2) * (x - 2), nil
//	}
type ObjectiveFunc func(ctx context.Context, trial *Trial) (float64, error)

//////
// Acquisition.
//////

// AcquisitionFunc defines the signature for acquisition functions used in the
// Bayesian optimization process. These functions help decide which points in the
// parameter space should be evaluated next.
//
// Parameters:
// - mean: The predicted (standardized) loss at a point (lower is better)
// - variance: The predicted variance/uncertainty at that point
// - params: Additional parameters needed by specific acquisition functions
//
// Returns:
// - float64: Acquisition value (lower values indicate more promising points)
//
// Implementation notes for custom acquisition functions:
// - Should handle edge cases (zero variance, extreme means)
// - Must be thread-safe
// - Should return lower values for more promising points.
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds parameters used by different acquisition functions to make decisions
// about which points to sample next in the optimization process.
type AcquisitionParams struct {
	// Beta controls the exploration-exploitation trade-off in the Upper Confidence Bound (UCB)
	// acquisition function.
	// - Higher values (e.g., 3.0 or 5.0) encourage more exploration of uncertain areas
	// - Lower values (e.g., 0.1 or 0.5) focus more on exploiting known good areas
	Beta float64

	// Xi (Greek letter ξ) is an exploration parameter used in Probability of Improvement (PI)
	// and Expected Improvement (EI) acquisition functions. It controls how much improvement
	// we want over the current best observation.
	Xi float64

	// BestSoFar is the best (lowest) standardized loss observed for the
	// parameter being sampled. The sampler fills it in before every decision.
	BestSoFar float64

	// RandomState is the random number generator used by Thompson Sampling.
	// When nil, the sampler supplies its own seeded generator.
	RandomState *rand.Rand
}

//////
// Configuration.
//////

// OptimizationConfig holds all configuration parameters for the Bayesian optimization process.
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Seed = 42
//	config.InitialSamples = 4
//	config.AcquisitionFunc = ExpectedImprovement
//
// Performance impact notes:
// - Higher InitialSamples = Better model but more random trials up front
// - Higher NumCandidates = Better per-suggestion results but slower suggestions
type OptimizationConfig struct {
	// InitialSamples is how many completed observations of a parameter are
	// required before the surrogate model is used for it. Until then the
	// parameter is sampled at random.
	InitialSamples int

	// NumCandidates determines how many random candidates are scored by the
	// acquisition function per numeric suggestion. Categorical parameters
	// always score every choice.
	NumCandidates int

	// KernelWidth is the RBF kernel width in unit-interval coordinates.
	KernelWidth float64

	// Seed seeds the sampler. Zero picks a time-based seed.
	Seed int64

	// AcquisitionFunc determines the strategy for selecting the next point to
	// evaluate.
	AcquisitionFunc AcquisitionFunc

	// AcqParams holds the parameters for the acquisition function.
	AcqParams AcquisitionParams

	// ContinueOnError keeps the search going when an objective fails. The
	// failed trial is still recorded.
	ContinueOnError bool

	// ProgressChan receives one update per finished trial. Updates are
	// dropped when the channel is full. If nil, no updates will be sent.
	ProgressChan chan<- ProgressUpdate
}

// ProgressUpdate represents the current state of the optimization process.
type ProgressUpdate struct {
	// Phase is "InitialSampling" while the trial number is below
	// InitialSamples and "Optimization" afterwards.
	Phase string

	// CurrentIteration is the 1-based position of the trial in the current
	// Optimize call.
	CurrentIteration int

	// TotalIterations is the trial budget of the current Optimize call.
	TotalIterations int

	// Trial is the record of the trial that just finished.
	Trial TrialRecord

	// CurrentBestParams holds the best parameters found so far.
	CurrentBestParams []Param

	// CurrentBestValue holds the best objective value found so far. NaN when
	// no trial has completed yet.
	CurrentBestValue float64
}
