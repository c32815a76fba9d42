package hotune

import (
	"math"
	"math/rand"
	"sync"
)

// Sampler draws a value for one named parameter.
//
// Parameters:
// - history: Snapshot of the completed trials of the study, ordered by number
// - name: Name of the parameter being drawn
// - dist: Declared domain of the parameter (already validated)
// - direction: Study direction
//
// Returns:
// - any: A value contained in dist (string, float64 or int64)
//
// Implementations must be safe for concurrent use: a study running trials in
// parallel calls Sample from several goroutines.
type Sampler interface {
	Sample(history []TrialRecord, name string, dist Distribution, direction Direction) (any, error)
}

//////
// Random sampling.
//////

// RandomSampler draws every parameter independently and uniformly (in log
// space for log-scaled ranges).
type RandomSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSampler returns a RandomSampler. Seed zero picks a time-based seed.
func NewRandomSampler(seed int64) *RandomSampler {
	return &RandomSampler{rng: newRand(seed)}
}

// Sample implements Sampler.
func (s *RandomSampler) Sample(_ []TrialRecord, _ string, dist Distribution, _ Direction) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return dist.fromUnit(s.rng.Float64()), nil
}

//////
// Bayesian sampling.
//////

// GPSampler is an independent Bayesian sampler: every parameter gets its own
// one-dimensional Gaussian Process fitted on the completed trials that drew
// it. Conditional parameters (drawn only on some branches of the objective)
// therefore learn only from the trials that actually took their branch.
//
// How it works:
//  1. While a parameter has fewer than InitialSamples observations, sample it
//     at random
//  2. Otherwise fit the surrogate on (unit coordinate, standardized loss)
//     pairs, score NumCandidates random candidates (every choice for
//     categoricals) with the acquisition function and return the lowest
type GPSampler struct {
	config OptimizationConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGPSampler builds a GPSampler from config. Zero-valued fields fall back to
// DefaultConfig.
func NewGPSampler(config OptimizationConfig) *GPSampler {
	def := DefaultConfig()

	if config.NumCandidates <= 0 {
		config.NumCandidates = def.NumCandidates
	}

	if config.KernelWidth <= 0 {
		config.KernelWidth = def.KernelWidth
	}

	if config.AcquisitionFunc == nil {
		config.AcquisitionFunc = def.AcquisitionFunc
		config.AcqParams = def.AcqParams
	}

	if config.InitialSamples < 1 {
		config.InitialSamples = 1
	}

	return &GPSampler{
		config: config,
		rng:    newRand(config.Seed),
	}
}

// Sample implements Sampler.
func (s *GPSampler) Sample(history []TrialRecord, name string, dist Distribution, direction Direction) (any, error) {
	xs, losses := observations(history, name, dist, direction)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(xs) < s.config.InitialSamples {
		return dist.fromUnit(s.rng.Float64()), nil
	}

	gp := newGaussianProcess()
	gp.SetSigma(s.config.KernelWidth)

	ys := standardize(losses)
	best := math.Inf(1)

	for i := range xs {
		gp.Update([]float64{xs[i]}, ys[i])

		best = math.Min(best, ys[i])
	}

	params := s.config.AcqParams
	params.BestSoFar = best

	if params.RandomState == nil {
		params.RandomState = s.rng
	}

	var (
		next            any
		bestAcquisition = math.Inf(1)
	)

	for _, candidate := range s.candidates(dist) {
		mean, variance := gp.Predict([]float64{dist.toUnit(candidate)})

		acquisition := s.config.AcquisitionFunc(mean, variance, params)
		if next == nil || acquisition < bestAcquisition {
			bestAcquisition = acquisition
			next = candidate
		}
	}

	return next, nil
}

// candidates lists the points scored by the acquisition function. Callers
// hold s.mu.
func (s *GPSampler) candidates(dist Distribution) []any {
	if c, ok := dist.(CategoricalDistribution); ok {
		out := make([]any, len(c.Choices))
		for i, choice := range c.Choices {
			out[i] = choice
		}

		return out
	}

	out := make([]any, s.config.NumCandidates)
	for i := range out {
		out[i] = dist.fromUnit(s.rng.Float64())
	}

	return out
}

// observations extracts the unit coordinates and losses of every completed
// trial that drew name from an equal distribution.
func observations(history []TrialRecord, name string, dist Distribution, direction Direction) (xs, losses []float64) {
	for _, rec := range history {
		if rec.State != TrialComplete {
			continue
		}

		if d, ok := rec.Distributions[name]; !ok || !d.equal(dist) {
			continue
		}

		v, ok := rec.Param(name)
		if !ok || !dist.Contains(v) {
			continue
		}

		xs = append(xs, dist.toUnit(v))
		losses = append(losses, direction.loss(rec.Value))
	}

	return xs, losses
}
