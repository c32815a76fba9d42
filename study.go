package hotune

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration.
func DefaultConfig() OptimizationConfig {
	return OptimizationConfig{
		InitialSamples:  4,
		NumCandidates:   64,
		KernelWidth:     0.15,
		AcquisitionFunc: UCB,
		AcqParams: AcquisitionParams{
			Beta: 2.0,
			Xi:   0.01,
		},
		ProgressChan: nil, // Default to no progress updates.
	}
}

// Study is one optimization run: a direction, a sampler and the ordered
// history of every trial evaluated so far.
//
// Thread safety:
// - Optimize may run trials in parallel; the history is protected by an
// RWMutex and all accessors return copies.
type Study struct {
	id        string
	name      string
	direction Direction
	config    OptimizationConfig
	sampler   Sampler
	now       func() time.Time

	mu     sync.RWMutex
	trials []TrialRecord
}

// StudyOption configures a Study.
type StudyOption func(*Study)

// WithConfig sets the optimization config. It also drives the default
// GPSampler unless WithSampler is given.
func WithConfig(config OptimizationConfig) StudyOption {
	return func(s *Study) {
		s.config = config
	}
}

// WithSampler replaces the default GPSampler.
func WithSampler(sampler Sampler) StudyOption {
	return func(s *Study) {
		if sampler != nil {
			s.sampler = sampler
		}
	}
}

// WithClock replaces time.Now for trial timestamps.
func WithClock(now func() time.Time) StudyOption {
	return func(s *Study) {
		if now != nil {
			s.now = now
		}
	}
}

// CreateStudy creates an empty study.
//
// Usage example:
//
//	study, err := CreateStudy("sklearn_simple", Maximize)
//	if err != nil {
//	    return err
//	}
//
//	if err := study.Optimize(ctx, objective, 10, 1); err != nil {
//	    return err
//	}
//
//	for _, trial := range study.Trials() {
//	    fmt.Println(trial.Number, trial.Params, trial.Value)
//	}
func CreateStudy(name string, direction Direction, opts ...StudyOption) (*Study, error) {
	if name == "" {
		return nil, errors.New("study name is required")
	}

	if direction != Minimize && direction != Maximize {
		return nil, fmt.Errorf("invalid direction %v", direction)
	}

	s := &Study{
		id:        uuid.NewString(),
		name:      name,
		direction: direction,
		config:    DefaultConfig(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.sampler == nil {
		s.sampler = NewGPSampler(s.config)
	}

	return s, nil
}

// ID returns the unique identifier of the study.
func (s *Study) ID() string { return s.id }

// Name returns the study label.
func (s *Study) Name() string { return s.name }

// Direction returns the optimization direction.
func (s *Study) Direction() Direction { return s.direction }

// Trials returns a copy of the trial history ordered by trial number.
func (s *Study) Trials() []TrialRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TrialRecord, len(s.trials))
	for i, rec := range s.trials {
		out[i] = rec.clone()
	}

	return out
}

// BestTrial returns the best completed trial. Ties go to the lowest number.
func (s *Study) BestTrial() (TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best, ok := s.bestLocked()
	if !ok {
		return TrialRecord{}, ErrNoCompleteTrials
	}

	return best.clone(), nil
}

func (s *Study) bestLocked() (TrialRecord, bool) {
	var (
		best  TrialRecord
		found bool
	)

	for _, rec := range s.trials {
		if rec.State != TrialComplete {
			continue
		}

		if !found || s.direction.better(rec.Value, best.Value) {
			best = rec
			found = true
		}
	}

	return best, found
}

// Optimize runs nTrials evaluations of objective, at most parallelism at a
// time. It may be called repeatedly; the history accumulates.
//
// Parameters:
// - ctx: Cancelling it stops scheduling new trials; in-flight trials finish
// - objective: The function to optimize
// - nTrials: Trial budget of this call
// - parallelism: Concurrent trials (<= 0 means 1)
//
// Returns:
//   - error: The first objective failure, wrapped with its trial number, unless
//     ContinueOnError is set; otherwise ctx.Err() if the context ended early
//
// How it works:
//  1. A trial is created (number, start time) and handed to objective
//  2. Every Suggest call goes through the sampler with a snapshot of the
//     completed history
//  3. The outcome is recorded as COMPLETE or FAIL with its completion time
//  4. A ProgressUpdate is sent if a ProgressChan is configured
func (s *Study) Optimize(ctx context.Context, objective ObjectiveFunc, nTrials, parallelism int) error {
	if objective == nil {
		return errors.New("objective is required")
	}

	if parallelism <= 0 {
		parallelism = 1
	}

	// stop only gates scheduling. Objectives keep the caller's ctx so that a
	// failure in one trial does not cancel the trials already running.
	stop, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	sem := make(chan struct{}, parallelism)

schedule:
	for i := 0; i < nTrials; i++ {
		select {
		case <-stop.Done():
			break schedule
		case sem <- struct{}{}:
		}

		if stop.Err() != nil {
			<-sem

			break
		}

		trial := s.newTrial()

		wg.Add(1)

		go func(iteration int) {
			defer wg.Done()
			defer func() { <-sem }()

			err := s.runTrial(ctx, objective, trial, iteration, nTrials)
			if err == nil || s.config.ContinueOnError {
				return
			}

			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()

			cancel()
		}(i + 1)
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	return ctx.Err()
}

//////
// Internals.
//////

func (s *Study) newTrial() *Trial {
	s.mu.Lock()
	defer s.mu.Unlock()

	number := len(s.trials)

	s.trials = append(s.trials, TrialRecord{
		Number:        number,
		State:         TrialRunning,
		DatetimeStart: s.now(),
	})

	return &Trial{
		number: number,
		study:  s,
		dists:  make(map[string]Distribution),
	}
}

// runTrial evaluates one trial and records its outcome.
func (s *Study) runTrial(ctx context.Context, objective ObjectiveFunc, trial *Trial, iteration, total int) error {
	value, err := objective(ctx, trial)
	if err == nil && math.IsNaN(value) {
		err = errors.New("objective returned NaN")
	}

	complete := s.now()
	params, dists := trial.snapshot()

	s.mu.Lock()

	rec := &s.trials[trial.number]
	rec.Params = params
	rec.Distributions = dists
	rec.DatetimeComplete = &complete

	if err != nil {
		rec.State = TrialFail
		rec.Err = err.Error()
	} else {
		rec.State = TrialComplete
		rec.Value = value
	}

	update := ProgressUpdate{
		Phase:            "Optimization",
		CurrentIteration: iteration,
		TotalIterations:  total,
		Trial:            rec.clone(),
		CurrentBestValue: math.NaN(),
	}

	if best, ok := s.bestLocked(); ok {
		update.CurrentBestParams = append([]Param(nil), best.Params...)
		update.CurrentBestValue = best.Value
	}

	s.mu.Unlock()

	if trial.number < s.config.InitialSamples {
		update.Phase = "InitialSampling"
	}

	s.sendProgress(update)

	if err != nil {
		return fmt.Errorf("trial %d: %w", trial.number, err)
	}

	return nil
}

// sample hands the sampler a snapshot of the completed history.
func (s *Study) sample(name string, dist Distribution) (any, error) {
	s.mu.RLock()

	history := make([]TrialRecord, 0, len(s.trials))
	for _, rec := range s.trials {
		if rec.State == TrialComplete {
			history = append(history, rec)
		}
	}

	s.mu.RUnlock()

	return s.sampler.Sample(history, name, dist, s.direction)
}

func (s *Study) sendProgress(update ProgressUpdate) {
	if s.config.ProgressChan == nil {
		return
	}

	select {
	case s.config.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}
