package hotune

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample objective with a conditional search space.
func branchingObjective(_ context.Context, trial *Trial) (float64, error) {
	kind, err := trial.SuggestCategorical("kind", []string{"linear", "quadratic"})
	if err != nil {
		return 0, err
	}

	if kind == "linear" {
		x, err := trial.SuggestFloat("slope", 1e-3, 1e3, true)
		if err != nil {
			return 0, err
		}

		return math.Log10(x), nil
	}

	n, err := trial.SuggestInt("degree", 2, 32, true)
	if err != nil {
		return 0, err
	}

	return -float64((n - 8) * (n - 8)), nil
}

func seededConfig() OptimizationConfig {
	config := DefaultConfig()
	config.Seed = 7

	return config
}

func TestOptimizeRecordsEveryTrial(t *testing.T) {
	study, err := CreateStudy("branching", Maximize, WithConfig(seededConfig()))
	require.NoError(t, err)

	require.NoError(t, study.Optimize(context.Background(), branchingObjective, 12, 1))

	trials := study.Trials()
	require.Len(t, trials, 12)

	for i, trial := range trials {
		assert.Equal(t, i, trial.Number)
		assert.Equal(t, TrialComplete, trial.State)
		require.NotNil(t, trial.DatetimeComplete)
		assert.False(t, trial.DatetimeComplete.Before(trial.DatetimeStart))

		kind, ok := trial.Param("kind")
		require.True(t, ok)
		assert.Equal(t, "kind", trial.Params[0].Name)

		_, hasSlope := trial.Param("slope")
		_, hasDegree := trial.Param("degree")

		// Only the branch actually taken is drawn.
		assert.Equal(t, kind == "linear", hasSlope)
		assert.Equal(t, kind == "quadratic", hasDegree)
		assert.Len(t, trial.Params, 2)
	}
}

func TestOptimizeParallel(t *testing.T) {
	study, err := CreateStudy("parallel", Minimize, WithConfig(seededConfig()))
	require.NoError(t, err)

	var inFlight, peak int32

	objective := func(ctx context.Context, trial *Trial) (float64, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)

		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)

		x, err := trial.SuggestFloat("x", -5, 5, false)
		if err != nil {
			return 0, err
		}

		return x * x, nil
	}

	require.NoError(t, study.Optimize(context.Background(), objective, 8, 3))

	trials := study.Trials()
	require.Len(t, trials, 8)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))

	for i, trial := range trials {
		assert.Equal(t, i, trial.Number)
		assert.Equal(t, TrialComplete, trial.State)
	}
}

func TestOptimizeChannel(t *testing.T) {
	config := seededConfig()

	// The following isn't necessary, this is just exist for testing purposes.
	config.InitialSamples = 3

	progressChan := make(chan ProgressUpdate, 5)
	config.ProgressChan = progressChan

	study, err := CreateStudy("channel", Maximize, WithConfig(config))
	require.NoError(t, err)

	require.NoError(t, study.Optimize(context.Background(), branchingObjective, 5, 1))
	close(progressChan)

	var phases []string

	var counter int32

	for update := range progressChan {
		atomic.AddInt32(&counter, int32(update.CurrentIteration))

		phases = append(phases, update.Phase)

		assert.Equal(t, 5, update.TotalIterations)
		assert.False(t, math.IsNaN(update.CurrentBestValue))
	}

	// Ensure events where emitted.
	assert.Equal(t, int32(1+2+3+4+5), atomic.LoadInt32(&counter))
	assert.Equal(t, []string{"InitialSampling", "InitialSampling", "InitialSampling", "Optimization", "Optimization"}, phases)
}

func TestOptimizeStopsOnError(t *testing.T) {
	study, err := CreateStudy("failing", Maximize, WithConfig(seededConfig()))
	require.NoError(t, err)

	boom := errors.New("boom")

	objective := func(_ context.Context, trial *Trial) (float64, error) {
		if trial.Number() == 2 {
			return 0, boom
		}

		return 1, nil
	}

	err = study.Optimize(context.Background(), objective, 10, 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "trial 2")

	trials := study.Trials()
	require.Len(t, trials, 3)
	assert.Equal(t, TrialFail, trials[2].State)
	assert.Equal(t, "boom", trials[2].Err)
	assert.NotNil(t, trials[2].DatetimeComplete)
}

func TestOptimizeContinueOnError(t *testing.T) {
	config := seededConfig()
	config.ContinueOnError = true

	study, err := CreateStudy("tolerant", Minimize, WithConfig(config))
	require.NoError(t, err)

	objective := func(_ context.Context, trial *Trial) (float64, error) {
		if trial.Number()%2 == 1 {
			return math.NaN(), nil
		}

		return float64(trial.Number()), nil
	}

	require.NoError(t, study.Optimize(context.Background(), objective, 6, 2))

	var failed int

	for _, trial := range study.Trials() {
		if trial.State == TrialFail {
			failed++
		}
	}

	assert.Equal(t, 3, failed)

	best, err := study.BestTrial()
	require.NoError(t, err)
	assert.Equal(t, 0, best.Number)
}

func TestOptimizeCancelledContext(t *testing.T) {
	study, err := CreateStudy("cancelled", Maximize)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = study.Optimize(ctx, branchingObjective, 5, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, study.Trials())
}

func TestOptimizeAccumulatesHistory(t *testing.T) {
	study, err := CreateStudy("accumulate", Maximize, WithConfig(seededConfig()))
	require.NoError(t, err)

	require.NoError(t, study.Optimize(context.Background(), branchingObjective, 3, 1))
	require.NoError(t, study.Optimize(context.Background(), branchingObjective, 2, 1))

	trials := study.Trials()
	require.Len(t, trials, 5)
	assert.Equal(t, 4, trials[4].Number)
}

func TestBestTrial(t *testing.T) {
	study, err := CreateStudy("best", Maximize)
	require.NoError(t, err)

	_, err = study.BestTrial()
	require.ErrorIs(t, err, ErrNoCompleteTrials)

	values := []float64{0.3, 0.9, 0.9, 0.1}

	objective := func(_ context.Context, trial *Trial) (float64, error) {
		return values[trial.Number()], nil
	}

	require.NoError(t, study.Optimize(context.Background(), objective, len(values), 1))

	best, err := study.BestTrial()
	require.NoError(t, err)
	assert.Equal(t, 1, best.Number)
	assert.InDelta(t, 0.9, best.Value, 1e-12)
}

func TestTrialTimestampsUseClock(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	var ticks int64

	clock := func() time.Time {
		n := atomic.AddInt64(&ticks, 1)

		return base.Add(time.Duration(n) * time.Second)
	}

	study, err := CreateStudy("clock", Maximize, WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, study.Optimize(context.Background(), func(context.Context, *Trial) (float64, error) {
		return 1, nil
	}, 1, 1))

	trial := study.Trials()[0]
	assert.Equal(t, base.Add(time.Second), trial.DatetimeStart)
	require.NotNil(t, trial.DatetimeComplete)
	assert.Equal(t, base.Add(2*time.Second), *trial.DatetimeComplete)
	assert.Equal(t, time.Second, trial.Duration())
}

func TestCreateStudyValidation(t *testing.T) {
	_, err := CreateStudy("", Maximize)
	assert.Error(t, err)

	_, err = CreateStudy("x", Direction(9))
	assert.Error(t, err)

	study, err := CreateStudy("x", Minimize)
	require.NoError(t, err)
	assert.NotEmpty(t, study.ID())
	assert.Equal(t, "x", study.Name())
	assert.Equal(t, Minimize, study.Direction())
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("Maximize")
	require.NoError(t, err)
	assert.Equal(t, Maximize, d)
	assert.Equal(t, "maximize", d.String())

	d, err = ParseDirection(" minimize ")
	require.NoError(t, err)
	assert.Equal(t, Minimize, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
