package hotune

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionsRoundTrip(t *testing.T) {
	float := FloatDistribution{ParameterRange[float64]{Min: 1e-10, Max: 1e10, Log: true}}
	assert.InDelta(t, 0.5, float.toUnit(1.0), 1e-9)
	assert.InDelta(t, 1.0, float.fromUnit(0.5).(float64), 1e-6)
	assert.InEpsilon(t, 1e10, float.fromUnit(1.0).(float64), 1e-9)
	assert.True(t, float.Contains(1e-10))
	assert.False(t, float.Contains(1e11))
	assert.False(t, float.Contains(int64(1)))

	integer := IntDistribution{ParameterRange[int64]{Min: 2, Max: 32, Log: true}}
	assert.Equal(t, int64(2), integer.fromUnit(0))
	assert.Equal(t, int64(32), integer.fromUnit(1))
	assert.Equal(t, int64(8), integer.fromUnit(integer.toUnit(int64(8))))

	cat := CategoricalDistribution{Choices: []string{"SVC", "RandomForest"}}
	assert.Equal(t, "SVC", cat.fromUnit(0.49))
	assert.Equal(t, "RandomForest", cat.fromUnit(0.5))
	assert.Equal(t, "RandomForest", cat.fromUnit(1))
	assert.Equal(t, 1.0, cat.toUnit("RandomForest"))
	assert.False(t, cat.Contains("KNN"))
}

func TestDistributionValidation(t *testing.T) {
	assert.ErrorIs(t, CategoricalDistribution{}.validate(), ErrInvalidDistribution)
	assert.ErrorIs(t, FloatDistribution{ParameterRange[float64]{Min: 2, Max: 1}}.validate(), ErrInvalidDistribution)
	assert.ErrorIs(t, FloatDistribution{ParameterRange[float64]{Min: 0, Max: 1, Log: true}}.validate(), ErrInvalidDistribution)
	assert.NoError(t, IntDistribution{ParameterRange[int64]{Min: 1, Max: 1, Log: true}}.validate())
}

func TestRandomSamplerStaysInDomain(t *testing.T) {
	sampler := NewRandomSampler(3)

	float := FloatDistribution{ParameterRange[float64]{Min: 1e-10, Max: 1e10, Log: true}}
	integer := IntDistribution{ParameterRange[int64]{Min: 2, Max: 32, Log: true}}

	var small, large int

	for i := 0; i < 500; i++ {
		v, err := sampler.Sample(nil, "c", float, Maximize)
		require.NoError(t, err)
		require.True(t, float.Contains(v))

		if v.(float64) < 1 {
			small++
		} else {
			large++
		}

		n, err := sampler.Sample(nil, "d", integer, Maximize)
		require.NoError(t, err)
		require.True(t, integer.Contains(n))
	}

	// Log density: roughly half the draws fall below 1.
	assert.InDelta(t, 250, small, 75)
	assert.InDelta(t, 250, large, 75)
}

func TestGPSamplerExploitsHistory(t *testing.T) {
	config := DefaultConfig()
	config.Seed = 11
	config.InitialSamples = 2
	config.AcqParams.Beta = 0

	sampler := NewGPSampler(config)
	cat := CategoricalDistribution{Choices: []string{"bad", "good"}}

	var history []TrialRecord

	for i, choice := range []string{"bad", "good", "bad", "good"} {
		value := 0.1
		if choice == "good" {
			value = 0.9
		}

		history = append(history, TrialRecord{
			Number:        i,
			State:         TrialComplete,
			Params:        []Param{{Name: "kind", Value: choice}},
			Distributions: map[string]Distribution{"kind": cat},
			Value:         value,
			DatetimeStart: time.Unix(0, 0),
		})
	}

	v, err := sampler.Sample(history, "kind", cat, Maximize)
	require.NoError(t, err)
	assert.Equal(t, "good", v)

	v, err = sampler.Sample(history, "kind", cat, Minimize)
	require.NoError(t, err)
	assert.Equal(t, "bad", v)
}

func TestGPSamplerIgnoresOtherBranches(t *testing.T) {
	cat := CategoricalDistribution{Choices: []string{"a"}}
	other := FloatDistribution{ParameterRange[float64]{Min: 0, Max: 1}}

	history := []TrialRecord{
		{State: TrialComplete, Params: []Param{{Name: "x", Value: 0.5}}, Distributions: map[string]Distribution{"x": other}, Value: 1},
		{State: TrialFail, Params: []Param{{Name: "kind", Value: "a"}}, Distributions: map[string]Distribution{"kind": cat}},
	}

	xs, losses := observations(history, "kind", cat, Maximize)
	assert.Empty(t, xs)
	assert.Empty(t, losses)

	xs, losses = observations(history, "x", other, Maximize)
	assert.Equal(t, []float64{0.5}, xs)
	assert.Equal(t, []float64{-1}, losses)
}

func TestGaussianProcessPredict(t *testing.T) {
	gp := newGaussianProcess()

	mean, variance := gp.Predict([]float64{0.3})
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 1.0, variance)

	gp.SetSigma(0.1)
	gp.SetSigma(-1)
	assert.Equal(t, 0.1, gp.sigma)

	gp.Update([]float64{0.2}, -1)
	gp.Update([]float64{0.8}, 1)
	assert.Len(t, gp.X, 2)

	mean, variance = gp.Predict([]float64{0.2})
	assert.Less(t, mean, 0.0)
	assert.InDelta(t, 0.0, variance, 1e-9)

	mean, variance = gp.Predict([]float64{0.8})
	assert.Greater(t, mean, 0.0)

	_, far := gp.Predict([]float64{0.5})
	assert.Greater(t, far, 0.5)

	assert.InDelta(t, 1.0, rbf([]float64{1, 2}, []float64{1, 2}, 0.1), 1e-12)
	assert.Panics(t, func() { gp.Predict([]float64{1, 2}) })
}

func TestAcquisitionFunctions(t *testing.T) {
	params := AcquisitionParams{Beta: 2, Xi: 0, BestSoFar: 0}

	// Lower predicted loss is more promising for every function.
	for name, fn := range map[string]AcquisitionFunc{"ucb": UCB, "pi": ProbabilityOfImprovement, "ei": ExpectedImprovement} {
		assert.Less(t, fn(-1, 0.5, params), fn(1, 0.5, params), name)
		assert.False(t, math.IsNaN(fn(0, 0, params)), name)
	}

	params.RandomState = newRand(1)
	assert.False(t, math.IsNaN(ThompsonSampling(0, 1, params)))

	fn, ok := AcquisitionByName("ei")
	assert.True(t, ok)
	assert.NotNil(t, fn)

	_, ok = AcquisitionByName("nope")
	assert.False(t, ok)
}

func TestStandardize(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, standardize([]float64{3, 3}))

	out := standardize([]float64{1, 3})
	assert.InDelta(t, -1, out[0], 1e-12)
	assert.InDelta(t, 1, out[1], 1e-12)

	// Population standard deviation: sqrt(2/3) for 1, 2, 3.
	out = standardize([]float64{1, 2, 3})
	assert.InDelta(t, -math.Sqrt(1.5), out[0], 1e-12)
	assert.InDelta(t, 0, out[1], 1e-12)
	assert.InDelta(t, math.Sqrt(1.5), out[2], 1e-12)

	assert.Equal(t, []float64{0}, standardize([]float64{7}))
}
