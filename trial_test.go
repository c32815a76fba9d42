package hotune

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTrial(t *testing.T) *Trial {
	t.Helper()

	study, err := CreateStudy("trial", Maximize, WithSampler(NewRandomSampler(5)))
	require.NoError(t, err)

	return study.newTrial()
}

func TestSuggestIsStable(t *testing.T) {
	trial := newTestTrial(t)

	first, err := trial.SuggestFloat("svc_c", 1e-10, 1e10, true)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := trial.SuggestFloat("svc_c", 1e-10, 1e10, true)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Len(t, trial.Params(), 1)
}

func TestSuggestIncompatibleDistribution(t *testing.T) {
	trial := newTestTrial(t)

	_, err := trial.SuggestInt("depth", 2, 32, true)
	require.NoError(t, err)

	_, err = trial.SuggestInt("depth", 2, 16, true)
	assert.ErrorIs(t, err, ErrIncompatibleDistribution)

	_, err = trial.SuggestFloat("depth", 2, 32, true)
	assert.ErrorIs(t, err, ErrIncompatibleDistribution)
}

func TestSuggestInvalidDomains(t *testing.T) {
	trial := newTestTrial(t)

	_, err := trial.SuggestCategorical("classifier", nil)
	assert.ErrorIs(t, err, ErrInvalidDistribution)

	_, err = trial.SuggestFloat("c", 0, 1, true)
	assert.ErrorIs(t, err, ErrInvalidDistribution)

	_, err = trial.SuggestInt("d", 5, 1, false)
	assert.ErrorIs(t, err, ErrInvalidDistribution)

	_, err = trial.SuggestInt("", 1, 2, false)
	assert.ErrorIs(t, err, ErrInvalidDistribution)

	assert.Empty(t, trial.Params())
}

func TestSuggestCategoricalCopiesChoices(t *testing.T) {
	trial := newTestTrial(t)

	choices := []string{"SVC", "RandomForest"}

	v, err := trial.SuggestCategorical("classifier", choices)
	require.NoError(t, err)
	assert.Contains(t, choices, v)

	choices[0] = "mutated"

	again, err := trial.SuggestCategorical("classifier", []string{"SVC", "RandomForest"})
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestParamsKeepDrawOrder(t *testing.T) {
	study, err := CreateStudy("order", Maximize)
	require.NoError(t, err)

	require.NoError(t, study.Optimize(context.Background(), func(_ context.Context, trial *Trial) (float64, error) {
		for _, name := range []string{"z", "a", "m"} {
			if _, err := trial.SuggestInt(name, 0, 10, false); err != nil {
				return 0, err
			}
		}

		return 0, nil
	}, 1, 1))

	params := study.Trials()[0].Params
	require.Len(t, params, 3)
	assert.Equal(t, "z", params[0].Name)
	assert.Equal(t, "a", params[1].Name)
	assert.Equal(t, "m", params[2].Name)
}
