package objective

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/hotune"
	"github.com/thalesfsp/hotune/internal/dataset"
	"github.com/thalesfsp/hotune/internal/learn"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

// fixedSuggester answers from a fixed table and records what was asked.
type fixedSuggester struct {
	values map[string]any
	asked  []string
}

func (f *fixedSuggester) SuggestCategorical(name string, _ []string) (string, error) {
	f.asked = append(f.asked, name)

	return f.values[name].(string), nil
}

func (f *fixedSuggester) SuggestFloat(name string, _, _ float64, _ bool) (float64, error) {
	f.asked = append(f.asked, name)

	return f.values[name].(float64), nil
}

func (f *fixedSuggester) SuggestInt(name string, _, _ int64, _ bool) (int64, error) {
	f.asked = append(f.asked, name)

	return f.values[name].(int64), nil
}

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()

	ds, err := dataset.LoadIris()
	require.NoError(t, err)

	e := New(ds.X, ds.Y)
	e.Seed = 42

	return e
}

func TestDrawSVCBranch(t *testing.T) {
	s := &fixedSuggester{values: map[string]any{ParamClassifier: KindSVC, ParamSVCC: 1.0}}

	p, err := Draw(s)
	require.NoError(t, err)
	assert.Equal(t, SVCParams{C: 1.0}, p)
	assert.Equal(t, []string{ParamClassifier, ParamSVCC}, s.asked)
}

func TestDrawForestBranch(t *testing.T) {
	s := &fixedSuggester{values: map[string]any{ParamClassifier: KindRandomForest, ParamRFMaxDepth: int64(4)}}

	p, err := Draw(s)
	require.NoError(t, err)
	assert.Equal(t, ForestParams{MaxDepth: 4}, p)
	assert.Equal(t, []string{ParamClassifier, ParamRFMaxDepth}, s.asked)
}

func TestDrawUnknownKind(t *testing.T) {
	s := &fixedSuggester{values: map[string]any{ParamClassifier: "KNN"}}

	_, err := Draw(s)
	assert.Error(t, err)
}

func TestBuildSVC(t *testing.T) {
	clf, err := newEvaluator(t).Build(SVCParams{C: 1.0})
	require.NoError(t, err)

	svc, ok := clf.(*learn.SVC)
	require.True(t, ok)
	assert.Equal(t, 1.0, svc.C)
	assert.Equal(t, learn.GammaAuto, svc.Gamma)
}

func TestBuildForest(t *testing.T) {
	clf, err := newEvaluator(t).Build(ForestParams{MaxDepth: 4})
	require.NoError(t, err)

	forest, ok := clf.(*learn.RandomForest)
	require.True(t, ok)
	assert.Equal(t, 10, forest.NEstimators)
	assert.Equal(t, 4, forest.MaxDepth)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := newEvaluator(t)

	for _, values := range []map[string]any{
		{ParamClassifier: KindSVC, ParamSVCC: 1.0},
		{ParamClassifier: KindRandomForest, ParamRFMaxDepth: int64(4)},
	} {
		first, err := e.Evaluate(context.Background(), &fixedSuggester{values: values})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, first, 0.0)
		assert.LessOrEqual(t, first, 1.0)
		assert.Greater(t, first, 0.8)

		second, err := e.Evaluate(context.Background(), &fixedSuggester{values: values})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestEvaluateBoundsAtExtremes(t *testing.T) {
	e := newEvaluator(t)

	for _, c := range []float64{1e-10, 1e10} {
		acc, err := e.Evaluate(context.Background(), &fixedSuggester{values: map[string]any{ParamClassifier: KindSVC, ParamSVCC: c}})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, acc, 0.0)
		assert.LessOrEqual(t, acc, 1.0)
	}
}

type failingSuggester struct{ fixedSuggester }

func (failingSuggester) SuggestCategorical(string, []string) (string, error) {
	return "", errors.New("no more suggestions")
}

func TestEvaluatePropagatesErrors(t *testing.T) {
	_, err := newEvaluator(t).Evaluate(context.Background(), &failingSuggester{})
	assert.EqualError(t, err, "no more suggestions")
}

func TestObjectiveWithStudy(t *testing.T) {
	config := hotune.DefaultConfig()
	config.Seed = 3

	study, err := hotune.CreateStudy("sklearn_simple", hotune.Maximize, hotune.WithConfig(config))
	require.NoError(t, err)

	e := newEvaluator(t)
	e.Parallelism = 1

	require.NoError(t, study.Optimize(context.Background(), e.Objective(), 6, 1))

	for _, trial := range study.Trials() {
		require.Equal(t, hotune.TrialComplete, trial.State)
		assert.GreaterOrEqual(t, trial.Value, 0.0)
		assert.LessOrEqual(t, trial.Value, 1.0)

		kind, ok := trial.Param(ParamClassifier)
		require.True(t, ok)

		_, hasC := trial.Param(ParamSVCC)
		_, hasDepth := trial.Param(ParamRFMaxDepth)

		assert.Equal(t, kind == KindSVC, hasC)
		assert.Equal(t, kind == KindRandomForest, hasDepth)
	}
}
