package learn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/thalesfsp/hotune/internal/dataset"
)

func iris(t *testing.T) (*mat.Dense, []int) {
	t.Helper()

	ds, err := dataset.LoadIris()
	require.NoError(t, err)

	return ds.X, ds.Y
}

func TestAccuracy(t *testing.T) {
	acc, err := Accuracy([]int{0, 1, 2, 2}, []int{0, 1, 1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)

	_, err = Accuracy([]int{0}, []int{0, 1})
	assert.ErrorIs(t, err, ErrShape)

	_, err = Accuracy(nil, nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestStratifiedKFoldIris(t *testing.T) {
	_, y := iris(t)

	folds, err := StratifiedKFold(y, 3)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := make(map[int]int)

	for _, fold := range folds {
		assert.Len(t, fold.Test, 50)
		assert.Len(t, fold.Train, 100)

		perClass := make([]int, 3)
		for _, i := range fold.Test {
			seen[i]++
			perClass[y[i]]++
		}

		for _, n := range perClass {
			assert.GreaterOrEqual(t, n, 16)
			assert.LessOrEqual(t, n, 17)
		}
	}

	// Every sample is tested exactly once.
	assert.Len(t, seen, 150)

	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestStratifiedKFoldErrors(t *testing.T) {
	_, err := StratifiedKFold([]int{0, 1, 0}, 1)
	assert.Error(t, err)

	_, err = StratifiedKFold([]int{0, 1}, 3)
	assert.Error(t, err)
}

func TestSVCSeparatesIris(t *testing.T) {
	X, y := iris(t)

	svc := NewSVC(1.0)
	require.NoError(t, svc.Fit(X, y))
	assert.InDelta(t, 0.25, svc.EffectiveGamma(), 1e-12)

	pred, err := svc.Predict(X)
	require.NoError(t, err)

	acc, err := Accuracy(y, pred)
	require.NoError(t, err)
	assert.Greater(t, acc, 0.9)
}

func TestSVCRejectsBadC(t *testing.T) {
	X, y := iris(t)

	assert.Error(t, NewSVC(0).Fit(X, y))
	assert.Error(t, NewSVC(-1).Fit(X, y))
}

func TestSVCNotFitted(t *testing.T) {
	X, _ := iris(t)

	_, err := NewSVC(1).Predict(X)
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = NewRandomForest(10, 4, 0).Predict(X)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestRandomForestShape(t *testing.T) {
	X, y := iris(t)

	forest := NewRandomForest(10, 4, 42)
	require.NoError(t, forest.Fit(X, y))

	assert.Equal(t, 10, forest.Trees())
	assert.LessOrEqual(t, forest.Depth(), 4)

	pred, err := forest.Predict(X)
	require.NoError(t, err)

	acc, err := Accuracy(y, pred)
	require.NoError(t, err)
	assert.Greater(t, acc, 0.9)
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := iris(t)

	a := NewRandomForest(10, 3, 7)
	b := a.Clone()

	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.Predict(X)
	require.NoError(t, err)

	pb, err := b.Predict(X)
	require.NoError(t, err)

	assert.Equal(t, pa, pb)
}

func TestCrossValidate(t *testing.T) {
	X, y := iris(t)

	for name, clf := range map[string]Classifier{
		"svc":    NewSVC(1.0),
		"forest": NewRandomForest(10, 4, 1),
		"tiny-c": NewSVC(1e-10),
		"huge-c": NewSVC(1e10),
	} {
		scores, err := CrossValidate(context.Background(), clf, X, y, 3, -1)
		require.NoError(t, err, name)
		require.Len(t, scores, 3, name)

		for _, s := range scores {
			assert.GreaterOrEqual(t, s, 0.0, name)
			assert.LessOrEqual(t, s, 1.0, name)
		}

		again, err := CrossValidate(context.Background(), clf, X, y, 3, 1)
		require.NoError(t, err, name)
		assert.Equal(t, scores, again, name)
	}

	scores, err := CrossValidate(context.Background(), NewSVC(1.0), X, y, 3, 2)
	require.NoError(t, err)
	assert.Greater(t, stat.Mean(scores, nil), 0.9)
}

func TestCrossValidateCancelled(t *testing.T) {
	X, y := iris(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CrossValidate(ctx, NewSVC(1), X, y, 3, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrossValidateShapeMismatch(t *testing.T) {
	X, y := iris(t)

	_, err := CrossValidate(context.Background(), NewSVC(1), X, y[:10], 3, 1)
	assert.ErrorIs(t, err, ErrShape)
}
