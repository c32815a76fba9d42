// Package learn is the model and scoring toolkit behind the objective: a
// kernel SVM, a random forest, stratified k-fold splitting and
// cross-validated accuracy. Features are gonum matrices, labels are class
// indices starting at zero.
package learn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("classifier is not fitted")

	// ErrShape is returned when the feature matrix and labels disagree.
	ErrShape = errors.New("shape mismatch")
)

// Classifier is a supervised multi-class model.
type Classifier interface {
	// Fit trains the model on the rows of X with labels y.
	Fit(X mat.Matrix, y []int) error

	// Predict returns one class label per row of X.
	Predict(X mat.Matrix) ([]int, error)

	// Clone returns an unfitted copy carrying the same hyperparameters.
	Clone() Classifier
}

// Accuracy returns the fraction of positions where pred equals truth.
func Accuracy(truth, pred []int) (float64, error) {
	if len(truth) != len(pred) {
		return 0, fmt.Errorf("%w: %d labels, %d predictions", ErrShape, len(truth), len(pred))
	}

	if len(truth) == 0 {
		return 0, fmt.Errorf("%w: empty label set", ErrShape)
	}

	var hits int

	for i := range truth {
		if truth[i] == pred[i] {
			hits++
		}
	}

	return float64(hits) / float64(len(truth)), nil
}

// rowsOf copies the rows of X into plain slices for the inner loops.
func rowsOf(X mat.Matrix) [][]float64 {
	r, _ := X.Dims()

	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, X)
	}

	return out
}

func checkXY(X mat.Matrix, y []int) error {
	r, c := X.Dims()
	if r != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrShape, r, len(y))
	}

	if r == 0 || c == 0 {
		return fmt.Errorf("%w: empty training set", ErrShape)
	}

	for i, label := range y {
		if label < 0 {
			return fmt.Errorf("%w: negative label %d at row %d", ErrShape, label, i)
		}
	}

	return nil
}

// argmax returns the first index of the largest value.
func argmax(xs []float64) int {
	best := 0

	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}

	return best
}
