package learn

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Fold is one train/test partition of the sample indices.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits indices 0..len(y)-1 into k folds that preserve the
// class proportions of y. Samples are not shuffled: each class is cut into
// contiguous runs in its original order, and the per-class run lengths are
// balanced so that overall fold sizes differ by at most one per class.
func StratifiedKFold(y []int, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("k must be at least 2, got %d", k)
	}

	if k > len(y) {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", len(y), k)
	}

	classes := uniqueSorted(y)

	classIndex := make(map[int]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}

	// Deal the label-sorted samples round-robin to decide how many members of
	// each class every fold receives.
	sorted := append([]int(nil), y...)
	sort.Ints(sorted)

	allocation := make([][]int, k)
	for f := range allocation {
		allocation[f] = make([]int, len(classes))
	}

	for pos, label := range sorted {
		allocation[pos%k][classIndex[label]]++
	}

	testFold := make([]int, len(y))

	for ci, c := range classes {
		f, used := 0, 0

		for i, label := range y {
			if label != c {
				continue
			}

			for used >= allocation[f][ci] {
				f++
				used = 0
			}

			testFold[i] = f
			used++
		}
	}

	folds := make([]Fold, k)

	for i, f := range testFold {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, i)
			} else {
				folds[g].Train = append(folds[g].Train, i)
			}
		}
	}

	return folds, nil
}

// CrossValidate scores clf with stratified k-fold cross-validation and
// returns the accuracy of every fold in fold order. Each fold trains a fresh
// Clone of clf. Up to parallelism folds run at once; parallelism <= 0 uses
// every available CPU. The first fold error is returned.
func CrossValidate(ctx context.Context, clf Classifier, X mat.Matrix, y []int, k, parallelism int) ([]float64, error) {
	if err := checkXY(X, y); err != nil {
		return nil, err
	}

	folds, err := StratifiedKFold(y, k)
	if err != nil {
		return nil, err
	}

	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	var (
		wg     sync.WaitGroup
		sem    = make(chan struct{}, parallelism)
		scores = make([]float64, len(folds))
		errs   = make([]error, len(folds))
	)

	for f := range folds {
		if err := ctx.Err(); err != nil {
			errs[f] = err

			break
		}

		sem <- struct{}{}

		wg.Add(1)

		go func(f int) {
			defer wg.Done()
			defer func() { <-sem }()

			scores[f], errs[f] = scoreFold(clf.Clone(), X, y, folds[f])
		}(f)
	}

	wg.Wait()

	for f, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
	}

	return scores, nil
}

func scoreFold(clf Classifier, X mat.Matrix, y []int, fold Fold) (float64, error) {
	trainX, trainY := subset(X, y, fold.Train)
	testX, testY := subset(X, y, fold.Test)

	if err := clf.Fit(trainX, trainY); err != nil {
		return 0, fmt.Errorf("fit: %w", err)
	}

	pred, err := clf.Predict(testX)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}

	return Accuracy(testY, pred)
}

func subset(X mat.Matrix, y []int, idx []int) (*mat.Dense, []int) {
	_, cols := X.Dims()

	outX := mat.NewDense(len(idx), cols, nil)
	outY := make([]int, len(idx))

	for r, i := range idx {
		for c := 0; c < cols; c++ {
			outX.Set(r, c, X.At(i, c))
		}

		outY[r] = y[i]
	}

	return outX, outY
}
