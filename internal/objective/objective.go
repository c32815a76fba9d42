// Package objective scores one classifier configuration drawn from a
// suggestion context: it picks the classifier kind, draws only that kind's
// hyperparameter, and returns the mean 3-fold cross-validated accuracy.
package objective

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/thalesfsp/hotune"
	"github.com/thalesfsp/hotune/internal/learn"
)

// Parameter names and choices of the search space.
const (
	ParamClassifier = "classifier"
	ParamSVCC       = "svc_c"
	ParamRFMaxDepth = "rf_max_depth"

	KindSVC          = "SVC"
	KindRandomForest = "RandomForest"

	// ForestEstimators is the fixed ensemble size of the RandomForest branch.
	ForestEstimators = 10
)

// Suggester is the subset of *hotune.Trial the evaluator draws from.
type Suggester interface {
	SuggestCategorical(name string, choices []string) (string, error)
	SuggestFloat(name string, low, high float64, log bool) (float64, error)
	SuggestInt(name string, low, high int64, log bool) (int64, error)
}

// Params is the drawn configuration: exactly one of SVCParams or
// ForestParams.
type Params interface {
	// Kind returns KindSVC or KindRandomForest.
	Kind() string

	isParams()
}

// SVCParams configures the SVC branch.
type SVCParams struct {
	C float64
}

// Kind implements Params.
func (SVCParams) Kind() string { return KindSVC }
func (SVCParams) isParams()    {}

// ForestParams configures the RandomForest branch.
type ForestParams struct {
	MaxDepth int
}

// Kind implements Params.
func (ForestParams) Kind() string { return KindRandomForest }
func (ForestParams) isParams()    {}

// Draw draws the classifier kind and then that kind's hyperparameter, and
// nothing else.
func Draw(s Suggester) (Params, error) {
	kind, err := s.SuggestCategorical(ParamClassifier, []string{KindSVC, KindRandomForest})
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindSVC:
		c, err := s.SuggestFloat(ParamSVCC, 1e-10, 1e10, true)
		if err != nil {
			return nil, err
		}

		return SVCParams{C: c}, nil
	case KindRandomForest:
		depth, err := s.SuggestInt(ParamRFMaxDepth, 2, 32, true)
		if err != nil {
			return nil, err
		}

		return ForestParams{MaxDepth: int(depth)}, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", kind)
	}
}

// Evaluator scores configurations on a fixed dataset.
type Evaluator struct {
	X mat.Matrix
	Y []int

	// Folds is the number of cross-validation folds.
	Folds int

	// Parallelism bounds concurrently fitted folds; <= 0 uses every CPU.
	Parallelism int

	// Seed seeds the random forest.
	Seed int64

	Logger logrus.FieldLogger
}

// New returns an Evaluator with 3 folds, one fold per CPU and the standard
// logger.
func New(X mat.Matrix, y []int) *Evaluator {
	return &Evaluator{
		X:           X,
		Y:           y,
		Folds:       3,
		Parallelism: -1,
		Logger:      logrus.StandardLogger(),
	}
}

// Build constructs the classifier for p.
func (e *Evaluator) Build(p Params) (learn.Classifier, error) {
	switch p := p.(type) {
	case SVCParams:
		svc := learn.NewSVC(p.C)
		svc.Gamma = learn.GammaAuto

		return svc, nil
	case ForestParams:
		return learn.NewRandomForest(ForestEstimators, p.MaxDepth, e.Seed), nil
	default:
		return nil, fmt.Errorf("unsupported params %T", p)
	}
}

// Evaluate draws a configuration from s and returns its mean
// cross-validated accuracy in [0, 1]. Fitting errors are returned as is.
func (e *Evaluator) Evaluate(ctx context.Context, s Suggester) (float64, error) {
	p, err := Draw(s)
	if err != nil {
		return 0, err
	}

	clf, err := e.Build(p)
	if err != nil {
		return 0, err
	}

	scores, err := learn.CrossValidate(ctx, clf, e.X, e.Y, e.Folds, e.Parallelism)
	if err != nil {
		return 0, fmt.Errorf("cross-validate %s: %w", p.Kind(), err)
	}

	accuracy := stat.Mean(scores, nil)

	if e.Logger != nil {
		e.Logger.WithFields(logrus.Fields{
			"classifier": p.Kind(),
			"params":     fmt.Sprintf("%+v", p),
			"accuracy":   accuracy,
		}).Debug("evaluated configuration")
	}

	return accuracy, nil
}

// Objective adapts Evaluate to the study driver.
func (e *Evaluator) Objective() hotune.ObjectiveFunc {
	return func(ctx context.Context, trial *hotune.Trial) (float64, error) {
		return e.Evaluate(ctx, trial)
	}
}
