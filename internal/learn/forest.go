package learn

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RandomForest is a bagged ensemble of CART trees split on Gini impurity.
// Each split considers a random subset of MaxFeatures features; predictions
// average the leaf class distributions of all trees.
type RandomForest struct {
	// NEstimators is the number of trees.
	NEstimators int

	// MaxDepth bounds the depth of every tree. <= 0 grows until leaves are
	// pure.
	MaxDepth int

	// MaxFeatures is the number of features tried per split. <= 0 selects
	// floor(sqrt(n_features)).
	MaxFeatures int

	// MinSamplesSplit is the smallest node that may still be split.
	MinSamplesSplit int

	// Bootstrap draws each tree's training rows with replacement.
	Bootstrap bool

	// Seed makes training reproducible.
	Seed int64

	nClasses int
	trees    []*treeNode
}

// NewRandomForest returns a bootstrapped forest of nEstimators trees of at
// most maxDepth levels.
func NewRandomForest(nEstimators, maxDepth int, seed int64) *RandomForest {
	return &RandomForest{
		NEstimators:     nEstimators,
		MaxDepth:        maxDepth,
		MinSamplesSplit: 2,
		Bootstrap:       true,
		Seed:            seed,
	}
}

// Clone implements Classifier.
func (f *RandomForest) Clone() Classifier {
	return &RandomForest{
		NEstimators:     f.NEstimators,
		MaxDepth:        f.MaxDepth,
		MaxFeatures:     f.MaxFeatures,
		MinSamplesSplit: f.MinSamplesSplit,
		Bootstrap:       f.Bootstrap,
		Seed:            f.Seed,
	}
}

// Trees returns the number of fitted trees.
func (f *RandomForest) Trees() int {
	return len(f.trees)
}

// Depth returns the depth of the deepest fitted tree.
func (f *RandomForest) Depth() int {
	var d int

	for _, t := range f.trees {
		if td := t.depth(); td > d {
			d = td
		}
	}

	return d
}

// Fit implements Classifier.
func (f *RandomForest) Fit(X mat.Matrix, y []int) error {
	if err := checkXY(X, y); err != nil {
		return err
	}

	if f.NEstimators <= 0 {
		return fmt.Errorf("random forest: NEstimators must be positive, got %d", f.NEstimators)
	}

	rows := rowsOf(X)
	nFeatures := len(rows[0])

	maxFeatures := f.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(nFeatures)))
	}

	if maxFeatures < 1 {
		maxFeatures = 1
	}

	if maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}

	f.nClasses = 0
	for _, label := range y {
		if label+1 > f.nClasses {
			f.nClasses = label + 1
		}
	}

	b := treeBuilder{
		rows:            rows,
		y:               y,
		nClasses:        f.nClasses,
		maxDepth:        f.MaxDepth,
		maxFeatures:     maxFeatures,
		minSamplesSplit: max(f.MinSamplesSplit, 2),
		rng:             rand.New(rand.NewSource(f.Seed)),
	}

	f.trees = make([]*treeNode, f.NEstimators)

	for t := range f.trees {
		idx := make([]int, len(rows))
		for i := range idx {
			if f.Bootstrap {
				idx[i] = b.rng.Intn(len(rows))
			} else {
				idx[i] = i
			}
		}

		f.trees[t] = b.build(idx, 0)
	}

	return nil
}

// Predict implements Classifier.
func (f *RandomForest) Predict(X mat.Matrix) ([]int, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}

	rows := rowsOf(X)
	out := make([]int, len(rows))
	proba := make([]float64, f.nClasses)

	for i, x := range rows {
		for k := range proba {
			proba[k] = 0
		}

		for _, t := range f.trees {
			floats.Add(proba, t.leaf(x).proba)
		}

		out[i] = argmax(proba)
	}

	return out, nil
}

//////
// Trees.
//////

type treeNode struct {
	feature     int
	threshold   float64
	left, right *treeNode
	proba       []float64 // leaves only
}

func (n *treeNode) leaf(x []float64) *treeNode {
	for n.proba == nil {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}

	return n
}

func (n *treeNode) depth() int {
	if n.proba != nil {
		return 0
	}

	return 1 + max(n.left.depth(), n.right.depth())
}

type treeBuilder struct {
	rows            [][]float64
	y               []int
	nClasses        int
	maxDepth        int
	maxFeatures     int
	minSamplesSplit int
	rng             *rand.Rand
}

func (b *treeBuilder) build(idx []int, depth int) *treeNode {
	counts := make([]float64, b.nClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}

	if (b.maxDepth > 0 && depth >= b.maxDepth) || len(idx) < b.minSamplesSplit || isPure(counts) {
		return newLeaf(counts)
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		return newLeaf(counts)
	}

	var left, right []int

	for _, i := range idx {
		if b.rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}

// bestSplit scans features in random order. At least maxFeatures features
// are evaluated, and the scan continues past that only while no valid split
// has been found.
func (b *treeBuilder) bestSplit(idx []int, counts []float64) (int, float64, bool) {
	var (
		bestFeature   = -1
		bestThreshold float64
		bestImpurity  = math.Inf(1)
	)

	order := make([]int, len(idx))
	total := float64(len(idx))

	for visited, feature := range b.rng.Perm(len(b.rows[0])) {
		if visited >= b.maxFeatures && bestFeature >= 0 {
			break
		}

		copy(order, idx)
		sort.SliceStable(order, func(p, q int) bool {
			return b.rows[order[p]][feature] < b.rows[order[q]][feature]
		})

		left := make([]float64, b.nClasses)
		right := append([]float64(nil), counts...)

		for k := 0; k < len(order)-1; k++ {
			label := b.y[order[k]]
			left[label]++
			right[label]--

			v, next := b.rows[order[k]][feature], b.rows[order[k+1]][feature]
			if v == next {
				continue
			}

			nl := float64(k + 1)
			nr := total - nl

			impurity := (nl*gini(left, nl) + nr*gini(right, nr)) / total
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = feature
				bestThreshold = v + (next-v)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}

	sum := 1.0
	for _, c := range counts {
		p := c / n
		sum -= p * p
	}

	return sum
}

func isPure(counts []float64) bool {
	var nonZero int

	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}

	return nonZero <= 1
}

func newLeaf(counts []float64) *treeNode {
	proba := append([]float64(nil), counts...)

	if total := floats.Sum(proba); total > 0 {
		floats.Scale(1/total, proba)
	}

	return &treeNode{proba: proba}
}
