package learn

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// GammaAuto selects gamma = 1 / n_features.
const GammaAuto = 0.0

// SVC is a soft-margin support vector classifier with an RBF kernel. More
// than two classes are handled one-vs-one with majority voting; ties go to
// the lowest class label.
type SVC struct {
	// C is the regularization strength. Must be positive.
	C float64

	// Gamma is the RBF coefficient. GammaAuto (or any value <= 0) selects
	// 1 / n_features at fit time.
	Gamma float64

	// Tol is the KKT violation tolerance.
	Tol float64

	// MaxIter bounds the number of full SMO sweeps per binary problem.
	MaxIter int

	gamma    float64
	classes  []int
	machines []binarySVM
}

type binarySVM struct {
	pos, neg int
	support  [][]float64
	coef     []float64 // alpha_i * y_i
	b        float64
}

// NewSVC returns an SVC with regularization c and the automatic gamma policy.
func NewSVC(c float64) *SVC {
	return &SVC{
		C:       c,
		Gamma:   GammaAuto,
		Tol:     1e-3,
		MaxIter: 1000,
	}
}

// Clone implements Classifier.
func (s *SVC) Clone() Classifier {
	return &SVC{C: s.C, Gamma: s.Gamma, Tol: s.Tol, MaxIter: s.MaxIter}
}

// EffectiveGamma returns the gamma used by the last Fit.
func (s *SVC) EffectiveGamma() float64 {
	return s.gamma
}

// Fit implements Classifier.
func (s *SVC) Fit(X mat.Matrix, y []int) error {
	if err := checkXY(X, y); err != nil {
		return err
	}

	if !(s.C > 0) || math.IsInf(s.C, 0) {
		return fmt.Errorf("svc: C must be positive and finite, got %v", s.C)
	}

	_, cols := X.Dims()

	s.gamma = s.Gamma
	if s.gamma <= 0 {
		s.gamma = 1 / float64(cols)
	}

	rows := rowsOf(X)
	s.classes = uniqueSorted(y)
	s.machines = s.machines[:0]

	for a := 0; a < len(s.classes); a++ {
		for b := a + 1; b < len(s.classes); b++ {
			s.machines = append(s.machines, s.fitPair(rows, y, s.classes[a], s.classes[b]))
		}
	}

	return nil
}

func (s *SVC) fitPair(rows [][]float64, y []int, pos, neg int) binarySVM {
	var (
		xs [][]float64
		ys []float64
	)

	for i, label := range y {
		switch label {
		case pos:
			xs = append(xs, rows[i])
			ys = append(ys, 1)
		case neg:
			xs = append(xs, rows[i])
			ys = append(ys, -1)
		}
	}

	alpha, b := smo(xs, ys, s.C, s.gamma, s.Tol, s.MaxIter)

	m := binarySVM{pos: pos, neg: neg, b: b}

	for i, a := range alpha {
		if a > 0 {
			m.support = append(m.support, xs[i])
			m.coef = append(m.coef, a*ys[i])
		}
	}

	return m
}

// Predict implements Classifier.
func (s *SVC) Predict(X mat.Matrix) ([]int, error) {
	if s.classes == nil {
		return nil, ErrNotFitted
	}

	rows := rowsOf(X)
	out := make([]int, len(rows))

	if len(s.classes) == 1 {
		for i := range out {
			out[i] = s.classes[0]
		}

		return out, nil
	}

	index := make(map[int]int, len(s.classes))
	for i, c := range s.classes {
		index[c] = i
	}

	votes := make([]float64, len(s.classes))

	for i, x := range rows {
		for k := range votes {
			votes[k] = 0
		}

		for _, m := range s.machines {
			if m.decision(x, s.gamma) > 0 {
				votes[index[m.pos]]++
			} else {
				votes[index[m.neg]]++
			}
		}

		out[i] = s.classes[argmax(votes)]
	}

	return out, nil
}

func (m binarySVM) decision(x []float64, gamma float64) float64 {
	sum := m.b
	for i, sv := range m.support {
		sum += m.coef[i] * rbfKernel(sv, x, gamma)
	}

	return sum
}

func rbfKernel(a, b []float64, gamma float64) float64 {
	d := floats.Distance(a, b, 2)

	return math.Exp(-gamma * d * d)
}

// smo solves the binary soft-margin dual with Platt's sequential minimal
// optimization, keeping an error cache and choosing the second multiplier by
// the largest |E_i - E_j| step. It is deterministic.
func smo(xs [][]float64, ys []float64, c, gamma, tol float64, maxIter int) ([]float64, float64) {
	const eps = 1e-3

	n := len(xs)

	kernel := make([][]float64, n)
	for i := range kernel {
		kernel[i] = make([]float64, n)
		for j := range kernel[i] {
			kernel[i][j] = rbfKernel(xs[i], xs[j], gamma)
		}
	}

	alpha := make([]float64, n)
	errs := make([]float64, n)

	for i := range errs {
		errs[i] = -ys[i]
	}

	var b float64

	step := func(i, j int) bool {
		if i == j {
			return false
		}

		ai, aj := alpha[i], alpha[j]

		var lo, hi float64
		if ys[i] != ys[j] {
			lo, hi = math.Max(0, aj-ai), math.Min(c, c+aj-ai)
		} else {
			lo, hi = math.Max(0, ai+aj-c), math.Min(c, ai+aj)
		}

		if lo >= hi {
			return false
		}

		eta := 2*kernel[i][j] - kernel[i][i] - kernel[j][j]
		if eta >= 0 {
			return false
		}

		newAj := aj - ys[j]*(errs[i]-errs[j])/eta
		newAj = math.Min(hi, math.Max(lo, newAj))

		if math.Abs(newAj-aj) < eps*(newAj+aj+eps) {
			return false
		}

		newAi := ai + ys[i]*ys[j]*(aj-newAj)

		di, dj := ys[i]*(newAi-ai), ys[j]*(newAj-aj)

		b1 := b - errs[i] - di*kernel[i][i] - dj*kernel[i][j]
		b2 := b - errs[j] - di*kernel[i][j] - dj*kernel[j][j]

		var newB float64

		switch {
		case newAi > 0 && newAi < c:
			newB = b1
		case newAj > 0 && newAj < c:
			newB = b2
		default:
			newB = (b1 + b2) / 2
		}

		for k := range errs {
			errs[k] += di*kernel[i][k] + dj*kernel[j][k] + newB - b
		}

		alpha[i], alpha[j], b = newAi, newAj, newB

		return true
	}

	passes := 0

	for iter := 0; iter < maxIter && passes < 2; iter++ {
		changed := 0

		for i := 0; i < n; i++ {
			r := ys[i] * errs[i]
			if !((r < -tol && alpha[i] < c) || (r > tol && alpha[i] > 0)) {
				continue
			}

			j, best := -1, -1.0
			for k := 0; k < n; k++ {
				if k == i {
					continue
				}

				if gap := math.Abs(errs[i] - errs[k]); gap > best {
					j, best = k, gap
				}
			}

			if j >= 0 && step(i, j) {
				changed++

				continue
			}

			// The heuristic partner made no progress: try the others in a
			// fixed rotation.
			for off := 1; off < n; off++ {
				if step(i, (i+off)%n) {
					changed++

					break
				}
			}
		}

		if changed == 0 {
			passes++
		} else {
			passes = 0
		}
	}

	return alpha, b
}

func uniqueSorted(y []int) []int {
	seen := make(map[int]struct{}, len(y))

	var out []int

	for _, v := range y {
		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	sort.Ints(out)

	return out
}
