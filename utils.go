package hotune

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"
)

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
//
// Returns:
// - Value of the standard normal PDF at x.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

func clamp01(x float64) float64 {
	return clampTo(x, 0, 1)
}

func clampTo(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}

	if x > hi {
		return hi
	}

	return x
}

// newRand returns a generator seeded with seed, or with the current time
// when seed is zero.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return rand.New(rand.NewSource(seed))
}

// standardize rescales ys to zero mean and unit variance. A constant series
// maps to all zeros.
//
// Important notes:
// - Creates a new slice; doesn't modify the input
// - The surrogate's prior mean is zero, so unexplored points are predicted
// to be "average" rather than "perfect" or "terrible".
func standardize(ys []float64) []float64 {
	out := make([]float64, len(ys))
	if len(ys) == 0 {
		return out
	}

	mean, std := stat.PopMeanStdDev(ys, nil)
	if std == 0 || math.IsNaN(std) {
		return out
	}

	for i, y := range ys {
		out[i] = (y - mean) / std
	}

	return out
}
