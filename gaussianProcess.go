package hotune

import (
	"math"
)

//////
// Const, vars, types.
//////

// gaussianProcess is a kernel regression surrogate with multidimensional
// inputs. It predicts the loss of untested parameter values
// from previously observed trials.
//
// A model is built and queried inside a single GPSampler.Sample call, so it
// is not safe for concurrent use.
//
// Fields:
// - X: Slice of observed input points (unit-interval coordinates)
// - Y: Slice of observed (standardized) losses at each input point
// - sigma: Kernel width parameter controlling the smoothness of interpolation
//
// Memory usage:
// - Grows linearly with number of observations
// - Each observation stores a copy of input parameters.
type gaussianProcess struct {
	// X stores the input points. Length of inner slices must be consistent.
	X [][]float64

	// Y stores the observed values at each point in X. Must have same length
	// as X.
	Y []float64

	// sigma is the kernel width parameter
	// Larger values = smoother interpolation
	// Smaller values = more local influence
	sigma float64
}

//////
// Methods.
//////

// rbf implements the Radial Basis Function (also known as Gaussian) kernel.
//
// Mathematical formula:
//
//	k(x1, x2) = exp(-sum((x1 - x2)^2) / (2 * sigma^2))
//
// Important notes:
// - Returns 1.0 for identical points
// - Returns values close to 0.0 for distant points
func rbf(x1, x2 []float64, sigma float64) float64 {
	var sum float64

	for i := range x1 {
		diff := x1[i] - x2[i]

		sum += diff * diff
	}

	return math.Exp(-sum / (2 * sigma * sigma))
}

// Predict estimates the expected loss and uncertainty at a given point based
// on previously observed data points.
//
// Mathematical details:
//   - Mean is the kernel-weighted average of observed values, shrunk towards
//     the zero prior where no observation is close
//   - Variance is 1 minus the squared similarity to the closest observation,
//     so it is 0 on observed points and 1 far away from all of them
//   - Returns (0, 1) if no observations exist
func (gp *gaussianProcess) Predict(x []float64) (mean, variance float64) {
	if len(gp.X) == 0 {
		return 0, 1
	}

	var (
		weighted float64
		total    float64
		closest  float64
	)

	for i := range gp.X {
		if len(gp.X[i]) != len(x) {
			panic("input vectors must have the same length")
		}

		k := rbf(x, gp.X[i], gp.sigma)

		weighted += k * gp.Y[i]
		total += k

		if k > closest {
			closest = k
		}
	}

	// The prior contributes a unit of weight at mean zero.
	mean = weighted / (total + 1)

	variance = 1 - closest*closest

	return mean, variance
}

// Update adds a new observation point to the model.
//
// Important notes:
// - Creates a deep copy of input slice x to prevent external modifications
// - Memory usage grows with each update
func (gp *gaussianProcess) Update(x []float64, y float64) {
	newX := make([]float64, len(x))
	copy(newX, x)

	gp.X = append(gp.X, newX)
	gp.Y = append(gp.Y, y)
}

// SetSigma updates the kernel width parameter. Non-positive values are
// ignored.
func (gp *gaussianProcess) SetSigma(sigma float64) {
	if sigma <= 0 {
		return
	}

	gp.sigma = sigma
}

//////
// Factory.
//////

// newGaussianProcess creates a model with sigma = 1.0 and no observations.
func newGaussianProcess() *gaussianProcess {
	return &gaussianProcess{
		sigma: 1.0, // Default kernel width
	}
}
