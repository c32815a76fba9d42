package hotune

import "math"

//////
// Available acquisition functions for Bayesian optimization.
// Each function helps decide which points to evaluate next by balancing
// exploration (trying new areas) and exploitation (focusing on known good areas).
// All of them work on the loss scale: lower is better, whatever the study
// direction.
//////

// minVariance keeps PI and EI finite at already-observed points.
const minVariance = 1e-12

// UCB implements the Upper Confidence Bound acquisition function.
//
// How it works:
// - Combines the predicted loss with the uncertainty (variance)
// - Lower values are better
// - The Beta parameter controls the trade-off between exploration and exploitation
//
// Parameters:
// - mean: Predicted loss at this point
// - variance: Uncertainty in the prediction
// - params.Beta: Exploration weight (higher = more exploration)
//
// Example:
//
//	params := AcquisitionParams{
//	    Beta: 2.0,  // Balance between exploration and exploitation
//	}
//	value := UCB(0.5, 0.2, params)  // Evaluate a point with mean=0.5, variance=0.2
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean - params.Beta*math.Sqrt(math.Max(variance, 0))
}

// ProbabilityOfImprovement (PI) scores a point by the probability that it
// improves on the current best observed loss by at least Xi. The result is
// negated so that, like every acquisition function here, lower is better.
//
// Parameters:
// - mean: Predicted loss at this point
// - variance: Uncertainty in the prediction
// - params.BestSoFar: Best loss observed so far
// - params.Xi: Minimum improvement desired
//
// Example:
//
//	params := AcquisitionParams{
//	    BestSoFar: -1.2,
//	    Xi: 0.01,
//	}
//	score := ProbabilityOfImprovement(-0.9, 0.2, params)
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(math.Max(variance, minVariance))

	z := (params.BestSoFar - params.Xi - mean) / sigma

	return -normalCDF(z)
}

// ExpectedImprovement (EI) calculates the expected value of the improvement
// over the current best loss, negated so that lower is better.
//
// How it works:
// - Combines the probability of improvement with the magnitude of improvement
// - Balances how likely and how large the improvement might be
//
// Parameters:
// - mean: Predicted loss at this point
// - variance: Uncertainty in the prediction
// - params.BestSoFar: Best loss observed so far
// - params.Xi: Minimum improvement desired
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(math.Max(variance, minVariance))

	improvement := params.BestSoFar - params.Xi - mean
	z := improvement / sigma

	return -(improvement*normalCDF(z) + sigma*normalPDF(z))
}

// ThompsonSampling implements Thompson Sampling acquisition by drawing random
// samples from the posterior distribution.
//
// Parameters:
// - mean: Predicted loss at this point
// - variance: Uncertainty in the prediction
// - params.RandomState: Random number generator (required!)
//
// Warning:
// - Don't share RandomState between different optimization runs.
func ThompsonSampling(mean, variance float64, params AcquisitionParams) float64 {
	return mean + math.Sqrt(math.Max(variance, 0))*params.RandomState.NormFloat64()
}

// AcquisitionByName resolves "ucb", "pi", "ei" or "thompson".
func AcquisitionByName(name string) (AcquisitionFunc, bool) {
	switch name {
	case "ucb", "":
		return UCB, true
	case "pi":
		return ProbabilityOfImprovement, true
	case "ei":
		return ExpectedImprovement, true
	case "thompson":
		return ThompsonSampling, true
	default:
		return nil, false
	}
}
