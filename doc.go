// Package hotune provides hyperparameter optimization over conditional search
// spaces using Bayesian optimization with Gaussian Processes. It offers a
// study/trial API: an objective function receives a Trial, draws the
// parameters it needs from it, and returns a fitness value that the Study
// records in an ordered trial history.
//
// # Features
//
// The package includes the following key features:
//
//   - Define-by-run search spaces: parameters are drawn lazily from the Trial,
//     so the space can branch on earlier choices (a categorical "classifier"
//     choice deciding which hyperparameters exist at all)
//   - Categorical, real and integer parameters, optionally log-scaled
//   - Bayesian Optimization: an independent Gaussian Process surrogate per
//     parameter, fitted only on the trials that drew it
//   - Multiple Acquisition Functions: Upper Confidence Bound (UCB), Probability
//     of Improvement (PI), Expected Improvement (EI), and Thompson Sampling
//   - Parallel trials with a bounded number of workers
//   - Progress Monitoring: Real-time updates on optimization progress via channels
//   - Failed trials are recorded, not lost
//
// # Usage
//
//	study, err := hotune.CreateStudy("sklearn_simple", hotune.Maximize)
//	if err != nil {
//	    return err
//	}
//
//	objective := func(ctx context.Context, trial *hotune.Trial) (float64, error) {
//	    kind, err := trial.SuggestCategorical("classifier", []string{"SVC", "RandomForest"})
//	    if err != nil {
//	        return 0, err
//	    }
//
//	    if kind == "SVC" {
//	        c, err := trial.SuggestFloat("svc_c", 1e-10, 1e10, true)
//	        ...
//	    }
//	    ...
//	}
//
//	if err := study.Optimize(ctx, objective, 10, 1); err != nil {
//	    return err
//	}
//
// # Acquisition Functions
//
// The library provides four acquisition functions. All of them work on the
// loss scale (the objective value for Minimize studies, its negation for
// Maximize studies), so lower acquisition values are more promising.
//
// 1. Upper Confidence Bound (UCB):
//
//   - Balances exploration and exploitation
//
//   - Controlled by Beta parameter (higher = more exploration)
//
//   - Default choice, works well in most cases
//
//     config := DefaultConfig()  // Uses UCB by default
//     config.AcqParams.Beta = 2.0  // Adjust exploration-exploitation trade-off
//
// 2. Probability of Improvement (PI):
//
//   - Conservative exploration strategy
//
//     config := DefaultConfig()
//     config.AcquisitionFunc = ProbabilityOfImprovement
//     config.AcqParams.Xi = 0.01  // Minimum improvement threshold
//
// 3. Expected Improvement (EI):
//
//   - Balances improvement probability and magnitude
//
//     config := DefaultConfig()
//     config.AcquisitionFunc = ExpectedImprovement
//
// 4. Thompson Sampling:
//
//   - Random sampling from the posterior
//
//     config := DefaultConfig()
//     config.AcquisitionFunc = ThompsonSampling
//
// # Thread Safety
//
//   - Studies run trials concurrently when Optimize is given parallelism > 1
//   - Samplers serialize access to their random generator
//   - Progress channel updates never block the search
package hotune
