package hotune

import (
	"fmt"
	"sync"
)

// Trial is the suggestion context handed to an ObjectiveFunc for one
// evaluation. Parameters are drawn lazily: only the names the objective
// actually asks for end up in the trial's configuration.
//
// Thread safety:
// - Safe for concurrent use, although an objective normally uses a trial
// from a single goroutine.
type Trial struct {
	number int
	study  *Study

	mu     sync.Mutex
	params []Param
	dists  map[string]Distribution
}

// Number returns the ordinal index of the trial inside its study.
func (t *Trial) Number() int {
	return t.number
}

// Params returns the parameters drawn so far, in draw order.
func (t *Trial) Params() []Param {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Param(nil), t.params...)
}

// SuggestCategorical draws one of choices for name.
//
// Usage example:
//
//	kind, err := trial.SuggestCategorical("classifier", []string{"SVC", "RandomForest"})
func (t *Trial) SuggestCategorical(name string, choices []string) (string, error) {
	v, err := t.suggest(name, CategoricalDistribution{Choices: append([]string(nil), choices...)})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// SuggestFloat draws a real value in [low, high] for name. With log set, the
// value is drawn with logarithmic density and low must be positive.
//
// Usage example:
//
//	c, err := trial.SuggestFloat("svc_c", 1e-10, 1e10, true)
func (t *Trial) SuggestFloat(name string, low, high float64, log bool) (float64, error) {
	v, err := t.suggest(name, FloatDistribution{ParameterRange[float64]{Min: low, Max: high, Log: log}})
	if err != nil {
		return 0, err
	}

	return v.(float64), nil
}

// SuggestInt draws an integer in [low, high] for name. With log set, the
// value is drawn with logarithmic density and low must be positive.
//
// Usage example:
//
//	depth, err := trial.SuggestInt("rf_max_depth", 2, 32, true)
func (t *Trial) SuggestInt(name string, low, high int64, log bool) (int64, error) {
	v, err := t.suggest(name, IntDistribution{ParameterRange[int64]{Min: low, Max: high, Log: log}})
	if err != nil {
		return 0, err
	}

	return v.(int64), nil
}

// suggest returns the cached value of name or draws a new one from the
// study's sampler. A name is drawn at most once per trial.
func (t *Trial) suggest(name string, dist Distribution) (any, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty parameter name", ErrInvalidDistribution)
	}

	if err := dist.validate(); err != nil {
		return nil, fmt.Errorf("parameter %q: %w", name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.dists[name]; ok {
		if !prev.equal(dist) {
			return nil, fmt.Errorf("%w: parameter %q was already drawn from another domain", ErrIncompatibleDistribution, name)
		}

		for _, p := range t.params {
			if p.Name == name {
				return p.Value, nil
			}
		}
	}

	v, err := t.study.sample(name, dist)
	if err != nil {
		return nil, fmt.Errorf("sample %q: %w", name, err)
	}

	if !dist.Contains(v) {
		return nil, fmt.Errorf("sample %q: sampler returned %v outside its domain", name, v)
	}

	t.params = append(t.params, Param{Name: name, Value: v})
	t.dists[name] = dist

	return v, nil
}

// snapshot copies the drawn configuration.
func (t *Trial) snapshot() ([]Param, map[string]Distribution) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dists := make(map[string]Distribution, len(t.dists))
	for k, v := range t.dists {
		dists[k] = v
	}

	return append([]Param(nil), t.params...), dists
}
