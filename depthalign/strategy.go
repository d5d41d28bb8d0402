package depthalign

import (
	"sort"

	"github.com/pkg/errors"
)

// Estimator fits truth ≈ Scale*predicted + Shift. Implementations differ only
// in how they treat outlier correspondences.
type Estimator interface {
	EstimateAlignment(predicted, truth []float64) (Params, error)
}

// EstimatorFunc adapts a function to the Estimator interface.
type EstimatorFunc func(predicted, truth []float64) (Params, error)

// EstimateAlignment calls f.
func (f EstimatorFunc) EstimateAlignment(predicted, truth []float64) (Params, error) {
	return f(predicted, truth)
}

// Strategy names an alignment algorithm.
type Strategy string

// The registered strategies.
const (
	LeastSquares Strategy = "lstsqrs"
	RANSAC       Strategy = "ransac"
	MSAC         Strategy = "msac"
)

var implementations = map[Strategy]func(RobustConfig) Estimator{
	LeastSquares: func(RobustConfig) Estimator { return EstimatorFunc(LeastSquaresAlignment) },
	RANSAC:       func(cfg RobustConfig) Estimator { return NewRANSAC(cfg) },
	MSAC:         func(cfg RobustConfig) Estimator { return NewMSAC(cfg) },
}

// Strategies returns every registered strategy in name order.
func Strategies() []Strategy {
	out := make([]Strategy, 0, len(implementations))
	for s := range implementations {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseStrategy returns the strategy with the given name.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if _, ok := implementations[s]; !ok {
		return "", errors.Wrapf(ErrUnknownStrategy, "%q", name)
	}
	return s, nil
}

// Implementation returns the estimator for s. cfg only affects the robust strategies.
func (s Strategy) Implementation(cfg RobustConfig) (Estimator, error) {
	ctor, ok := implementations[s]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownStrategy, "%q", string(s))
	}
	return ctor(cfg), nil
}
