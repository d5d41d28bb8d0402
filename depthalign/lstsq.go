package depthalign

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// LeastSquaresAlignment fits scale and shift by ordinary least squares over
// every finite correspondence.
func LeastSquaresAlignment(predicted, truth []float64) (Params, error) {
	p, t, err := finiteSamples(predicted, truth)
	if err != nil {
		return Params{}, err
	}
	return fitLine(p, t)
}

func fitLine(p, t []float64) (Params, error) {
	if len(p) < 2 {
		return Params{}, errors.Wrapf(ErrDegenerateSamples, "need at least 2 samples, have %d", len(p))
	}
	if stat.Variance(p, nil) == 0 {
		return Params{}, errors.Wrap(ErrDegenerateSamples, "predicted depths are all equal")
	}
	alpha, beta := stat.LinearRegression(p, t, nil, false)
	params := Params{Scale: beta, Shift: alpha}
	if !isFinite(params.Scale) || !isFinite(params.Shift) {
		return Params{}, errors.Wrapf(ErrDegenerateSamples, "least squares produced %v", params)
	}
	return params, nil
}
