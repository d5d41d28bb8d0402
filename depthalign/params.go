// Package depthalign estimates the scale and shift that map monocular depth
// predictions onto metric depths from sparse, trusted correspondences.
package depthalign

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrDegenerateSamples is returned when the correspondences cannot determine a scale and shift.
	ErrDegenerateSamples = errors.New("degenerate depth samples for alignment")
	// ErrNoConsensus is returned when a robust estimator finds no model with inliers.
	ErrNoConsensus = errors.New("no depth alignment model reached consensus")
	// ErrUnknownStrategy is returned when looking up a strategy that is not registered.
	ErrUnknownStrategy = errors.New("unknown depth alignment strategy")
)

// Params is an affine depth correction: aligned = Scale*predicted + Shift.
type Params struct {
	Scale float64 `json:"scale"`
	Shift float64 `json:"shift"`
}

// Identity leaves depths untouched.
var Identity = Params{Scale: 1}

// Apply returns the aligned depth for a predicted depth d.
func (p Params) Apply(d float64) float64 {
	return p.Scale*d + p.Shift
}

// Residual returns |truth - Apply(predicted)|.
func (p Params) Residual(predicted, truth float64) float64 {
	return math.Abs(truth - p.Apply(predicted))
}

func (p Params) String() string {
	return fmt.Sprintf("scale=%g shift=%g", p.Scale, p.Shift)
}

func (p Params) valid() bool {
	return p.Scale > 0 && !math.IsInf(p.Scale, 0) && !math.IsNaN(p.Scale) &&
		!math.IsInf(p.Shift, 0) && !math.IsNaN(p.Shift)
}

// finiteSamples checks the inputs line up and drops pairs with a non-finite value.
func finiteSamples(predicted, truth []float64) ([]float64, []float64, error) {
	if len(predicted) != len(truth) {
		return nil, nil, errors.Errorf("got %d predicted depths but %d true depths", len(predicted), len(truth))
	}
	p := make([]float64, 0, len(predicted))
	t := make([]float64, 0, len(truth))
	for i := range predicted {
		if !isFinite(predicted[i]) || !isFinite(truth[i]) {
			continue
		}
		p = append(p, predicted[i])
		t = append(t, truth[i])
	}
	if len(p) < 2 {
		return nil, nil, errors.Wrapf(ErrDegenerateSamples, "need at least 2 finite samples, have %d", len(p))
	}
	return p, t, nil
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
