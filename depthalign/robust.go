package depthalign

import (
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// RobustConfig tunes the sample consensus estimators.
type RobustConfig struct {
	// MaxIterations bounds the number of minimal samples drawn.
	MaxIterations int `json:"max_iterations"`
	// Confidence is the probability of having drawn at least one all-inlier
	// sample, used to stop early once enough inliers are seen.
	Confidence float64 `json:"confidence"`
	// InlierThreshold is the largest absolute depth residual counted as an
	// inlier. Zero derives it from RelativeThreshold.
	InlierThreshold float64 `json:"inlier_threshold"`
	// RelativeThreshold scales the median true depth into an inlier threshold.
	RelativeThreshold float64 `json:"relative_threshold"`
	// Seed makes sampling reproducible.
	Seed int64 `json:"seed"`
}

// Defaults for RobustConfig.
const (
	DefaultMaxIterations     = 1000
	DefaultConfidence        = 0.999
	DefaultRelativeThreshold = 0.05
)

// DefaultRobustConfig returns the default sample consensus settings.
func DefaultRobustConfig() RobustConfig {
	return RobustConfig{
		MaxIterations:     DefaultMaxIterations,
		Confidence:        DefaultConfidence,
		RelativeThreshold: DefaultRelativeThreshold,
	}
}

// Validate ensures the config values make sense.
func (cfg *RobustConfig) Validate(path string) error {
	if cfg.MaxIterations < 0 {
		return errors.Errorf("%s: max_iterations must be non-negative, got %d", path, cfg.MaxIterations)
	}
	if cfg.Confidence < 0 || cfg.Confidence >= 1 {
		return errors.Errorf("%s: confidence must be in [0, 1), got %v", path, cfg.Confidence)
	}
	if cfg.InlierThreshold < 0 {
		return errors.Errorf("%s: inlier_threshold must be non-negative, got %v", path, cfg.InlierThreshold)
	}
	if cfg.RelativeThreshold < 0 {
		return errors.Errorf("%s: relative_threshold must be non-negative, got %v", path, cfg.RelativeThreshold)
	}
	return nil
}

// withDefaults fills zero values.
func (cfg RobustConfig) withDefaults() RobustConfig {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Confidence == 0 {
		cfg.Confidence = DefaultConfidence
	}
	if cfg.RelativeThreshold == 0 {
		cfg.RelativeThreshold = DefaultRelativeThreshold
	}
	return cfg
}

// costFunc scores a model's residuals; lower is better.
type costFunc func(residuals []float64, threshold float64) float64

// inlierCost is the RANSAC score: the negated inlier count.
func inlierCost(residuals []float64, threshold float64) float64 {
	inliers := 0
	for _, r := range residuals {
		if r < threshold {
			inliers++
		}
	}
	return -float64(inliers)
}

// truncatedQuadraticCost is the MSAC score: squared residuals capped at threshold².
func truncatedQuadraticCost(residuals []float64, threshold float64) float64 {
	capped := threshold * threshold
	var cost float64
	for _, r := range residuals {
		cost += math.Min(r*r, capped)
	}
	return cost
}

// SampleConsensus fits depth alignments by repeated two-point sampling,
// keeping the model with the lowest cost and refitting it on its inliers.
type SampleConsensus struct {
	cfg  RobustConfig
	cost costFunc
}

// NewRANSAC returns an estimator that maximizes the inlier count.
func NewRANSAC(cfg RobustConfig) *SampleConsensus {
	return &SampleConsensus{cfg: cfg.withDefaults(), cost: inlierCost}
}

// NewMSAC returns an estimator that minimizes the truncated quadratic residual.
func NewMSAC(cfg RobustConfig) *SampleConsensus {
	return &SampleConsensus{cfg: cfg.withDefaults(), cost: truncatedQuadraticCost}
}

// Threshold returns the inlier threshold used for the given true depths.
func (sc *SampleConsensus) Threshold(truth []float64) (float64, error) {
	if sc.cfg.InlierThreshold > 0 {
		return sc.cfg.InlierThreshold, nil
	}
	abs := make(stats.Float64Data, len(truth))
	for i, t := range truth {
		abs[i] = math.Abs(t)
	}
	median, err := abs.Median()
	if err != nil {
		return 0, errors.Wrap(err, "cannot derive inlier threshold")
	}
	threshold := sc.cfg.RelativeThreshold * median
	if threshold <= 0 {
		return 0, errors.Wrap(ErrDegenerateSamples, "true depths have a zero median")
	}
	return threshold, nil
}

// EstimateAlignment implements Estimator.
func (sc *SampleConsensus) EstimateAlignment(predicted, truth []float64) (Params, error) {
	p, t, err := finiteSamples(predicted, truth)
	if err != nil {
		return Params{}, err
	}
	threshold, err := sc.Threshold(t)
	if err != nil {
		return Params{}, err
	}

	n := len(p)
	r := rand.New(rand.NewSource(sc.cfg.Seed)) //nolint:gosec
	residuals := make([]float64, n)

	var best Params
	bestCost := math.Inf(1)
	found := false
	limit := sc.cfg.MaxIterations
	for iter := 0; iter < limit; iter++ {
		i := r.Intn(n)
		j := r.Intn(n - 1)
		if j >= i {
			j++
		}
		if p[i] == p[j] {
			continue
		}
		scale := (t[j] - t[i]) / (p[j] - p[i])
		candidate := Params{Scale: scale, Shift: t[i] - scale*p[i]}
		if !candidate.valid() {
			continue
		}

		for k := range p {
			residuals[k] = candidate.Residual(p[k], t[k])
		}
		cost := sc.cost(residuals, threshold)
		if cost >= bestCost {
			continue
		}
		best, bestCost, found = candidate, cost, true

		// nIter = log(1-p)/log(1-w^s) with s = 2 samples per model
		w := float64(countInliers(residuals, threshold)) / float64(n)
		if needed := iterationsNeeded(sc.cfg.Confidence, w); needed < limit {
			limit = needed
		}
	}
	if !found {
		return Params{}, ErrNoConsensus
	}

	inP, inT := inliersOf(best, p, t, threshold)
	refit, err := fitLine(inP, inT)
	if err != nil || !refit.valid() {
		return best, nil //nolint:nilerr
	}
	return refit, nil
}

func countInliers(residuals []float64, threshold float64) int {
	return int(-inlierCost(residuals, threshold))
}

func iterationsNeeded(confidence, inlierRatio float64) int {
	good := inlierRatio * inlierRatio
	if good >= 1 {
		return 1
	}
	if good <= 0 {
		return math.MaxInt32
	}
	needed := math.Ceil(math.Log(1-confidence) / math.Log(1-good))
	if needed > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(needed)
}

func inliersOf(params Params, p, t []float64, threshold float64) ([]float64, []float64) {
	var inP, inT []float64
	for k := range p {
		if params.Residual(p[k], t[k]) < threshold {
			inP = append(inP, p[k])
			inT = append(inT, t[k])
		}
	}
	return inP, inT
}
