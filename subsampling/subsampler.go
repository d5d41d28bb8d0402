// Package subsampling decides which pixels of an aligned depth map are turned
// into points.
package subsampling

import (
	"image"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/rimage"
)

// DepthSubsampler returns a row-major selection mask of length width*height
// over the pixels of alignedDepth. True keeps the pixel.
type DepthSubsampler interface {
	Mask(img image.Image, alignedDepth *rimage.DepthMap, valid *rimage.Mask) ([]bool, error)
}

// Full keeps every pixel.
type Full struct{}

// Mask implements DepthSubsampler.
func (Full) Mask(_ image.Image, alignedDepth *rimage.DepthMap, _ *rimage.Mask) ([]bool, error) {
	out := make([]bool, alignedDepth.Width()*alignedDepth.Height())
	for i := range out {
		out[i] = true
	}
	return out, nil
}

// Uniform keeps one pixel out of every Factor x Factor block, the one at the
// block's top-left corner.
type Uniform struct {
	Factor int
}

// Mask implements DepthSubsampler.
func (u Uniform) Mask(_ image.Image, alignedDepth *rimage.DepthMap, _ *rimage.Mask) ([]bool, error) {
	if u.Factor < 1 {
		return nil, errors.Errorf("uniform subsampling factor must be at least 1, got %d", u.Factor)
	}
	w, h := alignedDepth.Width(), alignedDepth.Height()
	out := make([]bool, w*h)
	for v := 0; v < h; v += u.Factor {
		for x := 0; x < w; x += u.Factor {
			out[v*w+x] = true
		}
	}
	return out, nil
}

// Adaptive keeps valid pixels at random with probability (z/median(z))² / Factor²,
// capped at one, so farther surfaces, which cover fewer pixels per unit area,
// are sampled more densely. Sampling is seeded and therefore reproducible.
type Adaptive struct {
	Factor float64
	Seed   int64
}

// Mask implements DepthSubsampler.
func (a Adaptive) Mask(_ image.Image, alignedDepth *rimage.DepthMap, valid *rimage.Mask) ([]bool, error) {
	if a.Factor < 1 {
		return nil, errors.Errorf("adaptive subsampling factor must be at least 1, got %v", a.Factor)
	}
	depths := alignedDepth.Flat()
	usable := func(i int) bool {
		z := depths[i]
		return (valid == nil || valid.Flat()[i]) && z > 0 && !math.IsInf(z, 0) && !math.IsNaN(z)
	}

	var data stats.Float64Data
	for i := range depths {
		if usable(i) {
			data = append(data, depths[i])
		}
	}
	out := make([]bool, len(depths))
	if len(data) == 0 {
		return out, nil
	}
	median, err := data.Median()
	if err != nil {
		return nil, err
	}

	r := rand.New(rand.NewSource(a.Seed)) //nolint:gosec
	norm := 1 / (a.Factor * a.Factor)
	for i, z := range depths {
		if !usable(i) {
			continue
		}
		ratio := z / median
		out[i] = r.Float64() < math.Min(1, ratio*ratio*norm)
	}
	return out, nil
}
