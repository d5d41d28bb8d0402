package depthcloud

import (
	"image"

	"github.com/pkg/errors"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/rimage"
)

// SparseSamples are the reprojected SfM points that can be used for alignment.
// Pixels[i] and Depths[i] describe the same point.
type SparseSamples struct {
	Pixels []image.Point
	Depths []float64
}

// Len returns the number of samples.
func (s SparseSamples) Len() int {
	return len(s.Pixels)
}

// ValidateSparsePoints keeps the reprojected points that land inside the image
// in front of the camera on a valid pixel. The image bounds are those of mask.
// It fails with a *LowDepthAlignmentConfidenceError when fewer than a quarter of
// the points land in the image in front of the camera.
func ValidateSparsePoints(
	pixels []image.Point,
	depths []float64,
	mask *rimage.Mask,
	logger logging.Logger,
) (SparseSamples, error) {
	if len(pixels) != len(depths) {
		return SparseSamples{}, errors.Errorf("got %d pixels but %d depths", len(pixels), len(depths))
	}
	if mask == nil {
		return SparseSamples{}, errors.New("validity mask is required")
	}
	width, height := mask.Width(), mask.Height()

	retained := make([]int, 0, len(pixels))
	for i, px := range pixels {
		if px.X < 0 || px.X >= width || px.Y < 0 || px.Y >= height {
			continue
		}
		if !(depths[i] >= 0) {
			continue
		}
		retained = append(retained, i)
	}

	total := len(pixels)
	if logger != nil {
		logger.Debugw("reprojected SfM points", "invalid", total-len(retained), "total", total)
	}
	if 4*len(retained) < total {
		return SparseSamples{}, NewLowDepthAlignmentConfidenceError(len(retained), total)
	}

	out := SparseSamples{
		Pixels: make([]image.Point, 0, len(retained)),
		Depths: make([]float64, 0, len(retained)),
	}
	for _, i := range retained {
		px := pixels[i]
		if !mask.At(px.X, px.Y) {
			continue
		}
		out.Pixels = append(out.Pixels, px)
		out.Depths = append(out.Depths, depths[i])
	}
	return out, nil
}
