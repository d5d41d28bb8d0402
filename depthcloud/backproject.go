package depthcloud

import (
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/depthalign"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
	"go.viam.com/depthcloud/subsampling"
)

// BackProjection is the outcome of lifting the selected pixels of an aligned
// depth map into world space.
type BackProjection struct {
	// Points are the selected pixels that the predictor marked valid.
	Points []r3.Vector
	// Excluded are the selected pixels that the predictor marked invalid.
	Excluded []r3.Vector
	// SubsamplingMask is the row-major pixel selection, one entry per pixel.
	SubsamplingMask []bool
	// ValidityMask is the predictor mask restricted to the selected pixels.
	ValidityMask []bool
	// Pixels are the image coordinates of Points, in the same order.
	Pixels []image.Point
	// ExcludedPixels are the image coordinates of Excluded, in the same order.
	ExcludedPixels []image.Point
}

// BackProject applies params to depth, asks subsampler which pixels to keep and
// unprojects each kept pixel centre through cam.
func BackProject(
	cam *transform.Camera,
	img image.Image,
	depth *rimage.DepthMap,
	mask *rimage.Mask,
	params depthalign.Params,
	subsampler subsampling.DepthSubsampler,
) (*BackProjection, error) {
	if err := checkMask(depth, mask); err != nil {
		return nil, err
	}
	aligned := depth.Affine(params.Scale, params.Shift)
	width, height := aligned.Width(), aligned.Height()

	selection, err := subsampler.Mask(img, aligned, mask)
	if err != nil {
		return nil, errors.Wrap(err, "subsampling aligned depth")
	}
	if len(selection) != width*height {
		return nil, errors.Errorf("subsampling mask has %d entries, expected %d", len(selection), width*height)
	}

	valid := mask.Flat()
	alignedFlat := aligned.Flat()
	out := &BackProjection{SubsamplingMask: selection}
	for i, selected := range selection {
		if !selected {
			continue
		}
		u, v := i%width, i/width
		world := cam.Unproject(transform.PixelCenter(u, v, alignedFlat[i]))
		out.ValidityMask = append(out.ValidityMask, valid[i])
		if valid[i] {
			out.Points = append(out.Points, world)
			out.Pixels = append(out.Pixels, image.Point{u, v})
		} else {
			out.Excluded = append(out.Excluded, world)
			out.ExcludedPixels = append(out.ExcludedPixels, image.Point{u, v})
		}
	}
	return out, nil
}

// checkMask reports a missing depth map or a mask that does not cover it.
func checkMask(depth *rimage.DepthMap, mask *rimage.Mask) error {
	switch {
	case depth == nil:
		return errors.New("no depth map")
	case mask == nil:
		return errors.New("no validity mask")
	case mask.Width() != depth.Width() || mask.Height() != depth.Height():
		return errors.Errorf("validity mask is %dx%d but depth map is %dx%d",
			mask.Width(), mask.Height(), depth.Width(), depth.Height())
	}
	return nil
}
