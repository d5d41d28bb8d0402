package depthcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/depthalign"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

// AlignDepth estimates the scale and shift that map depth onto the camera
// depths of the SfM points visible in the image. Predicted depths are read at
// the exact reprojected pixels.
func AlignDepth(
	cam *transform.Camera,
	sfmPoints []r3.Vector,
	depth *rimage.DepthMap,
	mask *rimage.Mask,
	estimator depthalign.Estimator,
	logger logging.Logger,
) (depthalign.Params, error) {
	if estimator == nil {
		return depthalign.Params{}, errors.New("no alignment estimator")
	}
	if err := checkMask(depth, mask); err != nil {
		return depthalign.Params{}, err
	}
	pixels, depths := transform.Project(cam.ProjectionMatrix(), sfmPoints)
	samples, err := ValidateSparsePoints(pixels, depths, mask, logger)
	if err != nil {
		return depthalign.Params{}, err
	}

	predicted := make([]float64, samples.Len())
	for i, px := range samples.Pixels {
		predicted[i] = depth.Get(px)
	}
	params, err := estimator.EstimateAlignment(predicted, samples.Depths)
	if err != nil {
		return depthalign.Params{}, errors.Wrapf(err, "aligning depth with %d samples", samples.Len())
	}
	return params, nil
}
