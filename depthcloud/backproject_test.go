package depthcloud

import (
	"image"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/depthcloud/depthalign"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

type fixedSubsampler []bool

func (f fixedSubsampler) Mask(image.Image, *rimage.DepthMap, *rimage.Mask) ([]bool, error) {
	return f, nil
}

func TestBackProject(t *testing.T) {
	cam, err := transform.NewCamera(eye(3), eye(4))
	test.That(t, err, test.ShouldBeNil)
	depth, err := rimage.NewDepthMapFromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	test.That(t, err, test.ShouldBeNil)
	mask := rimage.NewMask(3, 2, true)
	mask.Set(0, 1, false)

	params := depthalign.Params{Scale: 2, Shift: -1}
	bp, err := BackProject(cam, nil, depth, mask, params, fixedSubsampler{false, true, false, true, false, true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bp.ValidityMask, test.ShouldResemble, []bool{true, false, true})
	test.That(t, bp.Pixels, test.ShouldResemble, []image.Point{{1, 0}, {2, 1}})
	// aligned depths are 3 at (1,0), 7 at (0,1) and 11 at (2,1)
	vectorsAlmostEqual(t, bp.Points, []r3.Vector{
		{X: 1.5 * 3, Y: 0.5 * 3, Z: 3},
		{X: 2.5 * 11, Y: 1.5 * 11, Z: 11},
	}, 1e-12)
	vectorsAlmostEqual(t, bp.Excluded, []r3.Vector{{X: 0.5 * 7, Y: 1.5 * 7, Z: 7}}, 1e-12)
	test.That(t, bp.ExcludedPixels, test.ShouldResemble, []image.Point{{0, 1}})

	_, err = BackProject(cam, nil, depth, mask, params, fixedSubsampler{true})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 6")

	all := fixedSubsampler{true, true, true, true, true, true}
	_, err = BackProject(cam, nil, depth, nil, params, all)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no validity mask")
	_, err = BackProject(cam, nil, depth, rimage.NewMask(2, 3, true), params, all)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "validity mask is 2x3 but depth map is 3x2")
}

func TestAlignDepthSamplesExactPixels(t *testing.T) {
	cam, err := transform.NewCamera(eye(3), eye(4))
	test.That(t, err, test.ShouldBeNil)
	depth, err := rimage.NewDepthMapFromRows([][]float64{{1, 2}, {3, 4}})
	test.That(t, err, test.ShouldBeNil)
	mask := rimage.NewMask(2, 2, true)

	// (1.4*z, 0.6*z, z) rounds to pixel (1, 1)
	pts := []r3.Vector{{X: 0, Y: 0, Z: 5}, {X: 1.4 * 2, Y: 0.6 * 2, Z: 2}}
	var gotPredicted, gotTruth []float64
	record := depthalign.EstimatorFunc(func(predicted, truth []float64) (depthalign.Params, error) {
		gotPredicted, gotTruth = predicted, truth
		return depthalign.Identity, nil
	})
	params, err := AlignDepth(cam, pts, depth, mask, record, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params, test.ShouldResemble, depthalign.Identity)
	test.That(t, gotPredicted, test.ShouldResemble, []float64{1, 4})
	test.That(t, gotTruth, test.ShouldResemble, []float64{5, 2})

	_, err = AlignDepth(cam, pts, depth, mask, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = AlignDepth(cam, pts, depth, nil, record, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = AlignDepth(cam, pts, depth, rimage.NewMask(3, 3, true), record, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "validity mask is 3x3")
}
