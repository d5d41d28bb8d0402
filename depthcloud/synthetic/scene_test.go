package synthetic

import (
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/depthcloud/depthalign"
	"go.viam.com/depthcloud/rimage/transform"
)

func TestNewSceneDefaults(t *testing.T) {
	scene, err := NewScene(Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scene.TrueDepth.Width(), test.ShouldEqual, 64)
	test.That(t, scene.TrueDepth.Height(), test.ShouldEqual, 48)
	test.That(t, scene.Depth.Mask.Count(), test.ShouldEqual, 64*48)
	test.That(t, scene.Alignment, test.ShouldResemble, depthalign.Params{Scale: 2, Shift: 0.5})
	test.That(t, scene.Outliers, test.ShouldBeEmpty)

	pred := scene.Depth.Depth.Flat()
	for i, z := range scene.TrueDepth.Flat() {
		test.That(t, scene.Alignment.Apply(pred[i]), test.ShouldAlmostEqual, z, 1e-12)
	}
	test.That(t, scene.DepthRMSE(scene.Alignment), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, len(scene.Points()), test.ShouldEqual, 64*48)
}

func TestSceneReprojection(t *testing.T) {
	scene, err := NewScene(Options{NumPoints: 50, Seed: 3})
	test.That(t, err, test.ShouldBeNil)

	pts, err := scene.Reconstruction.ImagePoints(ImageName)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(pts), test.ShouldEqual, 50)

	pixels, depths := transform.Project(scene.Camera.ProjectionMatrix(), pts)
	for i, px := range pixels {
		test.That(t, scene.TrueDepth.Contains(px.X, px.Y), test.ShouldBeTrue)
		test.That(t, depths[i], test.ShouldAlmostEqual, scene.TrueDepth.Get(px), 1e-9)
	}
}

func TestSceneOutliersAndNoise(t *testing.T) {
	opts := Options{NumPoints: 40, OutlierFraction: 0.25, NoiseFraction: 0.05, InvalidBorder: 2, Seed: 11}
	scene, err := NewScene(opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(scene.Outliers), test.ShouldEqual, 10)
	test.That(t, scene.Depth.Mask.Count(), test.ShouldEqual, 60*44)

	pts, err := scene.Reconstruction.ImagePoints(ImageName)
	test.That(t, err, test.ShouldBeNil)
	pixels, depths := transform.Project(scene.Camera.ProjectionMatrix(), pts)
	for _, i := range scene.Outliers {
		test.That(t, depths[i], test.ShouldBeGreaterThan, 1.4*scene.TrueDepth.Get(pixels[i]))
	}

	rmse := scene.DepthRMSE(scene.Alignment)
	test.That(t, rmse, test.ShouldBeGreaterThan, 0)
	test.That(t, math.IsNaN(rmse), test.ShouldBeFalse)

	again, err := NewScene(opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.Depth.Depth.Flat(), test.ShouldResemble, scene.Depth.Depth.Flat())
	test.That(t, again.Reconstruction.Points, test.ShouldResemble, scene.Reconstruction.Points)
}

func TestSceneInvalidOptions(t *testing.T) {
	_, err := NewScene(Options{Alignment: depthalign.Params{Scale: -1}})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewScene(Options{OutlierFraction: 2})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewScene(Options{Width: 4, Height: 4, InvalidBorder: 2})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthResiduals(t *testing.T) {
	scene, err := NewScene(Options{Width: 8, Height: 6, InvalidBorder: 1, NumPoints: 4})
	test.That(t, err, test.ShouldBeNil)

	shifted := depthalign.Params{Scale: scene.Alignment.Scale, Shift: scene.Alignment.Shift + 0.25}
	residuals := scene.DepthResiduals(shifted)
	test.That(t, len(residuals), test.ShouldEqual, 6*4)
	for _, r := range residuals {
		test.That(t, r, test.ShouldAlmostEqual, 0.25, 1e-12)
	}
	test.That(t, scene.DepthRMSE(shifted), test.ShouldAlmostEqual, 0.25, 1e-12)
}
