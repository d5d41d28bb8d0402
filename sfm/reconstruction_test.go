package sfm

import (
	"errors"
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestReconstructionLookup(t *testing.T) {
	recon := &Reconstruction{
		Points:    []r3.Vector{{X: 1}, {Y: 2}, {Z: 3}},
		PointsRGB: []color.NRGBA{{R: 1, A: 255}, {G: 2, A: 255}, {B: 3, A: 255}},
		PointIndices: map[string][]int{
			"a.png":   {2, 0},
			"bad.png": {5},
		},
	}
	test.That(t, recon.NumImages(), test.ShouldEqual, 2)

	pts, err := recon.ImagePoints("a.png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts, test.ShouldResemble, []r3.Vector{{Z: 3}, {X: 1}})

	colors, err := recon.ImageColors("a.png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, colors, test.ShouldResemble, []color.NRGBA{{B: 3, A: 255}, {R: 1, A: 255}})

	_, err = recon.ImagePoints("missing.png")
	test.That(t, errors.Is(err, ErrUnknownImage), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing.png")
	_, err = recon.ImageColors("missing.png")
	test.That(t, errors.Is(err, ErrUnknownImage), test.ShouldBeTrue)

	_, err = recon.ImagePoints("bad.png")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = recon.ImageColors("bad.png")
	test.That(t, err, test.ShouldNotBeNil)
}
