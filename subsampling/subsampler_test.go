package subsampling

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"go.viam.com/test"

	"go.viam.com/depthcloud/rimage"
)

func constantDepth(w, h int, z float64) *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(w, h)
	for i := range dm.Flat() {
		dm.Flat()[i] = z
	}
	return dm
}

func TestFull(t *testing.T) {
	mask, err := Full{}.Mask(nil, rimage.NewEmptyDepthMap(3, 2), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(mask), test.ShouldEqual, 6)
	test.That(t, lo.Count(mask, true), test.ShouldEqual, 6)
}

func TestUniform(t *testing.T) {
	mask, err := Uniform{Factor: 2}.Mask(nil, rimage.NewEmptyDepthMap(3, 3), nil)
	test.That(t, err, test.ShouldBeNil)
	expected := []bool{
		true, false, true,
		false, false, false,
		true, false, true,
	}
	test.That(t, cmp.Diff(expected, mask), test.ShouldBeEmpty)

	_, err = Uniform{}.Mask(nil, rimage.NewEmptyDepthMap(3, 3), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAdaptive(t *testing.T) {
	dm := constantDepth(20, 20, 2)
	dm.Set(0, 0, math.Inf(1))
	valid := rimage.NewMask(20, 20, true)
	valid.Set(1, 0, false)

	// factor 1 at the median depth keeps every usable pixel
	mask, err := Adaptive{Factor: 1}.Mask(nil, dm, valid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mask[0], test.ShouldBeFalse)
	test.That(t, mask[1], test.ShouldBeFalse)
	test.That(t, lo.Count(mask, true), test.ShouldEqual, 398)

	sub := Adaptive{Factor: 4, Seed: 7}
	first, err := sub.Mask(nil, dm, valid)
	test.That(t, err, test.ShouldBeNil)
	second, err := sub.Mask(nil, dm, valid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmp.Diff(first, second), test.ShouldBeEmpty)
	kept := lo.Count(first, true)
	test.That(t, kept, test.ShouldBeGreaterThan, 0)
	test.That(t, kept, test.ShouldBeLessThan, 100)

	empty, err := Adaptive{Factor: 2}.Mask(nil, dm, rimage.NewMask(20, 20, false))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lo.Count(empty, true), test.ShouldEqual, 0)
}

func TestNewFromConfig(t *testing.T) {
	s, err := New(Config{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldResemble, Full{})

	s, err = New(Config{Type: TypeUniform, Factor: 10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldResemble, Uniform{Factor: 10})

	s, err = New(Config{Type: TypeAdaptive, Factor: 20, Seed: 3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldResemble, Adaptive{Factor: 20, Seed: 3})

	_, err = New(Config{Type: TypeUniform, Factor: 2.5})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New(Config{Type: "voxel"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown subsampler type")
}
