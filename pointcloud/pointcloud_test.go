package pointcloud

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPointCloudBasic(t *testing.T) {
	pc := New()

	p0 := r3.Vector{}
	d0 := NewValueData(5)
	test.That(t, pc.Set(p0, d0), test.ShouldBeNil)

	p1 := r3.Vector{X: 1, Y: 0, Z: 1}
	d1 := NewColoredData(color.NRGBA{1, 2, 3, 255})
	test.That(t, pc.Set(p1, d1), test.ShouldBeNil)

	// duplicates are kept
	test.That(t, pc.Set(p1, nil), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)

	var seen []r3.Vector
	pc.Iterate(func(p r3.Vector, d Data) bool {
		seen = append(seen, p)
		return true
	})
	test.That(t, seen, test.ShouldResemble, []r3.Vector{p0, p1, p1})

	count := 0
	pc.Iterate(func(p r3.Vector, d Data) bool {
		count++
		return false
	})
	test.That(t, count, test.ShouldEqual, 1)

	meta := pc.MetaData()
	test.That(t, meta.HasColor, test.ShouldBeTrue)
	test.That(t, meta.HasValue, test.ShouldBeTrue)
	test.That(t, meta.MaxZ, test.ShouldEqual, 1.)
	test.That(t, meta.MinX, test.ShouldEqual, 0.)

	tooSmall := minPreciseFloat64 - 1e10
	err := pc.Set(r3.Vector{X: tooSmall}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "x component")
	err = pc.Set(r3.Vector{Z: math.Inf(1)}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "z component")
	err = pc.Set(r3.Vector{Y: math.NaN()}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "y component")
}

func TestNewFromPoints(t *testing.T) {
	pc, err := NewFromPoints([]r3.Vector{{X: 1}, {Y: 1}}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	test.That(t, pc.MetaData().HasColor, test.ShouldBeFalse)

	_, err = NewFromPoints([]r3.Vector{{X: 1}}, []Data{nil, nil})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewFromPoints([]r3.Vector{{X: 1}, {X: math.Inf(-1)}}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "point 1")
}

func TestToPCDAscii(t *testing.T) {
	pc, err := NewFromPoints(
		[]r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 0.5, Z: 0}},
		[]Data{NewColoredData(color.NRGBA{255, 0, 0, 255}), nil},
	)
	test.That(t, err, test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, ToPCD(pc, &buf, PCDAscii), test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, lines[1], test.ShouldEqual, "FIELDS x y z rgb")
	test.That(t, lines[5], test.ShouldEqual, "WIDTH 2")
	test.That(t, lines[8], test.ShouldEqual, "POINTS 2")
	test.That(t, lines[9], test.ShouldEqual, "DATA ascii")
	test.That(t, lines[10], test.ShouldEqual, "1.000000 2.000000 3.000000 16711680")
	test.That(t, lines[11], test.ShouldEqual, "-1.000000 0.500000 0.000000 16711680")

	test.That(t, ToPCD(pc, &buf, PCDType(7)), test.ShouldNotBeNil)
}

func TestToPCDBinary(t *testing.T) {
	pc, err := NewFromPoints([]r3.Vector{{X: 1, Y: 2, Z: 3}}, nil)
	test.That(t, err, test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, ToPCD(pc, &buf, PCDBinary), test.ShouldBeNil)
	header, data, found := strings.Cut(buf.String(), "DATA binary\n")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, header, test.ShouldContainSubstring, "FIELDS x y z\n")
	test.That(t, len(data), test.ShouldEqual, 12)
	z := math.Float32frombits(binary.LittleEndian.Uint32([]byte(data[8:12])))
	test.That(t, z, test.ShouldEqual, float32(3))
}

func TestLASRoundTrip(t *testing.T) {
	pc, err := NewFromPoints(
		[]r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
		[]Data{
			NewColoredData(color.NRGBA{10, 20, 30, 255}).SetValue(7),
			NewColoredData(color.NRGBA{40, 50, 60, 255}).SetValue(9),
		},
	)
	test.That(t, err, test.ShouldBeNil)

	fn := filepath.Join(t.TempDir(), "cloud.las")
	test.That(t, WriteLAS(pc, fn), test.ShouldBeNil)

	read, err := ReadLAS(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Size(), test.ShouldEqual, 2)
	test.That(t, read.MetaData().HasColor, test.ShouldBeTrue)
	test.That(t, read.MetaData().HasValue, test.ShouldBeTrue)

	var values []int
	read.Iterate(func(p r3.Vector, d Data) bool {
		values = append(values, d.Value())
		return true
	})
	test.That(t, values, test.ShouldResemble, []int{7, 9})
	test.That(t, read.MetaData().MaxZ, test.ShouldAlmostEqual, 6, 1e-3)
}

func TestWriteLASEmpty(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "empty.las")
	test.That(t, WriteLAS(New(), fn), test.ShouldEqual, ErrEmptyLAS)
	_, err := os.Stat(fn)
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestToPCDLabels(t *testing.T) {
	pc, err := NewFromPoints(
		[]r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
		[]Data{NewValueData(12), nil},
	)
	test.That(t, err, test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, ToPCD(pc, &buf, PCDAscii), test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, lines[1], test.ShouldEqual, "FIELDS x y z label")
	test.That(t, lines[3], test.ShouldEqual, "TYPE F F F U")
	test.That(t, lines[10], test.ShouldEqual, "1.000000 2.000000 3.000000 12")
	test.That(t, lines[11], test.ShouldEqual, "4.000000 5.000000 6.000000 0")

	buf.Reset()
	test.That(t, ToPCD(pc, &buf, PCDBinary), test.ShouldBeNil)
	_, data, found := strings.Cut(buf.String(), "DATA binary\n")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, len(data), test.ShouldEqual, 2*16)
	test.That(t, binary.LittleEndian.Uint32([]byte(data[12:16])), test.ShouldEqual, uint32(12))
}
