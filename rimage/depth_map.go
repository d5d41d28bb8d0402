package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Bounds on the size of a depth map read from a stream. The data is allocated
// from the header before any of it is read.
const (
	maxDepthMapSide   = 100000
	maxDepthMapPixels = 1 << 26
)

// DepthMap is a dense, row-major map of float depths. Values may be +Inf for
// pixels that have no usable depth (sky, out of range).
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewDepthMapFromSlice wraps row-major depth data of the given size. The slice
// is not copied.
func NewDepthMapFromSlice(width, height int, data []float64) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid depth map size (%d, %d)", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth data has %d values, expected %d*%d", len(data), width, height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// NewDepthMapFromRows builds a depth map from a slice of rows, all of the same length.
func NewDepthMapFromRows(rows [][]float64) (*DepthMap, error) {
	if len(rows) == 0 {
		return nil, errors.New("depth map needs at least one row")
	}
	width := len(rows[0])
	data := make([]float64, 0, width*len(rows))
	for y, row := range rows {
		if len(row) != width {
			return nil, errors.Errorf("row %d has %d columns, expected %d", y, len(row), width)
		}
		data = append(data, row...)
	}
	return NewDepthMapFromSlice(width, len(rows), data)
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covered by the depth map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains returns whether (x, y) is inside the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && x < dm.width && y >= 0 && y < dm.height
}

// GetDepth returns the depth at column x, row y.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Get returns the depth at the given pixel.
func (dm *DepthMap) Get(p image.Point) float64 {
	return dm.GetDepth(p.X, p.Y)
}

// Set sets the depth at column x, row y.
func (dm *DepthMap) Set(x, y int, val float64) {
	dm.data[y*dm.width+x] = val
}

// Flat returns the row-major backing slice. Index i maps to pixel (i%width, i/width).
func (dm *DepthMap) Flat() []float64 {
	return dm.data
}

// Affine returns a new depth map holding scale*d + shift for every pixel d.
func (dm *DepthMap) Affine(scale, shift float64) *DepthMap {
	out := NewEmptyDepthMap(dm.width, dm.height)
	for i, d := range dm.data {
		out.data[i] = scale*d + shift
	}
	return out
}

// AnyInf reports whether any pixel selected by mask holds an infinite depth.
// A nil mask selects every pixel.
func (dm *DepthMap) AnyInf(mask *Mask) bool {
	for i, d := range dm.data {
		if mask != nil && !mask.data[i] {
			continue
		}
		if math.IsInf(d, 0) {
			return true
		}
	}
	return false
}

// MinMax returns the smallest and largest finite depths. Both are NaN when no
// finite depth exists.
func (dm *DepthMap) MinMax() (float64, float64) {
	minD, maxD := math.Inf(1), math.Inf(-1)
	for _, d := range dm.data {
		if math.IsInf(d, 0) || math.IsNaN(d) {
			continue
		}
		minD = math.Min(minD, d)
		maxD = math.Max(maxD, d)
	}
	if minD > maxD {
		return math.NaN(), math.NaN()
	}
	return minD, maxD
}

// ParseDepthMap reads a depth map written by WriteToFile. Files ending in .gz
// are decompressed.
func ParseDepthMap(fn string) (dm *DepthMap, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var r io.Reader = f
	if filepath.Ext(fn) == ".gz" {
		gz, gzErr := gzip.NewReader(f)
		if gzErr != nil {
			return nil, gzErr
		}
		defer func() {
			err = multierr.Combine(err, gz.Close())
		}()
		r = gz
	}
	return ReadDepthMap(bufio.NewReader(r))
}

// ReadDepthMap reads a little endian width, height and then width*height
// float64 depths in row-major order.
func ReadDepthMap(r io.Reader) (*DepthMap, error) {
	var header [2]uint64
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "error reading depth map header")
	}
	width, height := int(header[0]), int(header[1])
	if width <= 0 || width >= maxDepthMapSide || height <= 0 || height >= maxDepthMapSide {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}
	if width*height > maxDepthMapPixels {
		return nil, errors.Errorf("depth map of %vx%v exceeds %v pixels", width, height, maxDepthMapPixels)
	}

	dm := NewEmptyDepthMap(width, height)
	if err := binary.Read(r, binary.LittleEndian, dm.data); err != nil {
		return nil, errors.Wrap(err, "error reading depth map data")
	}
	return dm, nil
}

// WriteToFile writes the depth map to fn, gzipped if fn ends in .gz.
func (dm *DepthMap) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	if filepath.Ext(fn) != ".gz" {
		return dm.WriteTo(f)
	}
	gout := gzip.NewWriter(f)
	if err := dm.WriteTo(gout); err != nil {
		return multierr.Combine(err, gout.Close())
	}
	return gout.Close()
}

// WriteTo writes the depth map in the format read by ReadDepthMap.
func (dm *DepthMap) WriteTo(out io.Writer) error {
	header := [2]uint64{uint64(dm.width), uint64(dm.height)}
	if err := binary.Write(out, binary.LittleEndian, header); err != nil {
		return err
	}
	return binary.Write(out, binary.LittleEndian, dm.data)
}
