// Package pointcloud defines a point cloud and provides an implementation for one.
//
// Clouds here are ordered: points iterate in insertion order, which keeps
// exported files aligned with the pixel or SfM order they were built from.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Points with components outside [minPreciseFloat64, maxPreciseFloat64] cannot
// be stored without losing precision.
const (
	maxPreciseFloat64 = float64(1 << 53)
	minPreciseFloat64 = -maxPreciseFloat64
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor bool
	HasValue bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData returns meta data for an empty cloud.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the meta data with a newly added point.
func (meta *MetaData) Merge(v r3.Vector, data Data) {
	if data != nil {
		if data.HasColor() {
			meta.HasColor = true
		}
		if data.HasValue() {
			meta.HasValue = true
		}
	}

	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
}

// PointCloud is a general purpose container of points.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// MetaData returns meta data
	MetaData() MetaData

	// Set appends the given point to the cloud.
	Set(p r3.Vector, d Data) error

	// Iterate iterates over all points in the cloud and calls the given
	// function for each point. If the supplied function returns false,
	// iteration will stop after the function returns.
	Iterate(fn func(p r3.Vector, d Data) bool)
}

// checkPrecise returns an error if any component of p would lose precision.
func checkPrecise(p r3.Vector) error {
	check := func(v float64, name string) error {
		if math.IsNaN(v) || v < minPreciseFloat64 || v > maxPreciseFloat64 {
			return errors.Errorf("%s component (%v) is out of range [%v,%v]", name, v, minPreciseFloat64, maxPreciseFloat64)
		}
		return nil
	}
	if err := check(p.X, "x"); err != nil {
		return err
	}
	if err := check(p.Y, "y"); err != nil {
		return err
	}
	return check(p.Z, "z")
}

// NewFromPoints builds a cloud from points and optional per-point data. data
// may be nil or must have the same length as pts.
func NewFromPoints(pts []r3.Vector, data []Data) (PointCloud, error) {
	if data != nil && len(data) != len(pts) {
		return nil, errors.Errorf("got %d points but %d data entries", len(pts), len(data))
	}
	cloud := NewWithPrealloc(len(pts))
	for i, p := range pts {
		var d Data
		if data != nil {
			d = data[i]
		}
		if err := cloud.Set(p, d); err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
	}
	return cloud, nil
}
