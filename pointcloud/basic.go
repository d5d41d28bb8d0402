package pointcloud

import (
	"github.com/golang/geo/r3"
)

// basicPointCloud is the basic implementation of the PointCloud interface backed by
// parallel slices in insertion order.
type basicPointCloud struct {
	points []r3.Vector
	data   []Data
	meta   MetaData
}

// New returns an empty PointCloud backed by a basicPointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud backed by a basicPointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: make([]r3.Vector, 0, size),
		data:   make([]Data, 0, size),
		meta:   NewMetaData(),
	}
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

// Set validates that the point can be precisely stored before appending it.
func (cloud *basicPointCloud) Set(p r3.Vector, d Data) error {
	if err := checkPrecise(p); err != nil {
		return err
	}
	cloud.points = append(cloud.points, p)
	cloud.data = append(cloud.data, d)
	cloud.meta.Merge(p, d)
	return nil
}

func (cloud *basicPointCloud) Iterate(fn func(p r3.Vector, d Data) bool) {
	for i, p := range cloud.points {
		if !fn(p, cloud.data[i]) {
			return
		}
	}
}
