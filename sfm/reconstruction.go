// Package sfm holds the parts of a structure-from-motion reconstruction that
// depth alignment needs: world points, their colors and per-image visibility.
package sfm

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrUnknownImage is returned when an image has no visibility entry.
var ErrUnknownImage = errors.New("image not found in reconstruction")

// Reconstruction is a sparse SfM point set. PointIndices maps an image name
// to the indices of the points observed in that image.
type Reconstruction struct {
	Points       []r3.Vector
	PointsRGB    []color.NRGBA
	PointIndices map[string][]int
}

// NumImages returns the number of images with a visibility entry.
func (r *Reconstruction) NumImages() int {
	return len(r.PointIndices)
}

func (r *Reconstruction) indices(imageName string) ([]int, error) {
	idx, ok := r.PointIndices[imageName]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownImage, "%q", imageName)
	}
	return idx, nil
}

// ImagePoints returns the world points observed in imageName, in index order.
func (r *Reconstruction) ImagePoints(imageName string) ([]r3.Vector, error) {
	idx, err := r.indices(imageName)
	if err != nil {
		return nil, err
	}
	pts := make([]r3.Vector, len(idx))
	for i, j := range idx {
		if j < 0 || j >= len(r.Points) {
			return nil, errors.Errorf("image %q references point %d but reconstruction has %d points",
				imageName, j, len(r.Points))
		}
		pts[i] = r.Points[j]
	}
	return pts, nil
}

// ImageColors returns the colors of the points observed in imageName, in index order.
func (r *Reconstruction) ImageColors(imageName string) ([]color.NRGBA, error) {
	idx, err := r.indices(imageName)
	if err != nil {
		return nil, err
	}
	colors := make([]color.NRGBA, len(idx))
	for i, j := range idx {
		if j < 0 || j >= len(r.PointsRGB) {
			return nil, errors.Errorf("image %q references color %d but reconstruction has %d colors",
				imageName, j, len(r.PointsRGB))
		}
		colors[i] = r.PointsRGB[j]
	}
	return colors, nil
}
