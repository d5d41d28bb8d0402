package rimage

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Mask is a row-major per-pixel boolean map. True marks a usable pixel.
type Mask struct {
	width  int
	height int

	data []bool
}

// NewMask returns a mask of the given size with every pixel set to fill.
func NewMask(width, height int, fill bool) *Mask {
	data := make([]bool, width*height)
	if fill {
		for i := range data {
			data[i] = true
		}
	}
	return &Mask{width: width, height: height, data: data}
}

// NewMaskFromSlice wraps row-major mask data of the given size. The slice is not copied.
func NewMaskFromSlice(width, height int, data []bool) (*Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid mask size (%d, %d)", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("mask data has %d values, expected %d*%d", len(data), width, height)
	}
	return &Mask{width: width, height: height, data: data}, nil
}

// Width returns the number of columns.
func (m *Mask) Width() int {
	return m.width
}

// Height returns the number of rows.
func (m *Mask) Height() int {
	return m.height
}

// At returns the mask value at column x, row y.
func (m *Mask) At(x, y int) bool {
	return m.data[y*m.width+x]
}

// Set sets the mask value at column x, row y.
func (m *Mask) Set(x, y int, v bool) {
	m.data[y*m.width+x] = v
}

// Flat returns the row-major backing slice.
func (m *Mask) Flat() []bool {
	return m.data
}

// Count returns the number of true pixels.
func (m *Mask) Count() int {
	return lo.Count(m.data, true)
}

// PredictedDepth is the output of a monocular depth predictor: a dense depth
// map known only up to scale and shift, plus an optional validity mask.
type PredictedDepth struct {
	Depth *DepthMap
	// Mask marks pixels whose depth is usable. Nil means every pixel is valid.
	Mask *Mask
}

// ValidityMask returns the predictor's mask, or an all-valid mask when none was given.
func (pd PredictedDepth) ValidityMask() (*Mask, error) {
	if pd.Depth == nil {
		return nil, errors.New("predicted depth has no depth map")
	}
	if pd.Mask == nil {
		return NewMask(pd.Depth.Width(), pd.Depth.Height(), true), nil
	}
	if pd.Mask.Width() != pd.Depth.Width() || pd.Mask.Height() != pd.Depth.Height() {
		return nil, errors.Errorf("mask dimensions (%d,%d) don't match depth dimensions (%d,%d)",
			pd.Mask.Width(), pd.Mask.Height(), pd.Depth.Width(), pd.Depth.Height())
	}
	return pd.Mask, nil
}
