package depthcloud

import "fmt"

// LowDepthAlignmentConfidenceError is returned when too few SfM points
// reproject into the image for the depth alignment to be trusted.
type LowDepthAlignmentConfidenceError struct {
	Retained int
	Total    int
}

func (e *LowDepthAlignmentConfidenceError) Error() string {
	return fmt.Sprintf("less than 1/4 of SfM points (%d / %d) reprojected into image bounds", e.Retained, e.Total)
}

// NewLowDepthAlignmentConfidenceError returns an error for retained out of total
// reprojected points.
func NewLowDepthAlignmentConfidenceError(retained, total int) error {
	return &LowDepthAlignmentConfidenceError{Retained: retained, Total: total}
}
