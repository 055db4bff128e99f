// Package fitting splits the pixel region of a merger into a requested
// number of object shapes.
//
// A Plugin receives the region's pixel coordinates (one row per pixel), the
// number of objects to fit and the fits of the previous frame as
// initializations. It must return exactly the requested number of fits.
package fitting

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTooFewPoints is returned when a region has fewer pixels than the
	// number of objects requested.
	ErrTooFewPoints = errors.New("region has fewer pixels than requested objects")
	// ErrInvalidCount is returned for a requested object count below one.
	ErrInvalidCount = errors.New("object count must be at least one")
)

// Fit is one object fitted into a region.
type Fit struct {
	// Weight is the fraction of the region's pixels explained by this fit.
	Weight float64
	// Center is the mean pixel coordinate of the fitted object.
	Center []float64
	// Covariance of the object's pixel coordinates. Nil when the object
	// covers fewer than two pixels.
	Covariance *mat.SymDense
}

// RegionCenter returns the spatial center of the fit.
func (f Fit) RegionCenter() []float64 {
	return f.Center
}

// Plugin fits count objects into the pixel coordinates of one region.
type Plugin interface {
	ResolveMergerForCoords(coords *mat.Dense, count int, initializations []Fit) ([]Fit, error)
}

// CoordinatesFromPoints packs a list of equal-length points into a matrix
// with one row per point.
func CoordinatesFromPoints(points [][]float64) (*mat.Dense, error) {
	if len(points) == 0 {
		return nil, errors.New("no points")
	}
	dims := len(points[0])
	if dims == 0 {
		return nil, errors.New("points have no coordinates")
	}
	data := make([]float64, 0, len(points)*dims)
	for i, p := range points {
		if len(p) != dims {
			return nil, fmt.Errorf("point %d has %d coordinates, want %d", i, len(p), dims)
		}
		data = append(data, p...)
	}
	return mat.NewDense(len(points), dims, data), nil
}
