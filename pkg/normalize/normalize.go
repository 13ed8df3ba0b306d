// Package normalize converts raw annotation coordinates into the fixed-scale
// normalized frame [0, S] x [0, S].
package normalize

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"annotationqc/internal/models"
)

// MinExtent floors a dynamic extent so coincident points do not divide by zero
const MinExtent = 1e-6

// InvalidGeometryError reports non-positive image dimensions
type InvalidGeometryError struct {
	Width  float64
	Height float64
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid image dimensions: W=%v, H=%v", e.Width, e.Height)
}

// Normalizer holds the target scale and the mirroring flag
type Normalizer struct {
	Scale  float64
	Mirror bool
}

// New creates a normalizer for scale S
func New(scale float64, mirror bool) Normalizer {
	return Normalizer{Scale: scale, Mirror: mirror}
}

// Frame is a fixed image frame of known pixel dimensions
type Frame struct {
	n      Normalizer
	width  float64
	height float64
}

// FixedFrame validates the image dimensions and returns a frame that
// normalizes pixel coordinates against them
func (n Normalizer) FixedFrame(width, height float64) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, &InvalidGeometryError{Width: width, Height: height}
	}
	return Frame{n: n, width: width, height: height}, nil
}

// Point normalizes one pixel coordinate. Mirroring reflects the raw X
// coordinate inside the image before scaling.
func (f Frame) Point(x, y float64) models.Point {
	if f.n.Mirror {
		x = f.width - x
	}
	return models.Point{
		X: x / f.width * f.n.Scale,
		Y: y / f.height * f.n.Scale,
	}
}

// Extent buffers raw points in an arbitrary coordinate system. Nothing can be
// normalized until every point of the case has been added, because the
// bounding extent is taken over all of them.
type Extent struct {
	xs []float64
	ys []float64
}

// Add buffers one raw point and returns its index
func (e *Extent) Add(x, y float64) int {
	e.xs = append(e.xs, x)
	e.ys = append(e.ys, y)
	return len(e.xs) - 1
}

// Len returns the number of buffered points
func (e *Extent) Len() int { return len(e.xs) }

// Size returns the extent along each axis, floored to MinExtent
func (e *Extent) Size() (width, height float64) {
	if len(e.xs) == 0 {
		return MinExtent, MinExtent
	}
	width = floats.Max(e.xs) - floats.Min(e.xs)
	height = floats.Max(e.ys) - floats.Min(e.ys)
	if width < MinExtent {
		width = MinExtent
	}
	if height < MinExtent {
		height = MinExtent
	}
	return width, height
}

// Normalize maps every buffered point into [0, S], in the order they were
// added. Mirroring is a reflection about the normalized frame, applied after
// scaling.
func (n Normalizer) Normalize(e *Extent) []models.Point {
	if e.Len() == 0 {
		return nil
	}
	minX, minY := floats.Min(e.xs), floats.Min(e.ys)
	width, height := e.Size()

	points := make([]models.Point, e.Len())
	for i := range e.xs {
		x := (e.xs[i] - minX) / width * n.Scale
		y := (e.ys[i] - minY) / height * n.Scale
		if n.Mirror {
			x = n.Scale - x
		}
		points[i] = models.Point{X: x, Y: y}
	}
	return points
}
