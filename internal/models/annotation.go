package models

import (
	"gonum.org/v1/gonum/stat"
)

// DefaultScale is the side length of the normalized coordinate frame
const DefaultScale = 1000.0

// Point is a coordinate pair in normalized space [0, scale]
type Point struct {
	X float64
	Y float64
}

// FeatureType is the geometry kind of an annotation feature
type FeatureType string

const (
	FeaturePoint   FeatureType = "point"
	FeatureLine    FeatureType = "line"
	FeaturePolygon FeatureType = "polygon"
)

// FeatureTypeFromShape maps a tool-native geometry kind onto a FeatureType.
// Anything that is neither a point nor a line is treated as a region.
func FeatureTypeFromShape(shape string) FeatureType {
	switch shape {
	case "point":
		return FeaturePoint
	case "line":
		return FeatureLine
	default:
		return FeaturePolygon
	}
}

// AnnotationFeature is one annotated structure expressed with a standard label
// in normalized space. Features are built once by a parser and never mutated.
type AnnotationFeature struct {
	// Label is the standard (medical) label
	Label string

	// Type is the geometry kind
	Type FeatureType

	// Points holds the normalized geometry in annotation order
	Points []Point

	// View is the anatomical view the feature was parsed for
	View string

	// Center is the arithmetic mean of Points, nil when there are no points
	Center *Point

	// Approximate marks placeholder geometry (segments known only from metadata)
	Approximate bool
}

// NewAnnotationFeature builds a feature and computes its center
func NewAnnotationFeature(label string, featureType FeatureType, points []Point, view string) AnnotationFeature {
	return AnnotationFeature{
		Label:  label,
		Type:   featureType,
		Points: points,
		View:   view,
		Center: centerOf(points),
	}
}

func centerOf(points []Point) *Point {
	if len(points) == 0 {
		return nil
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return &Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
}

// FindByLabel returns the first feature with the given label, or nil
func FindByLabel(features []AnnotationFeature, label string) *AnnotationFeature {
	for i := range features {
		if features[i].Label == label {
			return &features[i]
		}
	}
	return nil
}

// FindCentered returns the first feature with the given label that has a center
func FindCentered(features []AnnotationFeature, label string) *AnnotationFeature {
	for i := range features {
		if features[i].Label == label && features[i].Center != nil {
			return &features[i]
		}
	}
	return nil
}
