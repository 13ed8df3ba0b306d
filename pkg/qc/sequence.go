package qc

import (
	"fmt"
	"math"
	"strings"

	"annotationqc/internal/models"
)

// maxReportedInversions caps how many pairs the explanation names
const maxReportedInversions = 3

// Inversion is a pair of consecutive labels whose Y order is reversed
type Inversion struct {
	Upper  string
	UpperY float64
	Lower  string
	LowerY float64
}

// SequenceChecker verifies that labels listed top to bottom have
// non-decreasing Y centers, within Tolerance. Larger Y is anatomically lower.
type SequenceChecker struct {
	Tolerance float64
}

type sample struct {
	label string
	y     float64
}

// Inversions returns every inversion and the number of comparable features.
// Each label contributes its first feature of featureType that has a center.
func (c SequenceChecker) Inversions(features []models.AnnotationFeature, orderedLabels []string, featureType models.FeatureType) ([]Inversion, int) {
	var samples []sample
	for _, label := range orderedLabels {
		for i := range features {
			f := &features[i]
			if f.Label == label && f.Type == featureType && f.Center != nil {
				samples = append(samples, sample{label: label, y: f.Center.Y})
				break
			}
		}
	}
	if len(samples) < 2 {
		return nil, len(samples)
	}

	var inversions []Inversion
	prev := sample{y: math.Inf(-1)}
	for _, s := range samples {
		if s.y < prev.y-c.Tolerance {
			inversions = append(inversions, Inversion{Upper: prev.label, UpperY: prev.y, Lower: s.label, LowerY: s.y})
		}
		prev = s
	}
	return inversions, len(samples)
}

// Check reports whether the labels are in anatomical order, with an explanation.
// Fewer than two comparable features is not evidence of a violation.
func (c SequenceChecker) Check(features []models.AnnotationFeature, orderedLabels []string, featureType models.FeatureType) (bool, string) {
	inversions, n := c.Inversions(features, orderedLabels, featureType)
	if n < 2 {
		return true, "insufficient samples to check the order."
	}
	if len(inversions) == 0 {
		return true, "label order (Y axis) is correct."
	}

	shown := inversions
	if len(shown) > maxReportedInversions {
		shown = shown[:maxReportedInversions]
	}
	pairs := make([]string, len(shown))
	for i, inv := range shown {
		pairs[i] = fmt.Sprintf("'%s'(%.1f) should be above '%s'(%.1f)", inv.Upper, inv.UpperY, inv.Lower, inv.LowerY)
	}
	return false, fmt.Sprintf("found %d decreasing Y step(s) in the anatomical order, e.g. %s", len(inversions), strings.Join(pairs, "; "))
}
