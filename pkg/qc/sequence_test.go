package qc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotationqc/internal/models"
)

func TestSequenceChecker(t *testing.T) {
	checker := SequenceChecker{Tolerance: PositionTolerance}

	tests := []struct {
		description string
		labels      []string
		ys          []float64
		ordered     bool
		contains    string
	}{
		{description: "increasing", labels: []string{"A", "B", "C"}, ys: []float64{100, 200, 300}, ordered: true, contains: "is correct"},
		{description: "within tolerance", labels: []string{"A", "B"}, ys: []float64{100, 97}, ordered: true, contains: "is correct"},
		{description: "equal", labels: []string{"A", "B"}, ys: []float64{100, 100}, ordered: true},
		{description: "inverted pair", labels: []string{"A", "B", "C"}, ys: []float64{100, 90, 200}, ordered: false, contains: "'A'(100.0) should be above 'B'(90.0)"},
		{description: "single sample", labels: []string{"A"}, ys: []float64{100}, ordered: true, contains: "insufficient samples"},
	}
	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			var features []models.AnnotationFeature
			for i, label := range tc.labels {
				features = append(features, region(label, tc.ys[i]))
			}
			ordered, explanation := checker.Check(features, tc.labels, models.FeaturePolygon)
			assert.Equal(t, tc.ordered, ordered)
			assert.Contains(t, explanation, tc.contains)
		})
	}
}

func TestSequenceInversions(t *testing.T) {
	checker := SequenceChecker{Tolerance: PositionTolerance}
	features := []models.AnnotationFeature{
		region("A", 100), region("B", 90), region("C", 200), region("D", 150),
		point("A", 500, 900),
	}

	inversions, n := checker.Inversions(features, []string{"A", "B", "C", "D", "E"}, models.FeaturePolygon)
	assert.Equal(t, 4, n)
	require.Len(t, inversions, 2)
	assert.Equal(t, Inversion{Upper: "A", UpperY: 100, Lower: "B", LowerY: 90}, inversions[0])
	assert.Equal(t, Inversion{Upper: "C", UpperY: 200, Lower: "D", LowerY: 150}, inversions[1])
}

func TestSequenceExplanationIsCapped(t *testing.T) {
	checker := SequenceChecker{}
	labels := []string{"A", "B", "C", "D", "E"}
	var features []models.AnnotationFeature
	for i, label := range labels {
		features = append(features, region(label, float64(500-100*i)))
	}

	ordered, explanation := checker.Check(features, labels, models.FeaturePolygon)
	assert.False(t, ordered)
	assert.Contains(t, explanation, "found 4 decreasing")
	assert.Contains(t, explanation, "'C'(300.0) should be above 'D'(200.0)")
	assert.NotContains(t, explanation, "'D'(200.0) should be above 'E'")
}
