// Package interpolation holds the anatomical order and the synthetic reference
// centers linearly interpolated along it.
//
// Synthetic references stand in for ordered anatomical structures that are
// absent from the annotated data, so relative position checks stay
// evaluable with partial ground truth. They are approximations, never measured
// data, and are never attached to parsed features.
package interpolation

import (
	"sort"

	"annotationqc/internal/models"
)

// Placement of the interpolated band inside the normalized frame: the first
// label of the order sits at 5% of the frame height and the band spans 75%.
const (
	referenceTop  = 0.05
	referenceSpan = 0.75
)

// AnatomicalOrder is a total order over anatomical labels, top to bottom
type AnatomicalOrder struct {
	labels []string
	index  map[string]int
}

// NewAnatomicalOrder builds the order from a sequence such as C0..L6.
// A repeated label keeps its first position.
func NewAnatomicalOrder(labels []string) *AnatomicalOrder {
	o := &AnatomicalOrder{
		labels: append([]string(nil), labels...),
		index:  make(map[string]int, len(labels)),
	}
	for i, label := range labels {
		if _, ok := o.index[label]; !ok {
			o.index[label] = i
		}
	}
	return o
}

// Len returns the length of the sequence
func (o *AnatomicalOrder) Len() int { return len(o.labels) }

// Index returns the position of label in the order
func (o *AnatomicalOrder) Index(label string) (int, bool) {
	i, ok := o.index[label]
	return i, ok
}

// Rank is Index for ordered labels and Len for unordered ones, which sorts
// unordered labels last
func (o *AnatomicalOrder) Rank(label string) int {
	if i, ok := o.index[label]; ok {
		return i
	}
	return len(o.labels)
}

// Sort returns labels sorted by rank; unordered labels follow by name
func (o *AnatomicalOrder) Sort(labels []string) []string {
	sorted := append([]string(nil), labels...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := o.Rank(sorted[i]), o.Rank(sorted[j])
		if ri != rj {
			return ri < rj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

// ReferenceInterpolator produces synthetic centers for ordered labels
type ReferenceInterpolator struct {
	order *AnatomicalOrder
	scale float64
}

// NewReferenceInterpolator creates an interpolator for a normalized frame of side scale
func NewReferenceInterpolator(order *AnatomicalOrder, scale float64) *ReferenceInterpolator {
	return &ReferenceInterpolator{order: order, scale: scale}
}

// Reference returns the synthetic center of an ordered label: horizontally
// centered, with Y increasing linearly with the anatomical index. Unordered
// labels have no reference.
func (r *ReferenceInterpolator) Reference(label string) (models.Point, bool) {
	i, ok := r.order.Index(label)
	if !ok || r.order.Len() == 0 {
		return models.Point{}, false
	}
	step := referenceSpan / float64(r.order.Len())
	return models.Point{
		X: r.scale / 2,
		Y: r.scale * (referenceTop + float64(i)*step),
	}, true
}
