package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnnotationFeatureCenter(t *testing.T) {
	f := NewAnnotationFeature("L1", FeaturePolygon, []Point{{X: 0, Y: 0}, {X: 10, Y: 20}, {X: 20, Y: 40}}, "AP")
	require.NotNil(t, f.Center)
	assert.InDelta(t, 10.0, f.Center.X, 1e-9)
	assert.InDelta(t, 20.0, f.Center.Y, 1e-9)

	empty := NewAnnotationFeature("L2", FeaturePolygon, nil, "AP")
	assert.Nil(t, empty.Center)
}

func TestFeatureTypeFromShape(t *testing.T) {
	assert.Equal(t, FeaturePoint, FeatureTypeFromShape("point"))
	assert.Equal(t, FeatureLine, FeatureTypeFromShape("line"))
	assert.Equal(t, FeaturePolygon, FeatureTypeFromShape("rectangle"))
	assert.Equal(t, FeaturePolygon, FeatureTypeFromShape("polygon"))
}

func TestStatusEscalate(t *testing.T) {
	assert.Equal(t, StatusWarning, StatusPass.Escalate(StatusWarning))
	assert.Equal(t, StatusFail, StatusWarning.Escalate(StatusFail))
	assert.Equal(t, StatusFail, StatusFail.Escalate(StatusWarning))
	assert.Equal(t, StatusFail, StatusFail.Escalate(StatusPass))
	assert.Equal(t, StatusPass, StatusNotApplicable.Escalate(StatusPass))
}

func TestCaseResultOverall(t *testing.T) {
	c := CaseResult{Results: []QCResult{
		{RuleID: "a", Status: StatusPass},
		{RuleID: "b", Status: StatusWarning},
		{RuleID: "c", Status: StatusFail},
		{RuleID: "d", Status: StatusWarning},
	}}
	assert.Equal(t, StatusFail, c.Overall())
	fails, warnings := c.Counts()
	assert.Equal(t, 1, fails)
	assert.Equal(t, 2, warnings)

	assert.Equal(t, StatusPass, CaseResult{}.Overall())
}

func TestFindCentered(t *testing.T) {
	features := []AnnotationFeature{
		NewAnnotationFeature("T1", FeaturePoint, nil, "AP"),
		NewAnnotationFeature("T1", FeaturePoint, []Point{{X: 1, Y: 2}}, "AP"),
	}
	assert.Same(t, &features[0], FindByLabel(features, "T1"))
	assert.Same(t, &features[1], FindCentered(features, "T1"))
	assert.Nil(t, FindCentered(features, "T2"))
}
