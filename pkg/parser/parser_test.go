package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotationqc/internal/models"
	"annotationqc/pkg/config"
	"annotationqc/pkg/normalize"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.LabelMapping = map[string]config.ViewLabelMap{
		"AP": {StandardToActual: config.LabelEntries{
			{Standard: "L1", Actual: []string{"l1", "Lumbar1"}},
			{Standard: "L2", Actual: []string{"l2", "Lumbar2"}},
			{Standard: "Pedicle_L", Actual: []string{"pedicle_left"}},
		}},
	}
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLabelMeSingleMappedShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case1.json")
	writeFile(t, path, `{
  "imageWidth": 200,
  "imageHeight": 400,
  "shapes": [
    {"label": "ruler", "shape_type": "line", "points": [[0, 0], [10, 10]]},
    {"label": "pedicle_left", "shape_type": "point", "points": [[50, 100]]}
  ]
}`)

	features, err := New(testConfig()).Parse(context.Background(), path, ToolLabelMe, "AP")
	require.NoError(t, err)
	require.Len(t, features, 1)

	f := features[0]
	assert.Equal(t, "Pedicle_L", f.Label)
	assert.Equal(t, models.FeaturePoint, f.Type)
	assert.Equal(t, "AP", f.View)
	require.NotNil(t, f.Center)
	assert.InDelta(t, 250, f.Center.X, 1e-9)
	assert.InDelta(t, 250, f.Center.Y, 1e-9)
}

func TestLabelMeShapeTypesAndMirror(t *testing.T) {
	cfg := testConfig()
	cfg.Settings.MirrorXAxis = true
	path := filepath.Join(t.TempDir(), "case2.json")
	writeFile(t, path, `{
  "imageWidth": 100,
  "imageHeight": 100,
  "shapes": [
    {"label": "l1", "shape_type": "polygon", "points": [[10, 10], [30, 10], [30, 30], [10, 30]]},
    {"label": "Lumbar2", "shape_type": "rectangle", "points": [[0, 50], [20, 70], [5]]}
  ]
}`)

	features, err := New(cfg).Parse(context.Background(), path, ToolLabelMe, "AP")
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, models.FeaturePolygon, features[0].Type)
	assert.InDelta(t, 800, features[0].Center.X, 1e-9)
	assert.InDelta(t, 200, features[0].Center.Y, 1e-9)

	// the malformed point is skipped, the shape survives
	assert.Equal(t, models.FeaturePolygon, features[1].Type)
	assert.Len(t, features[1].Points, 2)
}

func TestLabelMeInvalidDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, path, `{"imageWidth": 0, "imageHeight": 100, "shapes": []}`)

	_, err := New(testConfig()).Parse(context.Background(), path, ToolLabelMe, "AP")
	var geomErr *normalize.InvalidGeometryError
	require.True(t, errors.As(err, &geomErr), "got %v", err)
}

func TestLabelMeMissingDimensionsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodims.json")
	writeFile(t, path, `{"shapes": [{"label": "l1", "shape_type": "point", "points": [[0.5, 0.25]]}]}`)

	features, err := New(testConfig()).Parse(context.Background(), path, ToolLabelMe, "AP")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.InDelta(t, 500, features[0].Center.X, 1e-9)
	assert.InDelta(t, 250, features[0].Center.Y, 1e-9)
}

func TestLabelMeMissingFile(t *testing.T) {
	_, err := New(testConfig()).Parse(context.Background(), filepath.Join(t.TempDir(), "none.json"), ToolLabelMe, "AP")
	assert.ErrorContains(t, err, "LabelMe file not found")
}

func TestDispatchUnsupportedTool(t *testing.T) {
	d := New(testConfig())
	_, err := d.Parse(context.Background(), t.TempDir(), "cvat", "AP")
	var toolErr *UnsupportedToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "cvat", toolErr.Tool)
	assert.Equal(t, []string{ToolLabelMe, ToolSlicer}, d.Tools())
}

func TestSlicerRequiresDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l1.mrk.json")
	writeFile(t, path, `{"markups": []}`)

	_, err := New(testConfig()).Parse(context.Background(), path, ToolSlicer, "AP")
	assert.True(t, errors.Is(err, ErrNotDirectory), "got %v", err)
}

const segmentationHeader = "NRRD0004\n" +
	"type: unsigned char\n" +
	"Segment0_LabelValue:=1\n" +
	"Segment0_Name:=Lumbar1\n" +
	"Segment1_LabelValue:=2\n" +
	"Segment1_Name:=l2\n" +
	"Segment2_LabelValue:=3\n" +
	"Segment2_Name:=Sacrum\n" +
	"Segment3_LabelValue:=4\n" +
	"\n"

func TestSlicerDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "l1.mrk.json"), `{"markups": [{"controlPoints": [{"position": [-10.0, 20.0, 5.0]}]}]}`)
	writeFile(t, filepath.Join(dir, "points", "l2.mrk.json"), `{"markups": [{"controlPoints": [{"position": [30.0, 60.0, 1.0]}, {"position": [10.0, 40.0, 1.0]}]}]}`)
	writeFile(t, filepath.Join(dir, "points", "ruler.mrk.json"), `{"markups": [{"controlPoints": [{"position": [1000.0, 1000.0]}]}]}`)
	writeFile(t, filepath.Join(dir, "points", "pedicle_left.mrk.json"), `not json`)
	writeFile(t, filepath.Join(dir, "seg", "Segmentation.seg.nrrd"), segmentationHeader)

	features, err := New(testConfig()).Parse(context.Background(), dir, ToolSlicer, "AP")
	require.NoError(t, err)

	var points, regions []models.AnnotationFeature
	for _, f := range features {
		switch f.Type {
		case models.FeaturePoint:
			points = append(points, f)
		case models.FeaturePolygon:
			regions = append(regions, f)
		}
	}

	// the unmapped ruler never widens the extent
	require.Len(t, points, 3)
	assert.Equal(t, "L1", points[0].Label)
	assert.InDelta(t, 0, points[0].Center.X, 1e-9)
	assert.InDelta(t, 0, points[0].Center.Y, 1e-9)
	assert.Equal(t, "L2", points[1].Label)
	assert.InDelta(t, 1000, points[1].Center.X, 1e-9)
	assert.InDelta(t, 1000, points[1].Center.Y, 1e-9)
	assert.InDelta(t, 500, points[2].Center.X, 1e-9)
	assert.InDelta(t, 500, points[2].Center.Y, 1e-9)

	require.Len(t, regions, 2)
	assert.Equal(t, "L1", regions[0].Label)
	assert.Equal(t, "L2", regions[1].Label)
	for _, r := range regions {
		assert.True(t, r.Approximate)
		assert.Equal(t, models.Point{X: 500, Y: 500}, *r.Center)
	}
}

func TestSlicerWithoutSegmentation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "l1.mrk.json"), `{"markups": [{"controlPoints": [{"position": [1, 2, 3]}]}]}`)

	var called bool
	reader := MetadataReaderFunc(func(ctx context.Context, URL string) (map[string]string, error) {
		called = true
		return nil, nil
	})
	features, err := New(testConfig(), WithMetadataReader(reader)).Parse(context.Background(), dir, ToolSlicer, "AP")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.False(t, called)
}

func TestSlicerUnreadableSegmentation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Segmentation.seg.nrrd"), "garbage")

	reader := MetadataReaderFunc(func(ctx context.Context, URL string) (map[string]string, error) {
		return nil, errors.New("corrupt header")
	})
	features, err := New(testConfig(), WithMetadataReader(reader)).Parse(context.Background(), dir, ToolSlicer, "AP")
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestSegmentNames(t *testing.T) {
	names := SegmentNames(map[string]string{
		"Segment10_LabelValue": "11",
		"Segment10_Name":       "L5",
		"Segment2_LabelValue":  "3",
		"Segment2_Name":        "L1",
		"Segment3_LabelValue":  "4",
		"Segment3_Name":        "",
		"Segment4_Name":        "orphan",
		"dimension":            "3",
	})
	assert.Equal(t, []string{"L1", "L5"}, names)
}
