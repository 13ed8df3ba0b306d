package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"annotationqc/internal/models"
)

// labelMeDocument is the part of a LabelMe JSON file we read
type labelMeDocument struct {
	ImageWidth  *float64       `json:"imageWidth"`
	ImageHeight *float64       `json:"imageHeight"`
	Shapes      []labelMeShape `json:"shapes"`
}

type labelMeShape struct {
	Label     string      `json:"label"`
	ShapeType string      `json:"shape_type"`
	Points    [][]float64 `json:"points"`
}

// dimension reads an image dimension the way LabelMe writers store it:
// integral, defaulting to 1 when absent
func dimension(v *float64) float64 {
	if v == nil {
		return 1
	}
	return math.Trunc(*v)
}

// LabelMe parses single-file LabelMe documents: declared image dimensions
// plus a list of shapes in pixel coordinates
type LabelMe struct {
	env *env
}

// Parse reads one LabelMe file. Shapes with unmapped labels are dropped;
// the others are normalized against the declared image frame.
func (l *LabelMe) Parse(ctx context.Context, path, view string) ([]models.AnnotationFeature, error) {
	exists, err := l.env.fs.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("check LabelMe file %s: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("LabelMe file not found: %s", path)
	}
	data, err := l.env.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read LabelMe file %s: %w", path, err)
	}
	return l.parseDocument(data, path, view)
}

func (l *LabelMe) parseDocument(data []byte, path, view string) ([]models.AnnotationFeature, error) {
	var doc labelMeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode LabelMe file %s: %w", path, err)
	}

	frame, err := l.env.normalizer.FixedFrame(dimension(doc.ImageWidth), dimension(doc.ImageHeight))
	if err != nil {
		return nil, fmt.Errorf("LabelMe file %s: %w", path, err)
	}

	var features []models.AnnotationFeature
	for i, shape := range doc.Shapes {
		standard, ok, err := l.env.standardLabel(shape.Label, view)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		points := make([]models.Point, 0, len(shape.Points))
		for _, p := range shape.Points {
			if len(p) < 2 {
				l.env.logger.Warn("skipping malformed point",
					zap.String("file", path), zap.Int("shape", i), zap.String("label", shape.Label))
				continue
			}
			points = append(points, frame.Point(p[0], p[1]))
		}
		features = append(features, models.NewAnnotationFeature(standard, models.FeatureTypeFromShape(shape.ShapeType), points, view))
	}
	return features, nil
}
