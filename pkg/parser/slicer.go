package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/viant/afs/url"
	"go.uber.org/zap"

	"annotationqc/internal/models"
	"annotationqc/pkg/normalize"
)

const (
	keypointSuffix     = ".mrk.json"
	segmentationSuffix = ".seg.nrrd"

	segmentKeyPrefix    = "Segment"
	labelValueKeySuffix = "_LabelValue"
	nameKeySuffix       = "_Name"
)

// markupsDocument is the part of a Slicer .mrk.json file we read
type markupsDocument struct {
	Markups []struct {
		ControlPoints []struct {
			Position []float64 `json:"position"`
		} `json:"controlPoints"`
	} `json:"markups"`
}

// Slicer parses 3D Slicer case directories: one .mrk.json keypoint file per
// structure, plus an optional .seg.nrrd segmentation whose header names the
// segmented regions.
type Slicer struct {
	env *env
}

// rawKeypoint is a buffered world-space point waiting for normalization
type rawKeypoint struct {
	label string
	index int
}

// Parse walks a case directory. Keypoints are normalized over the extent of
// every keypoint in the case; segments become placeholder region features.
func (s *Slicer) Parse(ctx context.Context, dir, view string) ([]models.AnnotationFeature, error) {
	object, err := s.env.fs.Object(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !object.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	keypointFiles, segmentationFiles, err := s.collect(ctx, dir)
	if err != nil {
		return nil, err
	}

	features, err := s.keypoints(ctx, keypointFiles, dir, view)
	if err != nil {
		return nil, err
	}

	segments, err := s.segments(ctx, segmentationFiles, dir, view)
	if err != nil {
		return nil, err
	}
	return append(features, segments...), nil
}

// collect walks dir and returns keypoint and segmentation URLs in walk order
func (s *Slicer) collect(ctx context.Context, dir string) (keypoints, segmentations []string, err error) {
	visitor := func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if info.IsDir() {
			return true, nil
		}
		name := strings.ToLower(info.Name())
		location := url.Join(baseURL, path.Join(parent, info.Name()))
		switch {
		case strings.HasSuffix(name, keypointSuffix):
			keypoints = append(keypoints, location)
		case strings.HasSuffix(name, segmentationSuffix):
			segmentations = append(segmentations, location)
		}
		return true, nil
	}
	if err := s.env.fs.Walk(ctx, dir, visitor); err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(keypoints)
	sort.Strings(segmentations)
	return keypoints, segmentations, nil
}

// keypointLabel derives the native label from a file name: "L1.mrk.json" -> "L1"
func keypointLabel(location string) string {
	name := path.Base(location)
	return name[:len(name)-len(keypointSuffix)]
}

func (s *Slicer) keypoints(ctx context.Context, files []string, dir, view string) ([]models.AnnotationFeature, error) {
	extent := &normalize.Extent{}
	var buffered []rawKeypoint

	for _, location := range files {
		standard, ok, err := s.env.standardLabel(keypointLabel(location), view)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		positions, err := s.readControlPoints(ctx, location)
		if err != nil {
			s.env.logger.Warn("failed to parse Slicer keypoint file", zap.String("file", location), zap.Error(err))
			continue
		}
		for _, pos := range positions {
			if len(pos) < 2 {
				continue
			}
			buffered = append(buffered, rawKeypoint{label: standard, index: extent.Add(pos[0], pos[1])})
		}
	}

	if extent.Len() == 0 {
		s.env.logger.Warn("no Slicer keypoints found, skipping keypoint checks", zap.String("dir", dir))
		return nil, nil
	}

	points := s.env.normalizer.Normalize(extent)
	features := make([]models.AnnotationFeature, 0, len(buffered))
	for _, kp := range buffered {
		features = append(features, models.NewAnnotationFeature(kp.label, models.FeaturePoint, []models.Point{points[kp.index]}, view))
	}

	width, height := extent.Size()
	s.env.logger.Info("Slicer keypoints normalized using dynamic extent",
		zap.String("dir", dir), zap.Int("points", extent.Len()),
		zap.Float64("x_range", width), zap.Float64("y_range", height))
	return features, nil
}

func (s *Slicer) readControlPoints(ctx context.Context, location string) ([][]float64, error) {
	data, err := s.env.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, err
	}
	var doc markupsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Markups) == 0 {
		return nil, fmt.Errorf("no markups in %s", path.Base(location))
	}
	positions := make([][]float64, 0, len(doc.Markups[0].ControlPoints))
	for _, cp := range doc.Markups[0].ControlPoints {
		positions = append(positions, cp.Position)
	}
	return positions, nil
}

// segments reads the first segmentation file and emits one region feature per
// mapped segment name. Metadata carries no boundary, so the geometry is a
// single placeholder point in the middle of the frame.
func (s *Slicer) segments(ctx context.Context, files []string, dir, view string) ([]models.AnnotationFeature, error) {
	if len(files) == 0 {
		s.env.logger.Warn("segmentation file (*.seg.nrrd) not found", zap.String("dir", dir))
		return nil, nil
	}
	if len(files) > 1 {
		s.env.logger.Warn("multiple segmentation files found, using the first",
			zap.String("dir", dir), zap.Strings("files", files))
	}

	metadata, err := s.env.metadata.ReadMetadata(ctx, files[0])
	if err != nil {
		s.env.logger.Error("failed to read segmentation metadata", zap.String("file", files[0]), zap.Error(err))
		return nil, nil
	}

	names := SegmentNames(metadata)
	if len(names) == 0 {
		s.env.logger.Warn("segmentation header found, but no segment names could be extracted", zap.String("file", files[0]))
		return nil, nil
	}
	s.env.logger.Info("found segmentation labels", zap.String("file", files[0]), zap.Int("count", len(names)))

	center := s.env.normalizer.Scale / 2
	var features []models.AnnotationFeature
	for _, name := range names {
		standard, ok, err := s.env.standardLabel(name, view)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		feature := models.NewAnnotationFeature(standard, models.FeaturePolygon, []models.Point{{X: center, Y: center}}, view)
		feature.Approximate = true
		features = append(features, feature)
	}
	return features, nil
}

// SegmentNames pairs every "<base>_LabelValue" key with the "<base>_Name"
// value of the same segment. Pairs without a name are skipped. Segments are
// returned in index order (Segment2 before Segment10).
func SegmentNames(metadata map[string]string) []string {
	var bases []string
	for key := range metadata {
		if strings.HasPrefix(key, segmentKeyPrefix) && strings.HasSuffix(key, labelValueKeySuffix) {
			bases = append(bases, strings.TrimSuffix(key, labelValueKeySuffix))
		}
	}
	sort.Slice(bases, func(i, j int) bool {
		ni, errI := strconv.Atoi(strings.TrimPrefix(bases[i], segmentKeyPrefix))
		nj, errJ := strconv.Atoi(strings.TrimPrefix(bases[j], segmentKeyPrefix))
		switch {
		case errI == nil && errJ == nil && ni != nj:
			return ni < nj
		case (errI == nil) != (errJ == nil):
			return errI == nil
		default:
			return bases[i] < bases[j]
		}
	})

	var names []string
	for _, base := range bases {
		if name := metadata[base+nameKeySuffix]; name != "" {
			names = append(names, name)
		}
	}
	return names
}
