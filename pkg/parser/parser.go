// Package parser reads tool-specific annotation files and produces features
// with standard labels in normalized coordinates.
package parser

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/viant/afs"
	"go.uber.org/zap"

	"annotationqc/internal/models"
	"annotationqc/pkg/config"
	"annotationqc/pkg/labelmap"
	"annotationqc/pkg/normalize"
	"annotationqc/pkg/nrrd"
)

// Tool names understood by the default dispatcher
const (
	ToolLabelMe = "labelme"
	ToolSlicer  = "slicer"
)

// ErrNotDirectory is returned when a directory-based tool gets a file path
var ErrNotDirectory = errors.New("directory-based tool requires a directory path")

// UnsupportedToolError reports an annotator tool without a parser
type UnsupportedToolError struct {
	Tool string
}

func (e *UnsupportedToolError) Error() string {
	return fmt.Sprintf("unsupported annotator tool: %s", e.Tool)
}

// Parser turns one case (file or directory) into features for a view
type Parser interface {
	Parse(ctx context.Context, path, view string) ([]models.AnnotationFeature, error)
}

// MetadataReader supplies the key/value metadata of a segmentation file
type MetadataReader interface {
	ReadMetadata(ctx context.Context, URL string) (map[string]string, error)
}

// MetadataReaderFunc adapts a function to MetadataReader
type MetadataReaderFunc func(ctx context.Context, URL string) (map[string]string, error)

// ReadMetadata calls f
func (f MetadataReaderFunc) ReadMetadata(ctx context.Context, URL string) (map[string]string, error) {
	return f(ctx, URL)
}

// env is what every parser variant shares
type env struct {
	labels     *labelmap.Resolver
	normalizer normalize.Normalizer
	fs         afs.Service
	metadata   MetadataReader
	logger     *zap.Logger
}

// standardLabel maps an actual label; unmapped labels are tool clutter, not errors
func (e *env) standardLabel(actual, view string) (string, bool, error) {
	standard, ok, err := e.labels.Lookup(actual, view)
	if err != nil {
		return "", false, err
	}
	if !ok {
		e.logger.Debug("dropping unmapped label", zap.String("label", actual), zap.String("view", view))
	}
	return standard, ok, nil
}

// Option customizes a Dispatcher
type Option func(*env)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *env) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithFS sets the storage service used to walk and read case data
func WithFS(fs afs.Service) Option {
	return func(e *env) {
		if fs != nil {
			e.fs = fs
		}
	}
}

// WithMetadataReader replaces the segmentation metadata reader
func WithMetadataReader(reader MetadataReader) Option {
	return func(e *env) {
		if reader != nil {
			e.metadata = reader
		}
	}
}

// Dispatcher selects a parser by tool name
type Dispatcher struct {
	env     *env
	parsers map[string]Parser
}

// New creates a dispatcher with the LabelMe and Slicer parsers registered
func New(cfg *config.Config, opts ...Option) *Dispatcher {
	e := &env{
		labels:     labelmap.New(cfg.LabelMapping),
		normalizer: normalize.New(cfg.Settings.NormalizationScale, cfg.Settings.MirrorXAxis),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fs == nil {
		e.fs = afs.New()
	}
	if e.metadata == nil {
		e.metadata = nrrd.NewReader(e.fs)
	}

	d := &Dispatcher{env: e, parsers: map[string]Parser{}}
	d.Register(ToolLabelMe, &LabelMe{env: e})
	d.Register(ToolSlicer, &Slicer{env: e})
	return d
}

// Register adds or replaces the parser for a tool
func (d *Dispatcher) Register(tool string, p Parser) {
	d.parsers[tool] = p
}

// Tools lists the registered tool names
func (d *Dispatcher) Tools() []string {
	tools := make([]string, 0, len(d.parsers))
	for tool := range d.parsers {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	return tools
}

// Parse reads one case with the parser registered for tool
func (d *Dispatcher) Parse(ctx context.Context, path, tool, view string) ([]models.AnnotationFeature, error) {
	p, ok := d.parsers[tool]
	if !ok {
		return nil, &UnsupportedToolError{Tool: tool}
	}
	return p.Parse(ctx, path, view)
}
