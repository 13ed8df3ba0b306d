// Package pipeline discovers the cases of a dataset, parses and evaluates
// them, and accumulates the results of a run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"annotationqc/internal/models"
	"annotationqc/pkg/config"
	"annotationqc/pkg/labelmap"
	"annotationqc/pkg/parser"
	"annotationqc/pkg/qc"
)

// CaseRuleID is the rule id of the synthetic result recorded for a case
// that could not be parsed or evaluated
const CaseRuleID = "CASE"

// Params holds the run parameters. Empty fields fall back to the
// configuration's current_run_context.
type Params struct {
	// Config is the loaded configuration
	Config *config.Config

	// BasePath is the dataset root
	BasePath string

	// Tool is the annotator tool name
	Tool string

	// View is the anatomical view evaluated
	View string

	// StructureID selects the path template
	StructureID string

	// Workers is the number of cases processed concurrently, 1 when unset
	Workers int

	// Logger receives progress and parse warnings
	Logger *zap.Logger

	// FS is the storage service used to walk and read case data
	FS afs.Service
}

// Runner processes every case of a dataset with one parser and one engine
type Runner struct {
	params *Params
	parser *parser.Dispatcher
	engine *qc.Engine
	fs     afs.Service
	logger *zap.Logger
}

// NewRunner validates the configuration and prepares the parser and engine
func NewRunner(params *Params) (*Runner, error) {
	if params.Config == nil {
		return nil, &config.ConfigError{Reason: "no configuration"}
	}
	if err := params.Config.Validate(); err != nil {
		return nil, err
	}
	if err := labelmap.New(params.Config.LabelMapping).Validate(); err != nil {
		return nil, err
	}

	p := *params
	run := p.Config.RunContext
	if p.BasePath == "" {
		p.BasePath = run.BaseDataPath
	}
	if p.Tool == "" {
		p.Tool = run.AnnotatorTool
	}
	if p.View == "" {
		p.View = run.DataView
	}
	if p.StructureID == "" {
		p.StructureID = run.StructureID
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.FS == nil {
		p.FS = afs.New()
	}

	return &Runner{
		params: &p,
		parser: parser.New(p.Config, parser.WithLogger(p.Logger), parser.WithFS(p.FS)),
		engine: qc.NewEngine(p.Config, p.Logger),
		fs:     p.FS,
		logger: p.Logger,
	}, nil
}

// Discover lists the cases of the dataset in discovery order
func (r *Runner) Discover(ctx context.Context) ([]Case, error) {
	p := r.params
	template, ok := p.Config.PathTemplates[p.StructureID]
	if !ok {
		return nil, &config.ConfigError{Reason: fmt.Sprintf("no path template for structure %q", p.StructureID)}
	}
	toolTemplate, ok := p.Config.ToolTemplate(p.Tool)
	if !ok {
		return nil, &config.ConfigError{Reason: fmt.Sprintf("no data_structure template for tool %q", p.Tool)}
	}
	if p.BasePath == "" {
		return nil, &config.ConfigError{Reason: "no base data path"}
	}
	exists, err := r.fs.Exists(ctx, p.BasePath)
	if err != nil {
		return nil, fmt.Errorf("check data path %s: %w", p.BasePath, err)
	}
	if !exists {
		return nil, fmt.Errorf("data path not found: %s", p.BasePath)
	}
	return discover(ctx, r.fs, p.BasePath, template, toolTemplate.FileType)
}

// outcome is what one worker reports for one case
type outcome struct {
	index  int
	result models.CaseResult
	empty  bool
}

// Process discovers and evaluates every case. At most Workers cases run
// at once and are reported in discovery order. A failing case is recorded
// and never stops the run; cancellation stops dispatching and returns the
// cases finished so far with the context error.
func (r *Runner) Process(ctx context.Context) (*Summary, error) {
	p := r.params
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !contains(r.parser.Tools(), p.Tool) {
		return nil, &parser.UnsupportedToolError{Tool: p.Tool}
	}

	cases, err := r.Discover(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info("discovered cases",
		zap.Int("cases", len(cases)), zap.String("path", p.BasePath),
		zap.String("tool", p.Tool), zap.String("view", p.View))

	outcomes := make(chan outcome)
	workers := &errgroup.Group{}
	workers.SetLimit(p.Workers)
	go func() {
		defer close(outcomes)
		for i := range cases {
			if ctx.Err() != nil {
				break
			}
			workers.Go(func() error {
				result, empty := r.processCase(ctx, cases[i])
				outcomes <- outcome{index: i, result: result, empty: empty}
				return nil
			})
		}
		_ = workers.Wait()
	}()

	done := make([]*outcome, len(cases))
	completed := 0
	for o := range outcomes {
		done[o.index] = &o
		completed++
		r.logger.Debug("case processed",
			zap.String("case", o.result.CaseID), zap.Int("completed", completed), zap.Int("total", len(cases)))
	}

	summary := &Summary{Tool: p.Tool, View: p.View, StructureID: p.StructureID, BasePath: p.BasePath}
	for _, o := range done {
		switch {
		case o == nil:
		case o.empty:
			summary.Empty = append(summary.Empty, o.result.CaseID)
		default:
			summary.Add(o.result)
		}
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// processCase parses and evaluates one case. The second result reports a
// case without features, which is logged and left out of the summary.
func (r *Runner) processCase(ctx context.Context, c Case) (models.CaseResult, bool) {
	p := r.params
	result := models.CaseResult{CaseID: c.ID, Tool: p.Tool, View: p.View, Path: c.Path}

	features, err := r.parser.Parse(ctx, c.Path, p.Tool, p.View)
	if err != nil {
		r.logger.Error("failed to process case", zap.String("case", c.ID), zap.String("path", c.Path), zap.Error(err))
		result.Err = err
		result.Results = []models.QCResult{{
			RuleID:  CaseRuleID,
			Status:  models.StatusFail,
			Message: fmt.Sprintf("case could not be processed: %v", err),
		}}
		return result, false
	}
	if len(features) == 0 {
		r.logger.Warn("no features found, case skipped", zap.String("case", c.ID), zap.String("path", c.Path))
		return result, true
	}

	if result.Fingerprint, err = Fingerprint(features); err != nil {
		r.logger.Warn("failed to fingerprint case", zap.String("case", c.ID), zap.Error(err))
	}
	result.Results = r.engine.Run(features, p.View)
	return result, false
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
