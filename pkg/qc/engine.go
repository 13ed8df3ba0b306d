// Package qc evaluates declarative quality rules against the normalized
// annotation features of one case.
package qc

import (
	"fmt"

	"go.uber.org/zap"

	"annotationqc/internal/models"
	"annotationqc/pkg/config"
	"annotationqc/pkg/interpolation"
)

// PositionTolerance is the default positional tolerance in a 0..1000 frame
const PositionTolerance = config.DefaultPositionTolerance

// RuleEvaluationError wraps anything that went wrong inside one rule.
// It never leaves the engine: Run turns it into a Fail result.
type RuleEvaluationError struct {
	RuleID string
	Err    error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error { return e.Err }

// Engine runs the configured rules. It only reads its configuration, so one
// engine can serve many cases concurrently.
type Engine struct {
	rules      []config.Rule
	groups     map[string][]string
	order      *interpolation.AnatomicalOrder
	references *interpolation.ReferenceInterpolator
	tolerance  float64
	sequence   SequenceChecker
	logger     *zap.Logger
}

// NewEngine creates an engine for a validated configuration
func NewEngine(cfg *config.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	tolerance := cfg.Settings.PositionTolerance
	order := interpolation.NewAnatomicalOrder(cfg.Settings.StandardSpinalSequence)
	return &Engine{
		rules:      cfg.Rules,
		groups:     cfg.VertebraRangeGroups,
		order:      order,
		references: interpolation.NewReferenceInterpolator(order, cfg.Settings.NormalizationScale),
		tolerance:  tolerance,
		sequence:   SequenceChecker{Tolerance: tolerance},
		logger:     logger,
	}
}

// Run evaluates every rule enabled for view, in configuration order, and
// returns one result per rule. A failing rule never stops the others.
func (e *Engine) Run(features []models.AnnotationFeature, view string) []models.QCResult {
	viewFeatures := make([]models.AnnotationFeature, 0, len(features))
	for _, f := range features {
		if f.View == view {
			viewFeatures = append(viewFeatures, f)
		}
	}

	var results []models.QCResult
	for _, rule := range e.rules {
		if !rule.Enabled || rule.View != view {
			continue
		}
		result, err := e.evaluate(rule, viewFeatures)
		if err != nil {
			e.logger.Error("rule evaluation failed", zap.String("rule", rule.ID), zap.Error(err))
			result = models.QCResult{
				RuleID:  rule.ID,
				Status:  models.StatusFail,
				Message: fmt.Sprintf("rule evaluation error: %v", err),
			}
		}
		result.Message = rule.DisplayName() + ": " + result.Message
		e.logger.Debug("rule evaluated", zap.String("rule", rule.ID), zap.String("status", string(result.Status)))
		results = append(results, result)
	}
	return results
}

func (e *Engine) evaluate(rule config.Rule, features []models.AnnotationFeature) (result models.QCResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuleEvaluationError{RuleID: rule.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	switch rule.CheckType {
	case config.CheckPointPosition:
		var params config.PointPositionParams
		if err := rule.DecodeParams(&params); err != nil {
			return result, &RuleEvaluationError{RuleID: rule.ID, Err: err}
		}
		result, err = e.checkPointPosition(rule.ID, params, features)
	case config.CheckSegmentationCompleteness:
		var params config.SegmentationParams
		if err := rule.DecodeParams(&params); err != nil {
			return result, &RuleEvaluationError{RuleID: rule.ID, Err: err}
		}
		result, err = e.checkSegmentationCompleteness(rule.ID, params, features)
	default:
		return models.QCResult{
			RuleID:  rule.ID,
			Status:  models.StatusWarning,
			Message: fmt.Sprintf("unknown check type: %s", rule.CheckType),
		}, nil
	}
	if err != nil {
		return result, &RuleEvaluationError{RuleID: rule.ID, Err: err}
	}
	return result, nil
}

// referenceCenter finds the center of a reference label. Real features win;
// an ordered anatomical label absent from the data falls back to its
// synthetic interpolated center.
func (e *Engine) referenceCenter(features []models.AnnotationFeature, label string) (center models.Point, synthetic, ok bool) {
	if f := models.FindCentered(features, label); f != nil {
		return *f.Center, false, true
	}
	if p, ok := e.references.Reference(label); ok {
		return p, true, true
	}
	return models.Point{}, false, false
}
