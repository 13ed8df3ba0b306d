package qc

import (
	"fmt"
	"strings"

	"annotationqc/internal/models"
	"annotationqc/pkg/config"
)

// Position check kinds
const (
	checkAbsoluteX = "ABSOLUTE_X"
	checkAbsoluteY = "ABSOLUTE_Y"
	checkRelativeX = "RELATIVE_X"
	checkRelativeY = "RELATIVE_Y"
)

const passedMessage = "passed."

// buffered compares value against bound with the tolerance widening the
// bound in the permissive direction
func (e *Engine) buffered(value, bound float64, operator string) (bool, error) {
	switch operator {
	case "<":
		return value < bound+e.tolerance, nil
	case ">":
		return value > bound-e.tolerance, nil
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

func axisOf(check string) (string, func(models.Point) float64) {
	if strings.HasSuffix(check, "_Y") {
		return "Y", func(p models.Point) float64 { return p.Y }
	}
	return "X", func(p models.Point) float64 { return p.X }
}

// checkPointPosition verifies required labels exist and their centers satisfy
// absolute (Fail) and relative (Warning) positional constraints
func (e *Engine) checkPointPosition(ruleID string, params config.PointPositionParams, features []models.AnnotationFeature) (models.QCResult, error) {
	status := models.StatusPass
	var messages []string
	var labels []string

	for _, target := range params.TargetLabels {
		f := models.FindByLabel(features, target.Label)
		switch {
		case f == nil && target.Required:
			status = status.Escalate(models.StatusFail)
			messages = append(messages, fmt.Sprintf("[MISSING/Fail] required label '%s' not found.", target.Label))
		case f != nil:
			labels = append(labels, target.Label)
		}
	}

	for _, rule := range params.PositionRules {
		target := models.FindCentered(features, rule.Target)
		if target == nil {
			continue
		}
		axis, coord := axisOf(rule.Check)
		value := coord(*target.Center)

		var (
			level    models.Status
			bound    float64
			expected string
		)
		switch rule.Check {
		case checkAbsoluteX, checkAbsoluteY:
			level = models.StatusFail
			bound = rule.Threshold
			expected = fmt.Sprintf("%s %s %.1f", axis, rule.Operator, rule.Threshold)
		case checkRelativeX, checkRelativeY:
			ref, synthetic, ok := e.referenceCenter(features, rule.RelativeTo)
			if !ok {
				status = status.Escalate(models.StatusWarning)
				messages = append(messages, fmt.Sprintf("[Warning] reference label '%s' missing, relative check on '%s' skipped.", rule.RelativeTo, rule.Target))
				continue
			}
			level = models.StatusWarning
			bound = coord(ref)
			source := ""
			if synthetic {
				source = ", synthetic reference"
			}
			expected = fmt.Sprintf("%s %s %s of '%s' (%.1f%s)", axis, rule.Operator, axis, rule.RelativeTo, bound, source)
		default:
			status = status.Escalate(models.StatusWarning)
			messages = append(messages, fmt.Sprintf("[Warning] unknown position check '%s' on '%s' skipped.", rule.Check, rule.Target))
			continue
		}

		passed, err := e.buffered(value, bound, rule.Operator)
		if err != nil {
			return models.QCResult{}, fmt.Errorf("position rule on '%s': %w", rule.Target, err)
		}
		if passed {
			continue
		}
		status = status.Escalate(level)
		detail := ""
		if rule.Message != "" {
			detail = " (" + rule.Message + ")"
		}
		messages = append(messages, fmt.Sprintf("[MISPLACED/%s] label '%s' position error%s. actual %s: %.1f, expected: %s.",
			level, rule.Target, detail, axis, value, expected))
	}

	message := passedMessage
	if len(messages) > 0 {
		message = strings.Join(messages, "; ")
	}
	return models.QCResult{RuleID: ruleID, Status: status, Message: message, FeatureLabels: labels}, nil
}
