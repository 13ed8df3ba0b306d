package qc

import (
	"fmt"
	"strings"

	"annotationqc/internal/models"
	"annotationqc/pkg/config"
)

const (
	defaultVariationLabel       = "L5"
	defaultVariationPredecessor = "L4"

	maxListedMissing = 5
	maxListedExtra   = 3
)

func listed(labels []string, max int) string {
	if len(labels) <= max {
		return strings.Join(labels, ", ")
	}
	return strings.Join(labels[:max], ", ") + ", ..."
}

func setOf(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return set
}

// checkSegmentationCompleteness verifies the required group is segmented,
// flags extra and optional segments, the anatomical-variation gap and, when
// asked, the top-to-bottom order of the present segments
func (e *Engine) checkSegmentationCompleteness(ruleID string, params config.SegmentationParams, features []models.AnnotationFeature) (models.QCResult, error) {
	group, ok := e.groups[params.RequiredLabelsGroup]
	if !ok {
		return models.QCResult{}, fmt.Errorf("unknown required_labels_group %q", params.RequiredLabelsGroup)
	}
	required := e.order.Sort(uniq(group))
	requiredSet := setOf(required)
	optional := e.order.Sort(uniq(params.OptionalLabels))

	expectedSet := setOf(required)
	for _, l := range optional {
		expectedSet[l] = true
	}
	expected := e.order.Sort(keys(expectedSet))

	labelType := models.FeatureType(params.LabelType)
	if labelType == "" {
		labelType = models.FeaturePolygon
	}
	presentSet := map[string]bool{}
	for _, f := range features {
		if f.Type == labelType {
			presentSet[f.Label] = true
		}
	}

	status := models.StatusPass
	var messages []string

	var missing []string
	for _, l := range required {
		if !presentSet[l] {
			missing = append(missing, l)
		}
	}
	minCount := len(required)
	if params.RequiredMinCount != nil {
		minCount = *params.RequiredMinCount
	}
	presentRequired := len(required) - len(missing)
	switch {
	case presentRequired < minCount:
		status = status.Escalate(models.StatusFail)
		messages = append(messages, fmt.Sprintf("[SEVERE MISSING/Fail] required label count (%d) below minimum (%d). missing: %s",
			presentRequired, minCount, listed(missing, maxListedMissing)))
	case len(missing) > 0:
		status = status.Escalate(models.StatusWarning)
		messages = append(messages, fmt.Sprintf("[MISSING/Warning] %d required label(s) missing (%s), possible mislabeling.",
			len(missing), listed(missing, maxListedMissing)))
	}

	var extra []string
	for _, l := range e.order.Sort(keys(presentSet)) {
		if !expectedSet[l] {
			extra = append(extra, l)
		}
	}
	if len(extra) > 0 {
		status = status.Escalate(models.StatusWarning)
		messages = append(messages, fmt.Sprintf("[EXTRA/Warning] %d unexpected segment(s) (%s).", len(extra), listed(extra, maxListedExtra)))
	}

	variation, predecessor := params.VariationLabel, params.VariationPredecessor
	if variation == "" {
		variation = defaultVariationLabel
	}
	if predecessor == "" {
		predecessor = defaultVariationPredecessor
	}
	if requiredSet[variation] && !presentSet[variation] &&
		requiredSet[predecessor] && presentSet[predecessor] && status != models.StatusFail {
		status = status.Escalate(models.StatusWarning)
		messages = append(messages, fmt.Sprintf("[%s MISSING/Warning] %s missing below %s, check for anatomical variation (e.g. sacralization) or a missed label.",
			variation, variation, predecessor))
	}

	var presentOptional []string
	for _, l := range optional {
		if presentSet[l] {
			presentOptional = append(presentOptional, l)
		}
	}
	if len(presentOptional) > 0 {
		messages = append(messages, fmt.Sprintf("[SPECIAL] optional label(s) present: %s.", strings.Join(presentOptional, ", ")))
	}

	if params.SequenceCheck {
		var presentExpected []string
		for _, l := range expected {
			if presentSet[l] {
				presentExpected = append(presentExpected, l)
			}
		}
		ordered, explanation := e.sequence.Check(features, presentExpected, labelType)
		switch {
		case !ordered:
			status = status.Escalate(models.StatusFail)
			messages = append(messages, "[ORDER/Fail] "+explanation)
		case len(missing) == 0 && len(extra) == 0 && status == models.StatusPass:
			messages = append(messages, "segmentation order is correct.")
		}
	}

	message := passedMessage
	if len(messages) > 0 {
		message = strings.Join(messages, "; ")
	}
	return models.QCResult{RuleID: ruleID, Status: status, Message: message, FeatureLabels: expected}, nil
}

func uniq(labels []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
