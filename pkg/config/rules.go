package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Check types understood by the rule engine
const (
	CheckPointPosition            = "POINT_POSITION_CHECK"
	CheckSegmentationCompleteness = "SEGMENTATION_COMPLETENESS"
)

// Rule is one declarative quality rule. Params stays an undecoded YAML node
// until the engine knows which check type it belongs to.
type Rule struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name,omitempty"`
	NameCN    string    `yaml:"name_cn,omitempty"`
	CheckType string    `yaml:"check_type"`
	View      string    `yaml:"view"`
	Enabled   bool      `yaml:"enabled"`
	Params    yaml.Node `yaml:"params,omitempty"`
}

// NewRule builds an enabled rule, encoding params into the opaque node
func NewRule(id, checkType, view string, params interface{}) (Rule, error) {
	rule := Rule{ID: id, CheckType: checkType, View: view, Enabled: true}
	if params != nil {
		if err := rule.Params.Encode(params); err != nil {
			return Rule{}, fmt.Errorf("rule %s: encode params: %w", id, err)
		}
	}
	return rule, nil
}

// DisplayName is the name used as message prefix in reports
func (r Rule) DisplayName() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.NameCN != "":
		return r.NameCN
	default:
		return r.ID
	}
}

// DecodeParams decodes the rule parameters into v
func (r Rule) DecodeParams(v interface{}) error {
	if r.Params.Kind == 0 {
		return nil
	}
	return r.Params.Decode(v)
}

// TargetLabel is a label a POINT_POSITION_CHECK looks for
type TargetLabel struct {
	Label    string `yaml:"label"`
	Required bool   `yaml:"required"`
}

// PositionRule is one absolute or relative positional constraint
type PositionRule struct {
	Target     string  `yaml:"target"`
	Check      string  `yaml:"check"`
	Operator   string  `yaml:"operator"`
	Threshold  float64 `yaml:"threshold,omitempty"`
	RelativeTo string  `yaml:"relative_to,omitempty"`
	Message    string  `yaml:"message,omitempty"`
}

// PointPositionParams are the params of POINT_POSITION_CHECK
type PointPositionParams struct {
	TargetLabels  []TargetLabel  `yaml:"target_labels"`
	PositionRules []PositionRule `yaml:"position_rules,omitempty"`
}

// SegmentationParams are the params of SEGMENTATION_COMPLETENESS
type SegmentationParams struct {
	// RequiredLabelsGroup names an entry of vertebra_range_groups
	RequiredLabelsGroup string `yaml:"required_labels_group"`

	OptionalLabels []string `yaml:"optional_labels,omitempty"`

	// LabelType restricts the check to one feature type, polygon when empty
	LabelType string `yaml:"label_type,omitempty"`

	// RequiredMinCount defaults to the size of the required group when absent.
	// An explicit 0 turns missing required labels into warnings.
	RequiredMinCount *int `yaml:"required_min_count,omitempty"`

	SequenceCheck bool `yaml:"sequence_check,omitempty"`

	// VariationLabel may be absent through anatomical variation (L5 by default)
	VariationLabel string `yaml:"variation_label,omitempty"`

	// VariationPredecessor is the label right above VariationLabel (L4 by default)
	VariationPredecessor string `yaml:"variation_predecessor,omitempty"`
}
