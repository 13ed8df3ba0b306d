// Package config provides configuration loading and management for annotationqc.
// It handles loading the QC configuration from YAML (or JSON) files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultNormalizationScale is the side of the normalized coordinate frame
	DefaultNormalizationScale = 1000.0

	// DefaultPositionTolerance is the positional tolerance in normalized units
	DefaultPositionTolerance = 5.0
)

// File types a tool template can declare
const (
	FileTypeSingle    = "single_file"
	FileTypeDirectory = "directory"
)

// Config represents the QC configuration loaded from YAML or JSON
type Config struct {
	// Settings holds the global normalization and ordering parameters
	Settings Settings `yaml:"config"`

	// LabelMapping holds the per-view label maps
	LabelMapping map[string]ViewLabelMap `yaml:"label_mapping"`

	// VertebraRangeGroups names groups of required anatomical labels
	VertebraRangeGroups map[string][]string `yaml:"vertebra_range_groups,omitempty"`

	// Rules is the ordered rule list
	Rules []Rule `yaml:"rules"`

	// RunContext selects the tool, view and dataset for a run
	RunContext RunContext `yaml:"current_run_context"`

	// DataStructure holds "<tool>_template" entries describing each tool's layout
	DataStructure map[string]ToolTemplate `yaml:"data_structure,omitempty"`

	// PathTemplates maps a structure id to a case path template such as "{CASE}/labels.json"
	PathTemplates map[string]string `yaml:"path_templates,omitempty"`
}

// Settings holds the "config" block
type Settings struct {
	// NormalizationScale is S, the side of the normalized frame
	NormalizationScale float64 `yaml:"normalization_scale"`

	// MirrorXAxis reflects X coordinates about the frame
	MirrorXAxis bool `yaml:"mirror_x_axis"`

	// StandardSpinalSequence defines the total anatomical order, top to bottom
	StandardSpinalSequence []string `yaml:"standard_spinal_sequence"`

	// SupportedAnnotators lists the tool names this configuration is prepared for
	SupportedAnnotators []string `yaml:"supported_annotators,omitempty"`

	// PositionTolerance widens positional comparisons, in normalized units
	PositionTolerance float64 `yaml:"position_tolerance"`
}

// ViewLabelMap is one view's entry in label_mapping
type ViewLabelMap struct {
	// Extends names the parent view merged underneath this one
	Extends string `yaml:"_extends,omitempty"`

	// StandardToActual maps standard labels to tool synonyms, in declaration order
	StandardToActual LabelEntries `yaml:"standard_to_actual_map"`
}

// LabelEntry is one standard label with its actual-label synonyms
type LabelEntry struct {
	Standard string
	Actual   []string
}

// LabelEntries keeps label map entries in the order they were declared,
// which decides the winner when two standard labels share a synonym.
type LabelEntries []LabelEntry

// UnmarshalYAML decodes a mapping node while preserving key order
func (e *LabelEntries) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("standard_to_actual_map: expected a mapping, got %s at line %d", kindName(node.Kind), node.Line)
	}
	entries := make(LabelEntries, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		entry := LabelEntry{Standard: key.Value}
		// non-list values declare the label but contribute no synonyms
		if value.Kind == yaml.SequenceNode {
			if err := value.Decode(&entry.Actual); err != nil {
				return fmt.Errorf("standard_to_actual_map[%s]: %w", key.Value, err)
			}
		}
		entries = append(entries, entry)
	}
	*e = entries
	return nil
}

// MarshalYAML encodes the entries back as an ordered mapping
func (e LabelEntries) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range e {
		value := &yaml.Node{}
		actual := entry.Actual
		if actual == nil {
			actual = []string{}
		}
		if err := value.Encode(actual); err != nil {
			return nil, err
		}
		value.Style = yaml.FlowStyle
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: entry.Standard}, value)
	}
	return node, nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "empty node"
	}
}

// RunContext holds the "current_run_context" block
type RunContext struct {
	AnnotatorTool string `yaml:"annotator_tool"`
	DataView      string `yaml:"data_view"`
	StructureID   string `yaml:"structure_id"`
	BaseDataPath  string `yaml:"base_data_path"`
}

// ToolTemplate describes how a tool lays out one case on disk
type ToolTemplate struct {
	// FileType is single_file or directory
	FileType string `yaml:"file_type"`
}

// ToolTemplate returns the data_structure template for a tool
func (c *Config) ToolTemplate(tool string) (ToolTemplate, bool) {
	t, ok := c.DataStructure[tool+"_template"]
	return t, ok
}

// DefaultConfig returns a configuration with default values: a frontal (AP)
// spine view, a lateral view inheriting from it, and one rule of each kind.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Settings.NormalizationScale = DefaultNormalizationScale
	cfg.Settings.MirrorXAxis = false
	cfg.Settings.PositionTolerance = DefaultPositionTolerance
	cfg.Settings.SupportedAnnotators = []string{"labelme", "slicer"}
	cfg.Settings.StandardSpinalSequence = []string{
		"C0", "C1", "C2", "C3", "C4", "C5", "C6", "C7",
		"T1", "T2", "T3", "T4", "T5", "T6", "T7", "T8", "T9", "T10", "T11", "T12",
		"L1", "L2", "L3", "L4", "L5", "L6",
	}

	cfg.LabelMapping = map[string]ViewLabelMap{
		"AP": {
			StandardToActual: LabelEntries{
				{Standard: "L1", Actual: []string{"L1", "l1", "Lumbar1"}},
				{Standard: "L2", Actual: []string{"L2", "l2", "Lumbar2"}},
				{Standard: "L3", Actual: []string{"L3", "l3", "Lumbar3"}},
				{Standard: "L4", Actual: []string{"L4", "l4", "Lumbar4"}},
				{Standard: "L5", Actual: []string{"L5", "l5", "Lumbar5"}},
				{Standard: "L6", Actual: []string{"L6", "l6"}},
				{Standard: "Sacrum", Actual: []string{"S", "sacrum", "S1"}},
				{Standard: "Pedicle_L", Actual: []string{"pedicle_left", "PL"}},
				{Standard: "Pedicle_R", Actual: []string{"pedicle_right", "PR"}},
			},
		},
		"LAT": {
			Extends: "AP",
			StandardToActual: LabelEntries{
				{Standard: "Sacrum", Actual: []string{"S1_endplate", "sacral_plate"}},
				{Standard: "Femoral_Head", Actual: []string{"femoral_head", "FH"}},
			},
		},
	}

	cfg.VertebraRangeGroups = map[string][]string{
		"lumbar": {"L1", "L2", "L3", "L4", "L5"},
	}

	pointParams := PointPositionParams{
		TargetLabels: []TargetLabel{
			{Label: "Pedicle_L", Required: true},
			{Label: "Pedicle_R", Required: true},
		},
		PositionRules: []PositionRule{
			{Target: "Pedicle_L", Check: "ABSOLUTE_X", Operator: "<", Threshold: 500, Message: "left pedicle must be on the left half"},
			{Target: "Pedicle_R", Check: "ABSOLUTE_X", Operator: ">", Threshold: 500, Message: "right pedicle must be on the right half"},
			{Target: "Sacrum", Check: "RELATIVE_Y", Operator: ">", RelativeTo: "L5", Message: "sacrum must lie below L5"},
		},
	}
	minCount := 4
	segParams := SegmentationParams{
		RequiredLabelsGroup: "lumbar",
		OptionalLabels:      []string{"L6"},
		LabelType:           "polygon",
		RequiredMinCount:    &minCount,
		SequenceCheck:       true,
	}
	cfg.Rules = []Rule{
		mustRule("AP_PEDICLE_POSITION", "Pedicle position", CheckPointPosition, "AP", pointParams),
		mustRule("AP_LUMBAR_SEGMENTATION", "Lumbar segmentation", CheckSegmentationCompleteness, "AP", segParams),
	}

	cfg.RunContext = RunContext{
		AnnotatorTool: "labelme",
		DataView:      "AP",
		StructureID:   "flat",
		BaseDataPath:  "data",
	}
	cfg.DataStructure = map[string]ToolTemplate{
		"labelme_template": {FileType: FileTypeSingle},
		"slicer_template":  {FileType: FileTypeDirectory},
	}
	cfg.PathTemplates = map[string]string{
		"flat":     "{CASE}.json",
		"per_case": "{CASE}",
	}

	return cfg
}

func mustRule(id, name, checkType, view string, params interface{}) Rule {
	rule, err := NewRule(id, checkType, view, params)
	if err != nil {
		panic(err)
	}
	rule.Name = name
	return rule
}

// applyDefaults fills the settings a configuration may leave out or set to
// an unusable zero
func (c *Config) applyDefaults() {
	if c.Settings.NormalizationScale == 0 {
		c.Settings.NormalizationScale = DefaultNormalizationScale
	}
}

// LoadConfig loads configuration from a YAML or JSON file and validates it.
// A missing or malformed file is a *ConfigError.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Path: configPath, Reason: "configuration file not found", Err: err}
		}
		return nil, &ConfigError{Path: configPath, Reason: "error reading config file", Err: err}
	}
	return ParseConfig(configPath, data)
}

// ParseConfig decodes and validates configuration bytes; path is used for error messages
func ParseConfig(path string, data []byte) (*Config, error) {
	cfg := &Config{}
	// seeded before decoding so an explicit position_tolerance of 0 is kept
	cfg.Settings.PositionTolerance = DefaultPositionTolerance
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Path: path, Reason: "error parsing config file", Err: err}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Path == "" {
			cfgErr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
