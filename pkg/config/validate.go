package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrLabelMapCycle is returned when _extends chains loop back on themselves
var ErrLabelMapCycle = errors.New("label map cycle")

// ConfigError reports a missing or malformed configuration. It is fatal:
// no case is processed with a configuration that fails validation.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

func invalid(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants the parser and engine rely on
func (c *Config) Validate() error {
	if c.Settings.NormalizationScale <= 0 {
		return invalid("normalization_scale must be positive, got %v", c.Settings.NormalizationScale)
	}
	if c.Settings.PositionTolerance < 0 {
		return invalid("position_tolerance must not be negative, got %v", c.Settings.PositionTolerance)
	}
	if len(c.Settings.StandardSpinalSequence) == 0 {
		return invalid("standard_spinal_sequence is empty")
	}

	seen := make(map[string]bool, len(c.Rules))
	for i, rule := range c.Rules {
		switch {
		case rule.ID == "":
			return invalid("rules[%d]: missing id", i)
		case rule.CheckType == "":
			return invalid("rule %s: missing check_type", rule.ID)
		case rule.View == "":
			return invalid("rule %s: missing view", rule.ID)
		case seen[rule.ID]:
			return invalid("rule %s: duplicate id", rule.ID)
		}
		seen[rule.ID] = true
	}

	for _, view := range c.views() {
		if err := ExtendsCycle(c.LabelMapping, view); err != nil {
			return &ConfigError{Reason: "label_mapping", Err: err}
		}
	}
	return nil
}

// views returns the label map views in a stable order
func (c *Config) views() []string {
	views := make([]string, 0, len(c.LabelMapping))
	for view := range c.LabelMapping {
		views = append(views, view)
	}
	sort.Strings(views)
	return views
}

// ExtendsCycle follows the _extends chain from view. A loop is reported as
// ErrLabelMapCycle naming the chain, e.g. "label map cycle: AP -> LAT -> AP".
// A parent that is not declared ends the chain.
func ExtendsCycle(mapping map[string]ViewLabelMap, view string) error {
	visited := map[string]bool{}
	var chain []string
	for current := view; current != ""; {
		chain = append(chain, current)
		if visited[current] {
			return fmt.Errorf("%w: %s", ErrLabelMapCycle, strings.Join(chain, " -> "))
		}
		visited[current] = true
		current = mapping[current].Extends
	}
	return nil
}
