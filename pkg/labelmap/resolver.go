// Package labelmap resolves the per-view mapping between tool-specific labels
// and standard medical labels, following the _extends inheritance chain.
package labelmap

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"annotationqc/pkg/config"
)

// ErrLabelMapCycle is returned when _extends chains loop back on themselves
var ErrLabelMapCycle = config.ErrLabelMapCycle

// Map is the effective standard-to-actual mapping of one view. Keys keep the
// order in which they were first declared along the inheritance chain.
type Map struct {
	order    []string
	synonyms map[string][]string
}

// Labels returns the standard labels in declaration order
func (m Map) Labels() []string {
	return append([]string(nil), m.order...)
}

// Synonyms returns the actual labels declared for a standard label
func (m Map) Synonyms(standard string) []string {
	return m.synonyms[standard]
}

// Len returns the number of standard labels
func (m Map) Len() int { return len(m.order) }

// set overlays one entry, keeping the original position of an existing key
func (m *Map) set(standard string, actual []string) {
	if m.synonyms == nil {
		m.synonyms = map[string][]string{}
	}
	if _, ok := m.synonyms[standard]; !ok {
		m.order = append(m.order, standard)
	}
	m.synonyms[standard] = actual
}

func (m Map) clone() Map {
	out := Map{order: append([]string(nil), m.order...), synonyms: make(map[string][]string, len(m.synonyms))}
	for k, v := range m.synonyms {
		out.synonyms[k] = v
	}
	return out
}

// Collision is a synonym claimed by more than one standard label in a view
type Collision struct {
	View     string
	Actual   string
	Standard []string
}

func (c Collision) String() string {
	return fmt.Sprintf("view %s: synonym %q declared by %s", c.View, c.Actual, strings.Join(c.Standard, ", "))
}

// Resolver resolves effective and reverse label maps. It caches the reverse
// map of the most recently requested view; a different view recomputes it.
type Resolver struct {
	mapping map[string]config.ViewLabelMap

	mu          sync.Mutex
	cachedView  string
	cachedValid bool
	reverse     map[string]string
}

// New creates a resolver over the label_mapping block of a configuration
func New(mapping map[string]config.ViewLabelMap) *Resolver {
	return &Resolver{mapping: mapping}
}

// EffectiveMap returns the view's own entries overlaid on its parent's
// effective map. A child entry replaces the parent's synonym list for the same
// standard label; lists are never merged. Views without a mapping yield an
// empty map.
func (r *Resolver) EffectiveMap(view string) (Map, error) {
	if err := config.ExtendsCycle(r.mapping, view); err != nil {
		return Map{}, err
	}
	return r.effective(view), nil
}

// effective overlays the chain from view; the chain must be acyclic
func (r *Resolver) effective(view string) Map {
	viewCfg, ok := r.mapping[view]
	if !ok {
		return Map{}
	}

	var result Map
	if viewCfg.Extends != "" {
		result = r.effective(viewCfg.Extends).clone()
	}
	for _, entry := range viewCfg.StandardToActual {
		result.set(entry.Standard, entry.Actual)
	}
	return result
}

// ReverseMap inverts the effective map of a view. When two standard labels
// share a synonym, the one iterated later wins. The caller owns the returned map.
func (r *Resolver) ReverseMap(view string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reverse, err := r.reverseLocked(view)
	if err != nil {
		return nil, err
	}
	return maps.Clone(reverse), nil
}

func (r *Resolver) reverseLocked(view string) (map[string]string, error) {
	if r.cachedValid && r.cachedView == view {
		return r.reverse, nil
	}
	effective, err := r.EffectiveMap(view)
	if err != nil {
		return nil, err
	}
	reverse := make(map[string]string)
	for _, standard := range effective.order {
		for _, actual := range effective.synonyms[standard] {
			reverse[actual] = standard
		}
	}
	r.cachedView, r.cachedValid, r.reverse = view, true, reverse
	return reverse, nil
}

// Lookup maps an actual label to its standard label for a view
func (r *Resolver) Lookup(actual, view string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reverse, err := r.reverseLocked(view)
	if err != nil {
		return "", false, err
	}
	standard, ok := reverse[actual]
	return standard, ok, nil
}

// Collisions lists synonyms that more than one standard label declares in
// the effective map of a view
func (r *Resolver) Collisions(view string) ([]Collision, error) {
	effective, err := r.EffectiveMap(view)
	if err != nil {
		return nil, err
	}
	owners := map[string][]string{}
	var actuals []string
	for _, standard := range effective.order {
		for _, actual := range effective.synonyms[standard] {
			if _, ok := owners[actual]; !ok {
				actuals = append(actuals, actual)
			}
			if !contains(owners[actual], standard) {
				owners[actual] = append(owners[actual], standard)
			}
		}
	}
	var collisions []Collision
	for _, actual := range actuals {
		if len(owners[actual]) > 1 {
			collisions = append(collisions, Collision{View: view, Actual: actual, Standard: owners[actual]})
		}
	}
	return collisions, nil
}

// Validate checks every declared view for inheritance cycles and synonym
// collisions, reporting the first problem as a *config.ConfigError
func (r *Resolver) Validate() error {
	views := make([]string, 0, len(r.mapping))
	for view := range r.mapping {
		views = append(views, view)
	}
	sort.Strings(views)

	for _, view := range views {
		collisions, err := r.Collisions(view)
		if err != nil {
			return &config.ConfigError{Reason: "label_mapping", Err: err}
		}
		if len(collisions) > 0 {
			msgs := make([]string, len(collisions))
			for i, c := range collisions {
				msgs[i] = c.String()
			}
			return &config.ConfigError{Reason: "synonym collision: " + strings.Join(msgs, "; ")}
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
