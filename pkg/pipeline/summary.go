package pipeline

import (
	"sort"

	"annotationqc/internal/models"
)

// Summary accumulates the results of one run
type Summary struct {
	Tool        string
	View        string
	StructureID string
	BasePath    string

	// Cases holds the evaluated cases in discovery order
	Cases []models.CaseResult

	// Empty lists the case ids that produced no features and were not evaluated
	Empty []string
}

// Add appends a case result
func (s *Summary) Add(result models.CaseResult) {
	s.Cases = append(s.Cases, result)
}

// Totals counts processed cases and splits the ones that did not pass
// into failing and warning
func (s *Summary) Totals() (processed, passed, failed, warned int) {
	for _, c := range s.Cases {
		switch c.Overall() {
		case models.StatusFail:
			failed++
		case models.StatusWarning:
			warned++
		default:
			passed++
		}
	}
	return len(s.Cases), passed, failed, warned
}

// Issues returns the cases that did not pass, Fail before Warning, keeping
// discovery order within a status
func (s *Summary) Issues() []models.CaseResult {
	var issues []models.CaseResult
	for _, c := range s.Cases {
		if c.Overall().Severe() {
			issues = append(issues, c)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Overall() == models.StatusFail && issues[j].Overall() != models.StatusFail
	})
	return issues
}

// Duplicates groups the ids of cases with identical feature fingerprints.
// Groups are ordered by their first case; cases that failed to parse are ignored.
func (s *Summary) Duplicates() [][]string {
	groups := map[uint64][]string{}
	var order []uint64
	for _, c := range s.Cases {
		if c.Err != nil || c.Fingerprint == 0 {
			continue
		}
		if _, ok := groups[c.Fingerprint]; !ok {
			order = append(order, c.Fingerprint)
		}
		groups[c.Fingerprint] = append(groups[c.Fingerprint], c.CaseID)
	}
	var duplicates [][]string
	for _, fp := range order {
		if len(groups[fp]) > 1 {
			duplicates = append(duplicates, groups[fp])
		}
	}
	return duplicates
}
