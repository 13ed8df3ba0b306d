package models

// Status is the outcome of one quality rule
type Status string

const (
	StatusNotApplicable Status = "Not Applicable"
	StatusPass          Status = "Pass"
	StatusWarning       Status = "Warning"
	StatusFail          Status = "Fail"
)

// rank orders statuses on the severity lattice Pass < Warning < Fail.
// Not Applicable sits below Pass so any real finding replaces it.
func (s Status) rank() int {
	switch s {
	case StatusPass:
		return 1
	case StatusWarning:
		return 2
	case StatusFail:
		return 3
	default:
		return 0
	}
}

// Escalate returns the more severe of s and other. A status never decreases
// through Escalate, so once a rule reaches Fail it stays there.
func (s Status) Escalate(other Status) Status {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// Severe reports whether s is Warning or Fail
func (s Status) Severe() bool {
	return s == StatusWarning || s == StatusFail
}

// QCResult is the outcome of one enabled rule for one case
type QCResult struct {
	// RuleID identifies the rule in the configuration
	RuleID string

	// Status is the final severity of the rule
	Status Status

	// Message is the human readable explanation
	Message string

	// FeatureLabels lists the labels the rule looked at
	FeatureLabels []string
}

// CaseResult accumulates everything produced for one case
type CaseResult struct {
	// CaseID is derived from the path template or the file/directory name
	CaseID string

	// Tool is the annotator tool name
	Tool string

	// View is the anatomical view
	View string

	// Path is where the case was read from
	Path string

	// Fingerprint identifies the normalized feature set, used for duplicate detection
	Fingerprint uint64

	// Results holds one entry per enabled rule, in configuration order
	Results []QCResult

	// Err is set when the case could not be parsed or evaluated
	Err error
}

// Overall folds the rule results into a single case status
func (c CaseResult) Overall() Status {
	overall := StatusPass
	for _, r := range c.Results {
		overall = overall.Escalate(r.Status)
	}
	return overall
}

// Counts returns the number of failing and warning rules
func (c CaseResult) Counts() (fails, warnings int) {
	for _, r := range c.Results {
		switch r.Status {
		case StatusFail:
			fails++
		case StatusWarning:
			warnings++
		}
	}
	return fails, warnings
}
