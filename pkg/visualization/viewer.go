// Package visualization renders QC results for the terminal
package visualization

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"annotationqc/internal/models"
)

// Terminal palette for the three severities
const (
	failColor    = "9"
	warningColor = "11"
	passColor    = "10"
)

// Viewer formats per-case results and run totals, colored by severity
type Viewer struct {
	color bool

	fail    lipgloss.Style
	warning lipgloss.Style
	pass    lipgloss.Style
	title   lipgloss.Style
}

// NewViewer creates a viewer; with useColor false the output is plain text
func NewViewer(useColor bool) *Viewer {
	return &Viewer{
		color:   useColor,
		fail:    lipgloss.NewStyle().Foreground(lipgloss.Color(failColor)),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color(warningColor)),
		pass:    lipgloss.NewStyle().Foreground(lipgloss.Color(passColor)),
		title:   lipgloss.NewStyle().Bold(true),
	}
}

func (v *Viewer) paint(style lipgloss.Style, text string) string {
	if !v.color {
		return text
	}
	return style.Render(text)
}

func (v *Viewer) styleFor(status models.Status) lipgloss.Style {
	switch status {
	case models.StatusFail:
		return v.fail
	case models.StatusWarning:
		return v.warning
	default:
		return v.pass
	}
}

// Overall is the one-line verdict for a set of results
func Overall(results []models.QCResult) (models.Status, string) {
	c := models.CaseResult{Results: results}
	fails, warnings := c.Counts()
	switch {
	case fails > 0:
		return models.StatusFail, fmt.Sprintf("FAIL (%d errors, %d warnings)", fails, warnings)
	case warnings > 0:
		return models.StatusWarning, fmt.Sprintf("WARNING (0 errors, %d warnings)", warnings)
	default:
		return models.StatusPass, "PASS (All checks passed)"
	}
}

// RenderCase returns the block printed for one case: a header, the overall
// verdict and one line per rule result
func (v *Viewer) RenderCase(name string, results []models.QCResult) string {
	var b strings.Builder
	b.WriteString(v.paint(v.title, fmt.Sprintf("--- Report for %s ---", name)))
	b.WriteString("\n")

	status, verdict := Overall(results)
	b.WriteString(v.paint(v.styleFor(status), "Overall Result: "+verdict))
	b.WriteString("\n")

	for _, r := range results {
		line := fmt.Sprintf("  [%s] %s", strings.ToUpper(string(r.Status)), r.Message)
		b.WriteString(v.paint(v.styleFor(r.Status), line))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTotals returns the closing lines of a run
func (v *Viewer) RenderTotals(processed, passed, failed, warned int, reportLocation string) string {
	var b strings.Builder
	b.WriteString(v.paint(v.title, "--- QC Reporting ---"))
	b.WriteString("\n")
	if reportLocation != "" {
		fmt.Fprintf(&b, "Successfully generated summary report: %s\n", reportLocation)
	}
	status := models.StatusPass
	switch {
	case failed > 0:
		status = models.StatusFail
	case warned > 0:
		status = models.StatusWarning
	}
	totals := fmt.Sprintf("Total Cases: %d. Passed: %d. Not Passed: %d (Fail: %d, Warning: %d).",
		processed, passed, failed+warned, failed, warned)
	b.WriteString(v.paint(v.styleFor(status), totals))
	b.WriteString("\n")
	return b.String()
}
