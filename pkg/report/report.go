// Package report writes the plain-text summary of a QC run
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"annotationqc/internal/models"
	"annotationqc/pkg/pipeline"
)

const (
	rule    = "=================="
	divider = "----------------"

	timestampLayout = "2006-01-02 15:04:05"
)

// Meta identifies one run in its report
type Meta struct {
	RunID     string
	Timestamp time.Time
}

// NewMeta stamps a run with a fresh id and the current time
func NewMeta() Meta {
	return Meta{RunID: uuid.NewString(), Timestamp: time.Now()}
}

// FileName is the report file name for a dataset root
func FileName(basePath string) string {
	base := path.Base(strings.TrimRight(strings.ReplaceAll(basePath, "\\", "/"), "/"))
	if base == "" || base == "." || base == "/" {
		base = "dataset"
	}
	return fmt.Sprintf("qc_report_summary_%s.txt", base)
}

// Write renders the summary: a header with totals, then every case that did
// not pass (Fail first) with its non-passing results, then duplicated cases
func Write(w io.Writer, summary *pipeline.Summary, meta Meta) error {
	processed, passed, failed, warned := summary.Totals()

	b := &bytes.Buffer{}
	fmt.Fprintln(b, "QC Report Summary")
	fmt.Fprintln(b, rule)
	fmt.Fprintf(b, "Execution Timestamp: %s\n", meta.Timestamp.Format(timestampLayout))
	fmt.Fprintf(b, "Run ID: %s\n", meta.RunID)
	fmt.Fprintf(b, "Annotator Tool: %s\n", orNA(summary.Tool))
	fmt.Fprintf(b, "View Used: %s\n", orNA(summary.View))
	fmt.Fprintf(b, "Structure ID: %s\n", orNA(summary.StructureID))
	fmt.Fprintf(b, "Data Path Used: %s\n", summary.BasePath)
	fmt.Fprintf(b, "Total Cases Processed: %d\n", processed)
	fmt.Fprintf(b, "Cases Passed: %d\n", passed)
	fmt.Fprintf(b, "Cases Not Passed: %d (Fail: %d, Warning: %d)\n", failed+warned, failed, warned)
	if len(summary.Empty) > 0 {
		fmt.Fprintf(b, "Cases Without Features: %d (%s)\n", len(summary.Empty), strings.Join(summary.Empty, ", "))
	}
	fmt.Fprintf(b, "%s\n\n", rule)

	issues := summary.Issues()
	for _, c := range issues {
		writeCase(b, c)
	}

	if duplicates := summary.Duplicates(); len(duplicates) > 0 {
		fmt.Fprintln(b, "\n--- DUPLICATED ANNOTATIONS ---")
		for _, group := range duplicates {
			fmt.Fprintf(b, "  identical features: %s\n", strings.Join(group, ", "))
		}
		fmt.Fprintln(b, divider)
	}

	if len(issues) == 0 {
		fmt.Fprintln(b, "\nCongratulations! All processed cases passed QC checks.")
	}

	_, err := w.Write(b.Bytes())
	return err
}

func writeCase(w io.Writer, c models.CaseResult) {
	fmt.Fprintf(w, "\n--- CASE: %s (%s) ---\n", c.CaseID, strings.ToUpper(string(c.Overall())))
	fmt.Fprintf(w, "[VIEW/TOOL]: %s/%s\n", c.View, c.Tool)
	fmt.Fprintln(w, "--- ISSUES ---")
	for _, r := range c.Results {
		if r.Status == models.StatusPass {
			continue
		}
		fmt.Fprintf(w, "  [%s]: %s\n", strings.ToUpper(string(r.Status)), r.Message)
	}
	fmt.Fprintln(w, divider)
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// WriteFile writes the report into dir, named after the dataset root, and
// returns its URL
func WriteFile(ctx context.Context, fs afs.Service, dir string, summary *pipeline.Summary, meta Meta) (string, error) {
	if fs == nil {
		fs = afs.New()
	}
	buf := &bytes.Buffer{}
	if err := Write(buf, summary, meta); err != nil {
		return "", err
	}
	location := url.Join(dir, FileName(summary.BasePath))
	if err := fs.Upload(ctx, location, 0644, buf); err != nil {
		return "", fmt.Errorf("write report %s: %w", location, err)
	}
	return location, nil
}
