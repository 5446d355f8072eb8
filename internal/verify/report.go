// Package verify re-reads a persisted output tree and reports consistency
// findings. Inconsistencies never fail the run; they are reported.
package verify

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
)

// ReportFile is the report path relative to the output directory.
const ReportFile = "verify_report.txt"

// Status grades a finding.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Finding is the result of one check against one subject.
type Finding struct {
	Check   string `json:"check"`
	Subject string `json:"subject"`
	Status  Status `json:"status"`
	Detail  string `json:"detail"`
}

// Report accumulates findings in check order.
type Report struct {
	OutDir   string    `json:"out_dir"`
	Findings []Finding `json:"findings"`
}

func (r *Report) add(check, subject string, status Status, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{
		Check:   check,
		Subject: subject,
		Status:  status,
		Detail:  fmt.Sprintf(format, args...),
	})
}

// Count returns the number of findings with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, f := range r.Findings {
		if f.Status == s {
			n++
		}
	}
	return n
}

// Failed reports whether any finding failed.
func (r *Report) Failed() bool { return r.Count(StatusFail) > 0 }

// Lookup returns the findings of one check.
func (r *Report) Lookup(check string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Check == check {
			out = append(out, f)
		}
	}
	return out
}

// Render writes the report as an aligned text table followed by totals.
func (r *Report) Render(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "verify report: %s\n\n", r.OutDir)
	_, _ = fmt.Fprintln(w, "CHECK\tSUBJECT\tSTATUS\tDETAIL")
	for _, f := range r.Findings {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Check, f.Subject, strings.ToUpper(string(f.Status)), f.Detail)
	}
	_, _ = fmt.Fprintf(w, "\n%d pass, %d warn, %d fail\n",
		r.Count(StatusPass), r.Count(StatusWarn), r.Count(StatusFail))
	return w.Flush()
}

// String renders the report.
func (r *Report) String() string {
	var b strings.Builder
	_ = r.Render(&b)
	return b.String()
}

// Write renders the report to <out_dir>/verify_report.txt.
func (r *Report) Write() (string, error) {
	path := filepath.Join(r.OutDir, ReportFile)
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "verify: create %s", r.OutDir)
	}
	if err := os.WriteFile(path, []byte(r.String()), 0o644); err != nil {
		return "", eris.Wrapf(err, "verify: write %s", path)
	}
	return path, nil
}
