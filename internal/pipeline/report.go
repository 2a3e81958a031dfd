package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Entry names one record and why it was rejected or failed to upload.
type Entry struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Report is the externally observable artifact of one pipeline run besides
// the remote-store side effects. Invalid ("rejected before upload") and
// Failed ("accepted then failed to upload") are kept separate because they
// have different remediation paths: fix the data vs retry the call.
type Report struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Selected         int      `json:"selected"`
	Valid            int      `json:"valid"`
	Invalid          []Entry  `json:"invalid"`
	SkippedDuplicate []string `json:"skipped_duplicate"`
	Uploaded         int      `json:"uploaded"`
	Failed           []Entry  `json:"failed"`
}

// Print writes a human-readable summary: counts first, then the per-record
// detail that needs action.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "run %s (%s%s)\n", r.RunID, r.Source, dryRunSuffix(r.DryRun))
	fmt.Fprintf(w, "  selected:          %d\n", r.Selected)
	fmt.Fprintf(w, "  valid:             %d\n", r.Valid)
	fmt.Fprintf(w, "  invalid:           %d\n", len(r.Invalid))
	fmt.Fprintf(w, "  skipped duplicate: %d\n", len(r.SkippedDuplicate))
	if !r.DryRun {
		fmt.Fprintf(w, "  uploaded:          %d\n", r.Uploaded)
		fmt.Fprintf(w, "  failed:            %d\n", len(r.Failed))
	}

	for _, e := range r.Invalid {
		fmt.Fprintf(w, "  invalid %s: %s\n", e.Key, e.Reason)
	}
	for _, e := range r.Failed {
		fmt.Fprintf(w, "  failed %s: %s\n", e.Key, e.Reason)
	}
}

func dryRunSuffix(dry bool) string {
	if dry {
		return ", dry run"
	}
	return ""
}

// WriteFile serializes the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
