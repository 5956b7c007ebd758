package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/esque-os/esquebuild/internal/status"
)

// Outcome is the typed enumeration of final run result states.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ReportPath is the default location of the persisted run report, inside
// the staging area so a clean wipes it with everything else.
const ReportPath = "build/report.json"

// StageRecord captures one executed stage.
type StageRecord struct {
	Name     StageName     `json:"name"`
	Code     status.Code   `json:"code"`
	Duration time.Duration `json:"duration"`
	Failure  string        `json:"failure,omitempty"`
}

// Report captures the observable result of one pipeline run. Failures are
// stored as strings, so the struct serializes as-is. Stage order in Stages
// matches execution order.
type Report struct {
	SchemaVersion int           `json:"schema_version"`
	RunID         string        `json:"run_id"`
	Commit        string        `json:"commit,omitempty"`
	Strict        bool          `json:"strict"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Stages        []StageRecord `json:"stages"`
	Skipped       []StageName   `json:"skipped,omitempty"`
	Composite     int           `json:"composite"`
	ExitCode      int           `json:"exit_code"`
	Outcome       Outcome       `json:"outcome"`
}

func newReport(commit string, strict bool) *Report {
	return &Report{
		SchemaVersion: 1,
		RunID:         uuid.NewString(),
		Commit:        commit,
		Strict:        strict,
		Start:         time.Now(),
	}
}

func (r *Report) recordStage(name StageName, code status.Code, d time.Duration, err error) {
	rec := StageRecord{Name: name, Code: code, Duration: d}
	if err != nil {
		rec.Failure = err.Error()
	}
	r.Stages = append(r.Stages, rec)
}

func (r *Report) finish(composite, exit int) {
	r.End = time.Now()
	r.Composite = composite
	r.ExitCode = exit
	if exit == status.ExitSuccess {
		r.Outcome = OutcomeSuccess
	} else {
		r.Outcome = OutcomeFailure
	}
}

// Failures lists the recorded stage failures, one entry per failed stage.
func (r *Report) Failures() []string {
	var out []string
	for _, s := range r.Stages {
		if s.Failure != "" {
			out = append(out, fmt.Sprintf("%s: %s", s.Name, s.Failure))
		}
	}
	return out
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("run=%s stages=%d composite=%d exit=%d failures=%d duration=%s outcome=%s",
		r.RunID, len(r.Stages), r.Composite, r.ExitCode, len(r.Failures()), dur.Truncate(time.Millisecond), r.Outcome)
}

// Persist writes the report atomically as JSON at path. Best effort: the
// error is returned for caller logging but never changes the verdict.
func (r *Report) Persist(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename report: %w", err)
	}
	return nil
}
