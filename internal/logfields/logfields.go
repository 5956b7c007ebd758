package logfields

import (
	"log/slog"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyCode       = "code"
	KeyComposite  = "composite"
	KeyCommand    = "command"
	KeyWorkspace  = "workspace"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyOutcome    = "outcome"
	KeyExitCode   = "exit_code"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Code(c int) slog.Attr            { return slog.Int(KeyCode, c) }
func Composite(v int) slog.Attr       { return slog.Int(KeyComposite, v) }
func Workspace(w string) slog.Attr    { return slog.String(KeyWorkspace, w) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func ExitCode(c int) slog.Attr        { return slog.Int(KeyExitCode, c) }

// Command renders an argv slice as one shell-style string.
func Command(argv []string) slog.Attr {
	return slog.String(KeyCommand, strings.Join(argv, " "))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
