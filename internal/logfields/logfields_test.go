package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "7f3c", RunID("7f3c")},
		{"Stage", KeyStage, "build_kernel", Stage("build_kernel")},
		{"Workspace", KeyWorkspace, "kernel", Workspace("kernel")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Outcome", KeyOutcome, "success", Outcome("success")},
		{"Command", KeyCommand, "tar -cvf build/initramfs.tar initramfs", Command([]string{"tar", "-cvf", "build/initramfs.tar", "initramfs"})},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Code(1); v.Key != KeyCode {
		t.Fatalf("Code key mismatch: %s", v.Key)
	}
	if v := Composite(-2); v.Key != KeyComposite {
		t.Fatalf("Composite key mismatch: %s", v.Key)
	}
	if v := ExitCode(1); v.Key != KeyExitCode {
		t.Fatalf("ExitCode key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
