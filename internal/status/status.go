// Package status defines the per-stage status codes emitted by build
// stages and the composite reduction that folds a whole run into a single
// process exit code.
package status

// Code is the outcome of a single pipeline stage. Zero means success;
// any other small value is a failure variant. Stages never produce values
// outside {Success, Failure} in normal operation.
type Code int

const (
	// Success indicates the stage completed (or its failures were absorbed).
	Success Code = 0
	// Failure indicates the stage reported a checked failure.
	Failure Code = 1
)

// IsSuccess reports whether the code is the success value.
func (c Code) IsSuccess() bool { return c == Success }

func (c Code) String() string {
	if c == Success {
		return "success"
	}
	return "failure"
}

// Process exit codes produced by the tool.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Composite folds a sequence of stage codes into one integer using a
// bitwise complement-and-AND update:
//
//	composite = ^code & ^composite
//
// The first observed code seeds the accumulator unmodified. A finished
// accumulator maps to overall success exactly when its value is 0 or -1.
//
// This is not a boolean fold. Each update depends only on the complements
// of the newest code and the previous value, so the verdict is sensitive
// to where in the sequence a failure lands: a failure observed while the
// accumulator holds -1 collapses to 0 and is absorbed, while a failure
// observed on 0 produces -2 and every later success keeps the value
// outside {0, -1}. The arithmetic is preserved bit for bit; OK documents
// the only sanctioned interpretation of the raw value.
type Composite struct {
	value  int
	seeded bool
}

// Observe folds one stage code into the accumulator.
func (a *Composite) Observe(c Code) {
	if !a.seeded {
		a.value = int(c)
		a.seeded = true
		return
	}
	a.value = ^int(c) & ^a.value
}

// Value returns the raw accumulator bits. Only OK assigns meaning to them.
func (a *Composite) Value() int { return a.value }

// Seeded reports whether at least one code has been observed.
func (a *Composite) Seeded() bool { return a.seeded }

// OK reports whether the accumulated value maps to overall success.
// An accumulator that observed no codes is vacuously successful.
func (a *Composite) OK() bool {
	return !a.seeded || a.value == 0 || a.value == -1
}

// Exit maps the accumulated value to a process exit code.
func (a *Composite) Exit() int {
	if a.OK() {
		return ExitSuccess
	}
	return ExitFailure
}
