// Package executor runs the external commands the build pipeline is built
// from: cargo, tar, strip, the FAT image tools and the emulator itself.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/esque-os/esquebuild/internal/logfields"
)

// ErrEmptyCommand is returned when a Command carries no argv entries.
var ErrEmptyCommand = errors.New("executor: empty command")

// Command describes one external process invocation.
type Command struct {
	// Argv is the program name followed by its arguments.
	Argv []string
	// Dir is the working directory for the process. Empty means the
	// caller's current directory.
	Dir string
	// Env holds extra variables appended to the inherited environment.
	Env []string
}

// Invoker runs an external command and blocks until it exits.
//
// Implementations return a non-nil error when the process could not be
// started or exited non-zero. Most pipeline stages do not act on that
// error beyond recording it; whether it affects the run's verdict is the
// caller's decision.
type Invoker interface {
	Run(ctx context.Context, cmd Command) error
}

// Exec is the host-process Invoker. Child stdio is wired straight through
// to the tool's own streams so compiler and emulator output stays visible.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
}

// New returns an Exec bound to the process's standard streams.
func New() *Exec {
	return &Exec{Stdout: os.Stdout, Stderr: os.Stderr, Stdin: os.Stdin}
}

func (e *Exec) Run(ctx context.Context, cmd Command) error {
	if len(cmd.Argv) == 0 {
		return ErrEmptyCommand
	}
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Stdout = e.Stdout
	c.Stderr = e.Stderr
	c.Stdin = e.Stdin
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	slog.Debug("running command", logfields.Command(cmd.Argv), logfields.Path(cmd.Dir))
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s: %w", cmd.Argv[0], err)
	}
	return nil
}
