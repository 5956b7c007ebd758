// Package toolchain drives the Rust workspace builder (cargo) for the
// kernel, bootloader and supporting crates.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/esque-os/esquebuild/internal/executor"
	"github.com/esque-os/esquebuild/internal/logfields"
)

// Operation is a cargo subcommand the pipeline knows how to drive.
type Operation string

const (
	OpBuild  Operation = "build"
	OpFormat Operation = "fmt"
	OpDoc    Operation = "doc"
)

// ErrNoResult reports that an operation produced no usable result.
var ErrNoResult = errors.New("toolchain: operation produced no result")

// Result describes one completed workspace operation.
type Result struct {
	Workspace string
	Operation Operation
	Duration  time.Duration
}

// Builder runs one operation inside a workspace directory. A nil Result
// with a non-nil error means the operation produced nothing usable; the
// caller decides whether that is fatal for the run.
type Builder interface {
	Run(ctx context.Context, workspace string, op Operation, flags []string) (*Result, error)
}

// Cargo shells out to the cargo binary found on PATH.
type Cargo struct {
	invoker executor.Invoker
	root    string
	env     []string
}

// NewCargo returns a Builder resolving workspace paths against root.
// Extra env entries are applied to every invocation.
func NewCargo(inv executor.Invoker, root string, env ...string) *Cargo {
	return &Cargo{invoker: inv, root: root, env: env}
}

func (c *Cargo) Run(ctx context.Context, workspace string, op Operation, flags []string) (*Result, error) {
	argv := append([]string{"cargo", string(op)}, flags...)
	dir := workspace
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.root, workspace)
	}

	slog.Info("running cargo", logfields.Workspace(workspace), logfields.Command(argv))
	start := time.Now()
	err := c.invoker.Run(ctx, executor.Command{Argv: argv, Dir: dir, Env: c.env})
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("cargo %s in %s: %w", op, workspace, errors.Join(ErrNoResult, err))
	}

	slog.Debug("cargo finished",
		logfields.Workspace(workspace),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return &Result{Workspace: workspace, Operation: op, Duration: elapsed}, nil
}
