package commands

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/esque-os/esquebuild/internal/executor"
	"github.com/esque-os/esquebuild/internal/logfields"
	"github.com/esque-os/esquebuild/internal/qemu"
)

// RunCmd implements the 'run' command. It launches the emulator against
// the image already on disk without rebuilding anything.
type RunCmd struct{}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	launcher := qemu.New(executor.New(), ".")
	if err := launcher.Launch(ctx, cfg); err != nil {
		if errors.Is(err, qemu.ErrNeverRun) {
			return err
		}
		// The emulator's exit status carries no verdict about the image.
		slog.Warn("emulator exited with error", logfields.Error(err))
	}
	return nil
}
