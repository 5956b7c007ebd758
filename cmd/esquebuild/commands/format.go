package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/esque-os/esquebuild/internal/executor"
	"github.com/esque-os/esquebuild/internal/toolchain"
)

// FormatCmd implements the 'format' command.
type FormatCmd struct{}

func (f *FormatCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if cfg.Toolchain.Minimal {
		slog.Info("minimal toolchain configured; skipping format")
		return nil
	}

	builder := toolchain.NewCargo(executor.New(), ".")
	if _, err := builder.Run(ctx, ".", toolchain.OpFormat, nil); err != nil {
		return fmt.Errorf("format sources: %w", err)
	}
	return nil
}
