package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/esque-os/esquebuild/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" default:"10" help:"Number of runs to show"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return errors.New("run history is disabled; set history.path in the configuration")
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runs, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, run := range runs {
		fmt.Println(formatRun(run))
	}
	return nil
}

func formatRun(run history.Run) string {
	commit := run.Commit
	if commit == "" {
		commit = "-"
	}
	return fmt.Sprintf("%s  %-7s exit=%d composite=%3d commit=%s stages=%d duration=%s",
		run.Started.Format(time.DateTime), run.Outcome, run.ExitCode, run.Composite,
		commit, len(run.Stages), run.Duration().Round(time.Millisecond))
}
