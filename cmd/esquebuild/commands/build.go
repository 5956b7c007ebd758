package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/esque-os/esquebuild/internal/config"
	"github.com/esque-os/esquebuild/internal/history"
	"github.com/esque-os/esquebuild/internal/logfields"
	"github.com/esque-os/esquebuild/internal/metrics"
	"github.com/esque-os/esquebuild/internal/pipeline"
	"github.com/esque-os/esquebuild/internal/status"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Strict bool `help:"Fail the run when any stage recorded an error"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if b.Strict {
		cfg.Strict = true
	}
	return RunBuild(ctx, cfg, metrics.NoopRecorder{})
}

// RunBuild executes one pipeline pass. The verdict comes back as an error
// so main exits 1 on failed builds.
func RunBuild(ctx context.Context, cfg *config.Config, recorder metrics.Recorder) error {
	rep := executePipeline(ctx, cfg, recorder)
	if rep.ExitCode != status.ExitSuccess {
		return fmt.Errorf("build failed: composite=%d", rep.Composite)
	}
	return nil
}

// executePipeline runs the stages, then writes the report file and the
// history row. Persistence is best effort and never alters the verdict.
func executePipeline(ctx context.Context, cfg *config.Config, recorder metrics.Recorder) *pipeline.Report {
	runner := pipeline.New(cfg, pipeline.Options{Recorder: recorder})
	rep := runner.Run(ctx)

	if err := rep.Persist(pipeline.ReportPath); err != nil {
		slog.Warn("failed to write build report", logfields.Path(pipeline.ReportPath), logfields.Error(err))
	}
	appendHistory(ctx, cfg, rep)
	return rep
}

func appendHistory(ctx context.Context, cfg *config.Config, rep *pipeline.Report) {
	if cfg.History.Path == "" {
		return
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Warn("failed to open run history", logfields.Path(cfg.History.Path), logfields.Error(err))
		return
	}
	defer func() { _ = store.Close() }()

	if err := store.Append(ctx, rep); err != nil {
		slog.Warn("failed to record run history", logfields.Error(err))
	}
}
