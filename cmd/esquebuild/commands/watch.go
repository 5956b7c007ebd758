package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/esque-os/esquebuild/internal/logfields"
	"github.com/esque-os/esquebuild/internal/metrics"
	"github.com/esque-os/esquebuild/internal/status"
	"github.com/esque-os/esquebuild/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Interval string `help:"Also rebuild on a fixed interval (for example 30m)"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if w.Interval != "" {
		if _, parseErr := time.ParseDuration(w.Interval); parseErr != nil {
			return fmt.Errorf("invalid interval: %w", parseErr)
		}
		cfg.Watch.Interval = w.Interval
	}

	recorder := metrics.Recorder(metrics.NoopRecorder{})
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		go func() {
			if serveErr := metrics.Serve(cfg.Metrics.Listen, reg); serveErr != nil {
				slog.Error("metrics endpoint failed", logfields.Error(serveErr))
			}
		}()
		slog.Info("serving metrics", slog.String("listen", cfg.Metrics.Listen))
	}

	watcher := watch.New(cfg, ".", func(ctx context.Context, _ string) error {
		rep := executePipeline(ctx, cfg, recorder)
		if rep.ExitCode != status.ExitSuccess {
			return fmt.Errorf("pipeline failed: composite=%d", rep.Composite)
		}
		return nil
	}, recorder)

	return watcher.Run(ctx)
}
