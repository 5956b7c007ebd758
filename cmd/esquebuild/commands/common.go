package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/esque-os/esquebuild/internal/config"
)

// Global carries state shared with subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI defines the command tree and global flags.
type CLI struct {
	Config          string           `short:"c" help:"Configuration file path" default:"esquebuild.yaml"`
	Verbose         bool             `short:"v" help:"Enable verbose logging"`
	Version         kong.VersionFlag `name:"version" help:"Show version and exit"`
	NeverRun        bool             `help:"Refuse to launch the emulator regardless of configuration"`
	DisableNeverRun bool             `help:"Lift the never-run guard regardless of configuration"`

	Build       BuildCmd       `cmd:"" help:"Run the full image build pipeline"`
	Run         RunCmd         `cmd:"" aliases:"run_qemu" help:"Launch the emulator against the built image"`
	Format      FormatCmd      `cmd:"" help:"Format the workspace sources"`
	Clean       CleanCmd       `cmd:"" help:"Remove build outputs and recreate the staging directory"`
	Setup       SetupCmd       `cmd:"" help:"Create the staging directories"`
	Watch       WatchCmd       `cmd:"" help:"Rebuild whenever the source trees change"`
	History     HistoryCmd     `cmd:"" help:"List recent pipeline runs"`
	Init        InitCmd        `cmd:"" help:"Write a default configuration file"`
	Cloc        ClocCmd        `cmd:"" help:"Count lines of code via scripts/cloc.sh"`
	CountUnsafe CountUnsafeCmd `cmd:"" aliases:"count_unsafe" help:"Count unsafe blocks via scripts/unsafe-counter.sh"`
	Clippy      ClippyCmd      `cmd:"" help:"Placeholder for workspace lints"`
	All         AllCmd         `cmd:"" help:"Placeholder for the full maintenance sweep"`
}

// AfterApply runs after flag parsing; it configures logging once. The
// ESQUEBUILD_LOG_LEVEL environment variable sets the base level and
// --verbose overrides it to debug.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if env := os.Getenv("ESQUEBUILD_LOG_LEVEL"); env != "" {
		level = parseLogLevel(env)
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig reads the configuration file and applies the guard flags on
// top of it. Disabling wins when both guard flags are present.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	switch {
	case root.DisableNeverRun:
		cfg.QEMU.NeverRun = false
	case root.NeverRun:
		cfg.QEMU.NeverRun = true
	}
	return cfg, nil
}
