// Package qemu launches the emulator against the assembled boot image.
package qemu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/esque-os/esquebuild/internal/config"
	"github.com/esque-os/esquebuild/internal/executor"
	"github.com/esque-os/esquebuild/internal/logfields"
)

// ErrNeverRun reports that a launch was refused by the never-run guard.
var ErrNeverRun = errors.New("qemu: launch blocked by never-run guard")

// OVMF firmware shipped with the project, relative to the project root.
const (
	firmwareCode = "binaries/OVMF/OVMF_CODE.fd"
	firmwareVars = "binaries/OVMF/OVMF_VARS.fd"
)

// debugFlags selects the QEMU debug log categories captured when logging
// is enabled.
const debugFlags = "int,cpu_reset,guest_errors,page,strace"

// Binary returns the emulator binary name for the given architecture.
func Binary(arch string) string {
	return "qemu-system-" + arch
}

// Args assembles the full emulator argv, binary name included. KVM
// acceleration replaces the -cpu model when enabled; the machine still
// carries accel=kvm:tcg so the emulator falls back to TCG without KVM.
func Args(cfg *config.Config) []string {
	argv := []string{
		Binary(cfg.Arch),
		"-drive", "file=" + cfg.Image + ",format=raw",
		"-m", cfg.Memory,
	}
	if cfg.QEMU.KVM {
		argv = append(argv, "-enable-kvm")
	} else {
		argv = append(argv, "-cpu", cfg.QEMU.CPU)
	}
	argv = append(argv,
		"-machine", cfg.QEMU.Machine+",accel=kvm:tcg",
		"-drive", "if=pflash,format=raw,unit=0,file="+firmwareCode+",readonly=on",
		"-drive", "if=pflash,format=raw,unit=1,file="+firmwareVars,
		"-net", "none",
		"-d", debugFlags,
	)
	if cfg.QEMU.Log {
		argv = append(argv, "-D", cfg.QEMU.LogFile)
	}
	argv = append(argv, "-no-shutdown", "-no-reboot", "-smp", strconv.Itoa(cfg.QEMU.SMP))
	argv = append(argv, cfg.QEMU.Options...)
	return argv
}

// Launcher starts the emulator from the project root.
type Launcher struct {
	invoker executor.Invoker
	root    string
}

// New returns a Launcher running from root, where the OVMF firmware and
// the image live.
func New(inv executor.Invoker, root string) *Launcher {
	if root == "" {
		root = "."
	}
	return &Launcher{invoker: inv, root: root}
}

// Launch runs the emulator against the configured image and blocks until
// it exits. When the never-run guard is set, no process is started: the
// guard is explained in the log and ErrNeverRun is returned. Any other
// error describes an emulator that could not be started or exited
// non-zero; callers decide what that means for their verdict.
func (l *Launcher) Launch(ctx context.Context, cfg *config.Config) error {
	if cfg.QEMU.NeverRun {
		slog.Error("not launching the emulator; one of the following held")
		slog.Error("  1) the --never-run flag was passed to the tool")
		slog.Error("  2) never_run is set to true in the configuration")
		slog.Error("to lift the guard you can:")
		slog.Error("  1) pass the --disable-never-run flag to the tool")
		slog.Error("  2) remove the command line flag you passed")
		slog.Error("  3) change the never_run line in the configuration file")
		return ErrNeverRun
	}

	argv := Args(cfg)
	slog.Info("launching emulator", logfields.Command(argv))
	if err := l.invoker.Run(ctx, executor.Command{Argv: argv, Dir: l.root}); err != nil {
		return fmt.Errorf("emulator: %w", err)
	}
	return nil
}
