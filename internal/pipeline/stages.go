package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/esque-os/esquebuild/internal/logfields"
	"github.com/esque-os/esquebuild/internal/qemu"
	"github.com/esque-os/esquebuild/internal/staging"
	"github.com/esque-os/esquebuild/internal/status"
	"github.com/esque-os/esquebuild/internal/toolchain"
)

// Individual stage implementations. Apart from format_sources and the
// emulator's never-run refusal, every stage reports Success no matter what
// happened underneath; the underlying error still lands in the report.

func (r *Runner) stageInitramfs(ctx context.Context) (status.Code, error) {
	slog.Info("creating initramfs", logfields.Path(staging.InitramfsArchive))
	return status.Success, r.stager.ArchiveInitramfs(ctx, r.cfg.Initramfs)
}

// stageFormat fails the run when the workspace builder yields no result.
func (r *Runner) stageFormat(ctx context.Context) (status.Code, error) {
	if _, err := r.builder.Run(ctx, ".", toolchain.OpFormat, nil); err != nil {
		return status.Failure, err
	}
	return status.Success, nil
}

func (r *Runner) stageKernel(ctx context.Context) (status.Code, error) {
	_, buildErr := r.builder.Run(ctx, "kernel", toolchain.OpBuild, r.cfg.Kernel.Flags)
	copyErr := r.stager.StageKernel(r.cfg.Kernel.Mode)
	return status.Success, errors.Join(buildErr, copyErr)
}

func (r *Runner) stageBootloader(ctx context.Context) (status.Code, error) {
	_, buildErr := r.builder.Run(ctx, "boot", toolchain.OpBuild, r.cfg.Boot.Flags)
	copyErr := r.stager.StageBootloader(r.cfg.Boot.Mode)
	return status.Success, errors.Join(buildErr, copyErr)
}

func (r *Runner) stageStrip(ctx context.Context) (status.Code, error) {
	return status.Success, r.stager.StripBinaries(ctx)
}

func (r *Runner) stageImage(ctx context.Context) (status.Code, error) {
	return status.Success, r.stager.AssembleImage(ctx, r.cfg.Image)
}

// stageDocs documents the kernel workspace against its custom target
// definition, then every crate directory under crates/.
func (r *Runner) stageDocs(ctx context.Context) (status.Code, error) {
	var errs []error

	kernelFlags := []string{"--target", fmt.Sprintf("../.targets/%s/kernel.json", r.cfg.Arch)}
	if _, err := r.builder.Run(ctx, "kernel", toolchain.OpDoc, kernelFlags); err != nil {
		errs = append(errs, err)
	}

	entries, err := os.ReadDir(filepath.Join(r.root, "crates"))
	if err != nil {
		errs = append(errs, fmt.Errorf("enumerate crates: %w", err))
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ws := filepath.Join("crates", entry.Name())
		slog.Info("documenting crate", logfields.Workspace(ws))
		if _, err := r.builder.Run(ctx, ws, toolchain.OpDoc, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return status.Success, errors.Join(errs...)
}

// stageEmulator launches the emulator. Only the never-run guard produces a
// failing code; the emulator's own exit status is not part of the verdict.
func (r *Runner) stageEmulator(ctx context.Context) (status.Code, error) {
	if err := r.launcher.Launch(ctx, r.cfg); err != nil {
		if errors.Is(err, qemu.ErrNeverRun) {
			return status.Failure, err
		}
		return status.Success, err
	}
	return status.Success, nil
}
