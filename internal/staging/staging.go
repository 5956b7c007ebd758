// Package staging owns the build/ artifact area: the initramfs archive,
// the staged kernel and bootloader binaries, and the bootable disk image.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/esque-os/esquebuild/internal/executor"
	"github.com/esque-os/esquebuild/internal/logfields"
)

// Artifact locations, relative to the project root.
const (
	// Dir is the staging directory all pipeline outputs land in.
	Dir = "build"
	// WebDir hosts generated documentation.
	WebDir = "build/www"
	// TargetDir is the cargo build output tree.
	TargetDir = "target"
	// InitramfsArchive is the tarball loaded by the kernel at boot.
	InitramfsArchive = "build/initramfs.tar"
	// KernelBinary is the staged kernel image copied into the ESP root.
	KernelBinary = "build/esque"
	// BootloaderBinary is the staged UEFI loader.
	BootloaderBinary = "build/BOOTX64.EFI"
	// FontResource is the console font shipped on the image.
	FontResource = "binaries/font/font.psf"
	// StartupScript is the EFI shell script that chains into the loader.
	StartupScript = "binaries/efi-shell/startup.nsh"
)

// The image holds 93750 sectors of 512 bytes, just under 46 MiB.
const (
	imageSectorSize  = "512"
	imageSectorCount = "93750"
)

// Stager performs filesystem work and image tooling invocations rooted at
// the project directory.
type Stager struct {
	root    string
	invoker executor.Invoker
}

// New returns a Stager rooted at root.
func New(root string, inv executor.Invoker) *Stager {
	if root == "" {
		root = "."
	}
	return &Stager{root: root, invoker: inv}
}

func (s *Stager) path(rel string) string {
	return filepath.Join(s.root, rel)
}

// Clean removes the staging area and the cargo output tree, then recreates
// an empty staging directory. Failures are logged and absorbed: a clean on
// an already-clean tree is a success.
func (s *Stager) Clean() {
	for _, dir := range []string{Dir, TargetDir} {
		if err := os.RemoveAll(s.path(dir)); err != nil {
			slog.Warn("could not remove directory", logfields.Path(dir), logfields.Error(err))
		}
	}
	if err := os.MkdirAll(s.path(Dir), 0o755); err != nil {
		slog.Warn("could not recreate staging directory", logfields.Path(Dir), logfields.Error(err))
	}
}

// Setup creates the staging directory and the documentation web root.
// Existing directories are left untouched and failures are absorbed.
func (s *Stager) Setup() {
	if err := os.MkdirAll(s.path(WebDir), 0o755); err != nil {
		slog.Warn("could not create staging directories", logfields.Path(WebDir), logfields.Error(err))
	}
}

// StageKernel copies the built kernel for the given cargo mode into the
// staging area.
func (s *Stager) StageKernel(mode string) error {
	src := filepath.Join(TargetDir, "kernel", mode, "kernel")
	return s.copyFile(src, KernelBinary)
}

// StageBootloader copies the built UEFI loader for the given cargo mode
// into the staging area under the removable-media boot name.
func (s *Stager) StageBootloader(mode string) error {
	src := filepath.Join(TargetDir, "boot", mode, "boot.efi")
	return s.copyFile(src, BootloaderBinary)
}

// ArchiveInitramfs packs srcDir into the initramfs tarball.
func (s *Stager) ArchiveInitramfs(ctx context.Context, srcDir string) error {
	cmd := executor.Command{
		Argv: []string{"tar", "-cvf", InitramfsArchive, srcDir},
		Dir:  s.root,
	}
	if err := s.invoker.Run(ctx, cmd); err != nil {
		return fmt.Errorf("archive %s: %w", srcDir, err)
	}
	return nil
}

// StripBinaries strips debug symbols from the staged kernel and loader.
// Both binaries are processed even when the first strip fails.
func (s *Stager) StripBinaries(ctx context.Context) error {
	var errs []error
	for _, bin := range []string{KernelBinary, BootloaderBinary} {
		cmd := executor.Command{Argv: []string{"strip", bin}, Dir: s.root}
		if err := s.invoker.Run(ctx, cmd); err != nil {
			errs = append(errs, fmt.Errorf("strip %s: %w", bin, err))
		}
	}
	return errors.Join(errs...)
}

// AssembleImage builds the FAT32 boot image at image (relative to the
// project root): a zero-filled file, a fresh filesystem, the EFI directory
// tree and the five staged artifacts. Every step runs even when an earlier
// one fails; the joined error records what went wrong.
func (s *Stager) AssembleImage(ctx context.Context, image string) error {
	steps := [][]string{
		{"dd", "if=/dev/zero", "of=" + image, "bs=" + imageSectorSize, "count=" + imageSectorCount},
		{"mkfs.vfat", "-F32", image},
		{"mmd", "-i", image, "::/EFI"},
		{"mmd", "-i", image, "::/EFI/BOOT"},
		{"mcopy", "-i", image, BootloaderBinary, "::/EFI/BOOT"},
		{"mcopy", "-i", image, KernelBinary, "::"},
		{"mcopy", "-i", image, FontResource, "::"},
		{"mcopy", "-i", image, StartupScript, "::"},
		{"mcopy", "-i", image, InitramfsArchive, "::"},
	}

	var errs []error
	for _, argv := range steps {
		if err := s.invoker.Run(ctx, executor.Command{Argv: argv, Dir: s.root}); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("assemble %s: %w", image, err)
	}
	slog.Info("image assembled", logfields.Path(image))
	return nil
}

// copyFile copies one file inside the project tree, preserving the source
// file's permissions.
func (s *Stager) copyFile(src, dst string) error {
	srcFile, err := os.Open(s.path(src))
	if err != nil {
		return fmt.Errorf("stage %s: %w", src, err)
	}
	defer func() {
		_ = srcFile.Close()
	}()

	dstFile, err := os.Create(s.path(dst))
	if err != nil {
		return fmt.Errorf("stage %s: %w", dst, err)
	}
	defer func() {
		_ = dstFile.Close()
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("stage %s -> %s: %w", src, dst, err)
	}

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("stage %s: %w", src, err)
	}
	return os.Chmod(s.path(dst), info.Mode())
}
