package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "esquebuild.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "run: true\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Run {
		t.Error("run flag lost")
	}
	if cfg.Arch != DefaultArch {
		t.Errorf("arch = %q, want default %q", cfg.Arch, DefaultArch)
	}
	if cfg.Image != DefaultImage {
		t.Errorf("image = %q, want default %q", cfg.Image, DefaultImage)
	}
	if cfg.QEMU.SMP != DefaultSMP {
		t.Errorf("qemu.smp = %d, want default %d", cfg.QEMU.SMP, DefaultSMP)
	}
	if cfg.Kernel.Mode != DefaultMode || cfg.Boot.Mode != DefaultMode {
		t.Errorf("modes = %q/%q, want %q", cfg.Kernel.Mode, cfg.Boot.Mode, DefaultMode)
	}
	if got := cfg.Watch.DebounceDuration(); got != DefaultWatchDebounce {
		t.Errorf("watch debounce = %v, want %v", got, DefaultWatchDebounce)
	}
}

func TestLoadFullDocument(t *testing.T) {
	path := writeConfig(t, `
arch: x86_64
image: build/esque.img
memory: 512M
run: true
documentation: true
strict: true
toolchain:
  minimal: true
kernel:
  mode: debug
  flags: ["--target", "../.targets/x86_64/kernel.json"]
boot:
  mode: debug
initramfs: initramfs
qemu:
  cpu: host
  machine: q35
  smp: 8
  kvm: true
  log: true
  log_file: qemu.log
  options: ["-serial", "stdio"]
  never_run: true
history:
  path: .esquebuild/history.db
watch:
  paths: [kernel, boot]
  debounce: 750ms
  interval: 5m
metrics:
  enabled: true
  listen: ":9631"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Memory != "512M" {
		t.Errorf("memory = %q", cfg.Memory)
	}
	if !cfg.Toolchain.Minimal || !cfg.Documentation || !cfg.Strict {
		t.Error("boolean knobs not carried through")
	}
	if len(cfg.Kernel.Flags) != 2 || cfg.Kernel.Flags[0] != "--target" {
		t.Errorf("kernel flags = %v", cfg.Kernel.Flags)
	}
	if !cfg.QEMU.KVM || !cfg.QEMU.NeverRun || cfg.QEMU.SMP != 8 {
		t.Errorf("qemu section mismatch: %+v", cfg.QEMU)
	}
	if got := cfg.Watch.DebounceDuration(); got != 750*time.Millisecond {
		t.Errorf("debounce = %v, want 750ms", got)
	}
	if got := cfg.Watch.IntervalDuration(); got != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", got)
	}
	if cfg.History.Path != ".esquebuild/history.db" {
		t.Errorf("history path = %q", cfg.History.Path)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("ESQUE_TEST_IMAGE", "build/custom.img")
	path := writeConfig(t, "image: ${ESQUE_TEST_IMAGE}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Image != "build/custom.img" {
		t.Errorf("image = %q, want expanded env value", cfg.Image)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() = nil error for missing file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not-found message", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero smp", func(c *Config) { c.QEMU.SMP = -2 }},
		{"empty arch", func(c *Config) { c.Arch = "" }},
		{"empty image", func(c *Config) { c.Image = "" }},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }},
		{"bad interval", func(c *Config) { c.Watch.Interval = "5 bananas" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestIntervalDisabledByDefault(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if got := cfg.Watch.IntervalDuration(); got != 0 {
		t.Errorf("interval = %v, want disabled", got)
	}
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "esquebuild.yaml")
	if err := Init(path, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	// A second init without force must refuse to clobber the file.
	if err := Init(path, false); err == nil {
		t.Error("Init() overwrote existing file without force")
	}
	if err := Init(path, true); err != nil {
		t.Errorf("Init(force) error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(generated) error = %v", err)
	}
	if cfg.Arch != DefaultArch || cfg.Image != DefaultImage {
		t.Errorf("generated config missing defaults: %+v", cfg)
	}
	if cfg.QEMU.NeverRun {
		t.Error("generated config must not enable the never-run guard")
	}
}
