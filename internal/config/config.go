// Package config loads and validates the build tool's YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the build tool. All relative paths
// are resolved against the project root the tool is invoked from.
type Config struct {
	// Arch selects the target architecture and the emulator binary
	// (qemu-system-<arch>).
	Arch string `yaml:"arch"`
	// Image is the path of the bootable disk image the pipeline assembles.
	Image string `yaml:"image"`
	// Memory is the emulator memory limit, in QEMU notation (e.g. "256M").
	Memory string `yaml:"memory"`

	// Run appends the emulator stage to a full build.
	Run bool `yaml:"run"`
	// Documentation appends the documentation stage to a full build.
	Documentation bool `yaml:"documentation"`
	// Strict makes the run's exit code reflect recorded stage failures in
	// addition to the composite verdict. The stage sequence itself is
	// unaffected: every planned stage still executes.
	Strict bool `yaml:"strict"`

	Toolchain ToolchainConfig `yaml:"toolchain"`
	Kernel    WorkspaceConfig `yaml:"kernel"`
	Boot      WorkspaceConfig `yaml:"boot"`

	// Initramfs is the directory archived into the initramfs tarball.
	Initramfs string `yaml:"initramfs"`

	QEMU    QEMUConfig    `yaml:"qemu"`
	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ToolchainConfig describes the ambient Rust toolchain.
type ToolchainConfig struct {
	// Minimal marks a toolchain without rustfmt; stages that need the
	// full toolchain are left out of the plan.
	Minimal bool `yaml:"minimal"`
}

// WorkspaceConfig describes how one cargo workspace is built.
type WorkspaceConfig struct {
	// Mode names the cargo profile output directory under target/
	// (typically "release" or "debug").
	Mode string `yaml:"mode"`
	// Flags are passed verbatim to cargo build for this workspace.
	Flags []string `yaml:"flags"`
}

// QEMUConfig controls the emulator stage.
type QEMUConfig struct {
	CPU     string `yaml:"cpu"`
	Machine string `yaml:"machine"`
	SMP     int    `yaml:"smp"`
	// KVM enables hardware acceleration instead of the -cpu model.
	KVM bool `yaml:"kvm"`
	// Log enables the QEMU debug log file.
	Log     bool   `yaml:"log"`
	LogFile string `yaml:"log_file"`
	// Options are appended verbatim to the emulator command line.
	Options []string `yaml:"options"`
	// NeverRun blocks emulator launches until explicitly lifted.
	NeverRun bool `yaml:"never_run"`
}

// HistoryConfig controls the build history store. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig controls watch mode. Durations are time.ParseDuration strings.
type WatchConfig struct {
	// Paths are the directories watched for source changes.
	Paths []string `yaml:"paths"`
	// Debounce is the quiet period after the last change before a rebuild.
	Debounce string `yaml:"debounce"`
	// Interval, when set, additionally triggers periodic rebuilds.
	Interval string `yaml:"interval"`
}

// MetricsConfig controls the Prometheus endpoint served in watch mode.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Defaults applied when the file leaves fields unset.
const (
	DefaultArch          = "x86_64"
	DefaultImage         = "build/esque.img"
	DefaultMemory        = "256M"
	DefaultCPU           = "qemu64"
	DefaultMachine       = "q35"
	DefaultSMP           = 4
	DefaultQEMULogFile   = "qemu.log"
	DefaultMode          = "release"
	DefaultInitramfs     = "initramfs"
	DefaultMetricsListen = ":9631"
)

// DefaultWatchDebounce is the quiet period used when watch.debounce is
// unset or malformed.
const DefaultWatchDebounce = 2 * time.Second

// DefaultWatchPaths are the source trees watched when watch.paths is unset.
var DefaultWatchPaths = []string{"kernel", "boot", "crates"}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Pull in .env before expansion so ${VAR} references resolve.
	if err := loadEnvFile(); err != nil {
		slog.Debug("no environment file loaded", "reason", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their default values.
func (c *Config) ApplyDefaults() {
	if c.Arch == "" {
		c.Arch = DefaultArch
	}
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.Memory == "" {
		c.Memory = DefaultMemory
	}
	if c.QEMU.CPU == "" {
		c.QEMU.CPU = DefaultCPU
	}
	if c.QEMU.Machine == "" {
		c.QEMU.Machine = DefaultMachine
	}
	if c.QEMU.SMP == 0 {
		c.QEMU.SMP = DefaultSMP
	}
	if c.QEMU.LogFile == "" {
		c.QEMU.LogFile = DefaultQEMULogFile
	}
	if c.Kernel.Mode == "" {
		c.Kernel.Mode = DefaultMode
	}
	if c.Boot.Mode == "" {
		c.Boot.Mode = DefaultMode
	}
	if c.Initramfs == "" {
		c.Initramfs = DefaultInitramfs
	}
	if len(c.Watch.Paths) == 0 {
		c.Watch.Paths = append([]string(nil), DefaultWatchPaths...)
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = DefaultWatchDebounce.String()
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	if c.Arch == "" {
		return fmt.Errorf("arch must not be empty")
	}
	if c.Image == "" {
		return fmt.Errorf("image must not be empty")
	}
	if c.Memory == "" {
		return fmt.Errorf("memory must not be empty")
	}
	if c.QEMU.SMP < 1 {
		return fmt.Errorf("qemu.smp must be at least 1, got %d", c.QEMU.SMP)
	}
	if c.Kernel.Mode == "" || c.Boot.Mode == "" {
		return fmt.Errorf("kernel.mode and boot.mode must not be empty")
	}
	if c.Initramfs == "" {
		return fmt.Errorf("initramfs must not be empty")
	}
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("watch.debounce: %w", err)
		}
	}
	if c.Watch.Interval != "" {
		if _, err := time.ParseDuration(c.Watch.Interval); err != nil {
			return fmt.Errorf("watch.interval: %w", err)
		}
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen must be set when metrics are enabled")
	}
	return nil
}

// DebounceDuration returns the parsed watch debounce, falling back to the
// default when unset or malformed.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		return DefaultWatchDebounce
	}
	return d
}

// IntervalDuration returns the parsed periodic rebuild interval, or zero
// when periodic rebuilds are disabled.
func (w WatchConfig) IntervalDuration() time.Duration {
	if w.Interval == "" {
		return 0
	}
	d, err := time.ParseDuration(w.Interval)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Arch:   DefaultArch,
		Image:  DefaultImage,
		Memory: DefaultMemory,
		Kernel: WorkspaceConfig{
			Mode:  DefaultMode,
			Flags: []string{"--target", "../.targets/x86_64/kernel.json"},
		},
		Boot: WorkspaceConfig{
			Mode:  DefaultMode,
			Flags: []string{"--target", "x86_64-unknown-uefi"},
		},
		Initramfs: DefaultInitramfs,
		QEMU: QEMUConfig{
			CPU:     DefaultCPU,
			Machine: DefaultMachine,
			SMP:     DefaultSMP,
			LogFile: DefaultQEMULogFile,
			Options: []string{"-serial", "stdio"},
		},
		History: HistoryConfig{Path: ".esquebuild/history.db"},
		Watch: WatchConfig{
			Paths:    append([]string(nil), DefaultWatchPaths...),
			Debounce: DefaultWatchDebounce.String(),
		},
		Metrics: MetricsConfig{Listen: DefaultMetricsListen},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
