package qemu

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/esque-os/esquebuild/internal/config"
	"github.com/esque-os/esquebuild/internal/executor"
)

type fakeInvoker struct {
	calls []executor.Command
	err   error
}

func (f *fakeInvoker) Run(_ context.Context, cmd executor.Command) error {
	f.calls = append(f.calls, cmd)
	return f.err
}

func baseConfig() *config.Config {
	var cfg config.Config
	cfg.ApplyDefaults()
	return &cfg
}

func TestArgsDefaultShape(t *testing.T) {
	cfg := baseConfig()
	argv := Args(cfg)

	if argv[0] != "qemu-system-x86_64" {
		t.Errorf("binary = %q", argv[0])
	}
	joined := strings.Join(argv, " ")
	for _, want := range []string{
		"-drive file=build/esque.img,format=raw",
		"-m 256M",
		"-cpu qemu64",
		"-machine q35,accel=kvm:tcg",
		"unit=0,file=binaries/OVMF/OVMF_CODE.fd,readonly=on",
		"unit=1,file=binaries/OVMF/OVMF_VARS.fd",
		"-net none",
		"-d int,cpu_reset,guest_errors,page,strace",
		"-no-shutdown -no-reboot",
		"-smp 4",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("argv missing %q\nargv: %s", want, joined)
		}
	}
	if strings.Contains(joined, "-enable-kvm") {
		t.Error("KVM flag present without kvm enabled")
	}
	if strings.Contains(joined, "-D ") {
		t.Error("debug log file present without log enabled")
	}
}

func TestArgsKVMReplacesCPUModel(t *testing.T) {
	cfg := baseConfig()
	cfg.QEMU.KVM = true
	argv := Args(cfg)

	if !slices.Contains(argv, "-enable-kvm") {
		t.Error("argv missing -enable-kvm")
	}
	if slices.Contains(argv, "-cpu") {
		t.Error("-cpu model present alongside KVM")
	}
}

func TestArgsLogAndExtraOptions(t *testing.T) {
	cfg := baseConfig()
	cfg.QEMU.Log = true
	cfg.QEMU.LogFile = "trace.log"
	cfg.QEMU.Options = []string{"-serial", "stdio"}
	argv := Args(cfg)

	di := slices.Index(argv, "-D")
	if di < 0 || argv[di+1] != "trace.log" {
		t.Errorf("debug log flag wrong: %v", argv)
	}
	if argv[len(argv)-2] != "-serial" || argv[len(argv)-1] != "stdio" {
		t.Errorf("extra options not appended last: %v", argv)
	}
}

func TestLaunchNeverRunGuard(t *testing.T) {
	inv := &fakeInvoker{}
	cfg := baseConfig()
	cfg.QEMU.NeverRun = true

	err := New(inv, ".").Launch(context.Background(), cfg)
	if !errors.Is(err, ErrNeverRun) {
		t.Fatalf("Launch() error = %v, want ErrNeverRun", err)
	}
	if len(inv.calls) != 0 {
		t.Errorf("emulator process started despite guard: %v", inv.calls)
	}
}

func TestLaunchGuardExplainsRemediation(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	inv := &fakeInvoker{}
	cfg := baseConfig()
	cfg.QEMU.NeverRun = true

	if err := New(inv, ".").Launch(context.Background(), cfg); !errors.Is(err, ErrNeverRun) {
		t.Fatalf("Launch() error = %v, want ErrNeverRun", err)
	}

	out := buf.String()
	for _, want := range []string{
		"not launching the emulator",
		"the --never-run flag was passed to the tool",
		"never_run is set to true in the configuration",
		"to lift the guard",
		"pass the --disable-never-run flag to the tool",
		"remove the command line flag you passed",
		"change the never_run line in the configuration file",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("guard output missing %q\noutput:\n%s", want, out)
		}
	}
}

func TestLaunchInvokesEmulator(t *testing.T) {
	inv := &fakeInvoker{}
	cfg := baseConfig()

	if err := New(inv, "/proj").Launch(context.Background(), cfg); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if len(inv.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(inv.calls))
	}
	if inv.calls[0].Argv[0] != "qemu-system-x86_64" {
		t.Errorf("argv[0] = %q", inv.calls[0].Argv[0])
	}
	if inv.calls[0].Dir != "/proj" {
		t.Errorf("dir = %q, want project root", inv.calls[0].Dir)
	}
}

func TestLaunchReportsEmulatorError(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("exit status 1")}
	cfg := baseConfig()

	err := New(inv, ".").Launch(context.Background(), cfg)
	if err == nil {
		t.Fatal("Launch() = nil, want wrapped emulator error")
	}
	if errors.Is(err, ErrNeverRun) {
		t.Error("emulator failure misclassified as guard refusal")
	}
}
