// Package pipeline sequences the build stages that turn the kernel and
// bootloader workspaces into a bootable disk image, and reduces their
// status codes into the run's single verdict.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/esque-os/esquebuild/internal/buildinfo"
	"github.com/esque-os/esquebuild/internal/config"
	"github.com/esque-os/esquebuild/internal/executor"
	"github.com/esque-os/esquebuild/internal/logfields"
	"github.com/esque-os/esquebuild/internal/metrics"
	"github.com/esque-os/esquebuild/internal/qemu"
	"github.com/esque-os/esquebuild/internal/staging"
	"github.com/esque-os/esquebuild/internal/status"
	"github.com/esque-os/esquebuild/internal/toolchain"
)

// Stage is a discrete unit of work in the image build. The returned code
// feeds the composite verdict; the error is recorded in the report without
// influencing whether later stages run.
type Stage func(ctx context.Context) (status.Code, error)

// EmulatorLauncher starts the emulator for the run stage.
type EmulatorLauncher interface {
	Launch(ctx context.Context, cfg *config.Config) error
}

// Runner sequences the build stages for one configuration.
type Runner struct {
	cfg      *config.Config
	root     string
	builder  toolchain.Builder
	stager   *staging.Stager
	launcher EmulatorLauncher
	recorder metrics.Recorder
}

// Options carries the Runner's collaborators. Zero fields are replaced
// with the production implementations rooted at Root.
type Options struct {
	Root     string
	Invoker  executor.Invoker
	Builder  toolchain.Builder
	Stager   *staging.Stager
	Launcher EmulatorLauncher
	Recorder metrics.Recorder
}

// New builds a Runner for cfg.
func New(cfg *config.Config, opts Options) *Runner {
	root := opts.Root
	if root == "" {
		root = "."
	}
	inv := opts.Invoker
	if inv == nil {
		inv = executor.New()
	}
	builder := opts.Builder
	if builder == nil {
		var env []string
		if entry := buildinfo.CommitEnvEntry(root); entry != "" {
			env = append(env, entry)
		}
		builder = toolchain.NewCargo(inv, root, env...)
	}
	stager := opts.Stager
	if stager == nil {
		stager = staging.New(root, inv)
	}
	launcher := opts.Launcher
	if launcher == nil {
		launcher = qemu.New(inv, root)
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Runner{
		cfg:      cfg,
		root:     root,
		builder:  builder,
		stager:   stager,
		launcher: launcher,
		recorder: recorder,
	}
}

// Plan returns the stage sequence for the configuration. Disabled stages
// are left out entirely and contribute no status code to the verdict.
func (r *Runner) Plan() []StageDef {
	stages := []StageDef{{Name: StageInitramfs, Fn: r.stageInitramfs}}
	if !r.cfg.Toolchain.Minimal {
		stages = append(stages, StageDef{Name: StageFormat, Fn: r.stageFormat})
	}
	stages = append(stages,
		StageDef{Name: StageKernel, Fn: r.stageKernel},
		StageDef{Name: StageBootloader, Fn: r.stageBootloader},
		StageDef{Name: StageStrip, Fn: r.stageStrip},
		StageDef{Name: StageImage, Fn: r.stageImage},
	)
	if r.cfg.Documentation {
		stages = append(stages, StageDef{Name: StageDocs, Fn: r.stageDocs})
	}
	if r.cfg.Run {
		stages = append(stages, StageDef{Name: StageEmulator, Fn: r.stageEmulator})
	}
	return stages
}

// skipped lists the optional stages the configuration planned out.
func (r *Runner) skipped() []StageName {
	var names []StageName
	if r.cfg.Toolchain.Minimal {
		names = append(names, StageFormat)
	}
	if !r.cfg.Documentation {
		names = append(names, StageDocs)
	}
	if !r.cfg.Run {
		names = append(names, StageEmulator)
	}
	return names
}

// Run executes every planned stage in order and returns the run's report.
// There is no short circuit: a failing stage never stops the ones after
// it, and nothing is retried. The composite verdict decides the exit code;
// in strict mode any recorded failure forces a failing exit as well.
func (r *Runner) Run(ctx context.Context) *Report {
	plan := r.Plan()
	rep := newReport(buildinfo.Commit(r.root), r.cfg.Strict)
	rep.Skipped = r.skipped()
	slog.Info("pipeline starting",
		logfields.RunID(rep.RunID),
		slog.Int("stages", len(plan)))

	var comp status.Composite
	failures := 0
	for _, st := range plan {
		slog.Info("stage starting", logfields.Stage(string(st.Name)), logfields.RunID(rep.RunID))
		t0 := time.Now()
		code, err := st.Fn(ctx)
		dur := time.Since(t0)

		comp.Observe(code)
		rep.recordStage(st.Name, code, dur, err)

		result := metrics.ResultSuccess
		if code != status.Success {
			result = metrics.ResultFailure
		} else if err != nil {
			result = metrics.ResultWarning
		}
		if err != nil || code != status.Success {
			failures++
			slog.Warn("stage recorded failure",
				logfields.Stage(string(st.Name)),
				logfields.Code(int(code)),
				logfields.Error(err))
		}
		r.recorder.ObserveStageDuration(string(st.Name), dur)
		r.recorder.IncStageResult(string(st.Name), result)

		slog.Info("stage finished",
			logfields.Stage(string(st.Name)),
			logfields.Code(int(code)),
			logfields.DurationMS(float64(dur.Milliseconds())))
	}

	exit := comp.Exit()
	if r.cfg.Strict && failures > 0 {
		exit = status.ExitFailure
	}
	rep.finish(comp.Value(), exit)

	r.recorder.ObserveBuildDuration(rep.End.Sub(rep.Start))
	r.recorder.IncBuildOutcome(string(rep.Outcome))

	slog.Info("pipeline finished",
		logfields.RunID(rep.RunID),
		logfields.Composite(rep.Composite),
		logfields.ExitCode(rep.ExitCode),
		logfields.Outcome(string(rep.Outcome)),
		logfields.DurationMS(float64(rep.End.Sub(rep.Start).Milliseconds())))
	return rep
}
