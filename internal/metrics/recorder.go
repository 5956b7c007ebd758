package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	// ResultWarning marks a stage that contributed a success code while
	// still recording an underlying failure.
	ResultWarning ResultLabel = "warning"
	ResultFailure ResultLabel = "failure"
)

// Recorder defines observability hooks for pipeline and stage metrics.
// The NoopRecorder satisfies it when metrics are not configured.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome string) // outcome: success|failure
	IncRebuild(trigger string)      // trigger: change|interval|initial
}

// NoopRecorder is a Recorder that does nothing (default when metrics are
// not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) IncRebuild(string)                          {}
