package metrics

import (
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("build_kernel", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("build_kernel", ResultSuccess)
	pr.IncStageResult("run_emulator", ResultFailure)
	pr.IncBuildOutcome("failure")
	pr.IncRebuild("interval")

	// Basic scrape to ensure metrics encode without panic.
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected metrics, got none")
	}
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "esquebuild_") {
			t.Errorf("metric %q missing namespace prefix", mf.GetName())
		}
	}
}

func TestPrometheusRecorderNilReceiver(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("build_kernel", time.Second)
	pr.ObserveBuildDuration(time.Second)
	pr.IncStageResult("build_kernel", ResultSuccess)
	pr.IncBuildOutcome("success")
	pr.IncRebuild("change")
}
