// Package metrics provides observability hooks for pipeline runs.
//
// The Recorder interface defines all metric operations. Components receive
// a Recorder through dependency injection and default to NoopRecorder, so
// single-shot builds pay nothing for instrumentation. Watch mode swaps in
// the Prometheus-backed recorder and serves the registry over HTTP.
package metrics
