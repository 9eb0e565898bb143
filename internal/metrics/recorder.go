// Package metrics exposes build observability hooks.
//
// Components take a Recorder and default to NoopRecorder, so no nil checks
// are needed. The serve command swaps in a PrometheusRecorder and mounts
// HTTPHandler at /metrics.
package metrics

import "time"

// Build outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Recorder receives build and stage measurements.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string)
	AddPagesWritten(n int)
	AddAssetsCopied(n int)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) AddPagesWritten(int)                        {}
func (NoopRecorder) AddAssetsCopied(int)                        {}
