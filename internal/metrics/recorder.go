// Package metrics provides a small recorder abstraction over Prometheus so
// the pipeline can emit counters and durations without a hard dependency on a
// live registry (tests use the no-op recorder).
package metrics

import "time"

// Recorder receives build pipeline measurements.
type Recorder interface {
	// IncCounter increments a named counter.
	IncCounter(name string)
	// AddCounter adds a value to a named counter.
	AddCounter(name string, value float64)
	// SetGauge sets a named gauge.
	SetGauge(name string, value float64)
	// ObserveDuration records a duration observation for a named histogram.
	ObserveDuration(name string, d time.Duration)
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) IncCounter(string)                    {}
func (Noop) AddCounter(string, float64)           {}
func (Noop) SetGauge(string, float64)             {}
func (Noop) ObserveDuration(string, time.Duration) {}

var _ Recorder = Noop{}
