// Package metrics holds the prometheus collectors exported by the simulation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Steps counts completed simulation cycles, failed or not.
	Steps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heat_steps_total",
		Help: "Simulation cycles completed",
	})

	// StepFailures counts cycles whose submission or completion failed.
	StepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heat_step_failures_total",
		Help: "Simulation cycles with a device failure",
	})

	// StepSeconds tracks device time per step including the completion wait.
	StepSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "heat_step_seconds",
		Help:    "Time from step submission to completion",
		Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
	})

	// Edits counts edits by result.
	Edits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heat_edits_total",
			Help: "Edits applied to the live grid by result",
		},
		[]string{"result"},
	)

	// GateViolations counts guarded calls made without holding the gate.
	GateViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heat_gate_violations_total",
		Help: "Calls that required the gate but did not hold it",
	})

	// Iteration mirrors the iteration counter of the running system.
	Iteration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heat_iteration",
		Help: "Current iteration of the running system",
	})

	// Suspended is 1 while the gate is held.
	Suspended = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heat_suspended",
		Help: "Whether the simulation loop is suspended",
	})
)
