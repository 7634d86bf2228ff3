// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations counts wipe operations by terminal state.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diskwipeout",
		Name:      "operations_total",
		Help:      "Wipe operations by terminal state.",
	}, []string{"state"})

	// BytesWritten counts pattern bytes written across all passes.
	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "diskwipeout",
		Name:      "bytes_written_total",
		Help:      "Total pattern bytes written to targets.",
	})

	// Verdicts counts verification verdicts by classification.
	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diskwipeout",
		Name:      "verification_verdicts_total",
		Help:      "Verification verdicts by classification.",
	}, []string{"classification"})

	// HiddenAreasRemoved counts cleared hidden areas by kind.
	HiddenAreasRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diskwipeout",
		Name:      "hidden_areas_removed_total",
		Help:      "Hidden areas cleared before erasure, by kind.",
	}, []string{"kind"})
)
