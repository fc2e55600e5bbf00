// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package triage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the iteration controller. A nil
// *Metrics records nothing.
//
// Metrics:
//   - triage_training_total{outcome} - train steps by success, failure, timeout
//   - triage_training_duration_seconds - scoring wall time
//   - triage_training_in_flight - outstanding train steps
//   - triage_labels_total{label,action} - selection toggles by add, remove, reject
//   - triage_completions_total{reason} - projects completed by max_iterations or manual
type Metrics struct {
	TrainingTotal    *prometheus.CounterVec
	TrainingDuration prometheus.Histogram
	InFlight         prometheus.Gauge
	LabelsTotal      *prometheus.CounterVec
	CompletionsTotal *prometheus.CounterVec
}

// NewMetrics registers the controller collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TrainingTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_training_total",
				Help: "Total train steps by outcome",
			},
			[]string{"outcome"},
		),
		TrainingDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "triage_training_duration_seconds",
				Help:    "Duration of scoring runs in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
		),
		InFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "triage_training_in_flight",
				Help: "Number of outstanding train steps",
			},
		),
		LabelsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_labels_total",
				Help: "Selection toggles by label and action",
			},
			[]string{"label", "action"},
		),
		CompletionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_completions_total",
				Help: "Projects completed by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) training(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.TrainingTotal.WithLabelValues(outcome).Inc()
	m.TrainingDuration.Observe(seconds)
}

func (m *Metrics) inFlight(delta float64) {
	if m == nil {
		return
	}
	m.InFlight.Add(delta)
}

func (m *Metrics) label(label, action string) {
	if m == nil {
		return
	}
	m.LabelsTotal.WithLabelValues(label, action).Inc()
}

func (m *Metrics) completed(reason string) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(reason).Inc()
}
