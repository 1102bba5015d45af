package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"time"
)

const (
	TraceOutcomeAnalyzed    = "analyzed"
	TraceOutcomeNoRoot      = "no_root"
	TraceOutcomeInvalid     = "invalid"
	TraceOutcomeFilteredOut = "filtered_out"
)

// PipelineMetrics is safe to use through a nil pointer, which records nothing.
type PipelineMetrics struct {
	spansReceived    prometheus.Counter
	recordsSkipped   prometheus.Counter
	traces           *prometheus.CounterVec
	fitFailures      *prometheus.CounterVec
	analysisDuration prometheus.Histogram
}

func NewPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(registerer)
	return &PipelineMetrics{
		spansReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "phasefit_spans_received_total",
			Help: "Spans received through the OTLP receiver",
		}),
		recordsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "phasefit_records_skipped_total",
			Help: "Malformed trace records skipped during ingestion",
		}),
		traces: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phasefit_traces_total",
			Help: "Traces seen by the analysis by outcome",
		}, []string{"outcome"}),
		fitFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phasefit_fit_failures_total",
			Help: "Series for which no distribution could be fitted",
		}, []string{"series"}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "phasefit_analysis_duration_seconds",
			Help:    "Duration of one batch analysis",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
}

func (m *PipelineMetrics) SpansReceived(count int) {
	if m == nil {
		return
	}
	m.spansReceived.Add(float64(count))
}

func (m *PipelineMetrics) RecordsSkipped(count int) {
	if m == nil {
		return
	}
	m.recordsSkipped.Add(float64(count))
}

func (m *PipelineMetrics) Traces(outcome string, count int) {
	if m == nil {
		return
	}
	m.traces.WithLabelValues(outcome).Add(float64(count))
}

func (m *PipelineMetrics) FitFailure(series string) {
	if m == nil {
		return
	}
	m.fitFailures.WithLabelValues(series).Inc()
}

func (m *PipelineMetrics) ObserveAnalysis(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.analysisDuration.Observe(elapsed.Seconds())
}
