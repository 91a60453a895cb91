// Package metrics provides Prometheus metrics for the docqa engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds all Prometheus metrics for the engine.
// Every method is safe to call on a nil *Metrics and then does nothing.
type Metrics struct {
	IngestionsTotal   *prometheus.CounterVec
	AnswersTotal      *prometheus.CounterVec
	LLMFallbacksTotal *prometheus.CounterVec
	AnswerDuration    prometheus.Histogram
	AnswerConfidence  prometheus.Histogram
	IndexedDocuments  prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg.
// A nil reg uses a fresh registry, which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	m.IngestionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_ingestions_total",
			Help: "Total number of document ingestions",
		},
		[]string{"status"},
	)

	m.AnswersTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_answers_total",
			Help: "Total number of answers by answer path",
		},
		[]string{"path"},
	)

	m.LLMFallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_llm_fallbacks_total",
			Help: "Total number of extractive fallbacks by reason",
		},
		[]string{"reason"},
	)

	m.AnswerDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_answer_duration_seconds",
			Help:    "Duration of question answering in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.AnswerConfidence = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_answer_confidence",
			Help:    "Confidence of returned answers",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	m.IndexedDocuments = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "docqa_indexed_documents",
			Help: "Number of documents currently queryable",
		},
	)

	return m
}

// RecordIngestion counts one ingestion attempt.
func (m *Metrics) RecordIngestion(err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.IngestionsTotal.WithLabelValues(status).Inc()
}

// RecordAnswer records a returned answer.
func (m *Metrics) RecordAnswer(path string, confidence float64, duration time.Duration) {
	if m == nil {
		return
	}
	m.AnswersTotal.WithLabelValues(path).Inc()
	m.AnswerConfidence.Observe(confidence)
	m.AnswerDuration.Observe(duration.Seconds())
}

// RecordFallback counts a fallback from the language model to extractive answering.
func (m *Metrics) RecordFallback(reason string) {
	if m == nil {
		return
	}
	m.LLMFallbacksTotal.WithLabelValues(reason).Inc()
}

// SetIndexedDocuments updates the queryable document count.
func (m *Metrics) SetIndexedDocuments(n int) {
	if m == nil {
		return
	}
	m.IndexedDocuments.Set(float64(n))
}

// Handler serves the registry the metrics were registered with, or the
// default gatherer when that registry cannot be gathered.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
