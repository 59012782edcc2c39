// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// stage labels
const (
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageRerank   = "rerank"
	StageLLM      = "llm"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics groups the collectors registered on one registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry    *prometheus.Registry
	Queries     *prometheus.CounterVec
	Ingestions  *prometheus.CounterVec
	Generations *prometheus.CounterVec
	Stages      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docflow",
			Name:      "queries_total",
			Help:      "Chat queries answered, by outcome.",
		}, []string{"status"}),
		Ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docflow",
			Name:      "ingestions_total",
			Help:      "Sources ingested, by kind and outcome.",
		}, []string{"kind", "status"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docflow",
			Name:      "generations_total",
			Help:      "Generation mode invocations, by mode and outcome.",
		}, []string{"mode", "status"}),
		Stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docflow",
			Name:      "stage_seconds",
			Help:      "Latency of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"stage"}),
	}
	m.Registry.MustRegister(
		m.Queries,
		m.Ingestions,
		m.Generations,
		m.Stages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

func (m *Metrics) ObserveQuery(err error) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) ObserveIngestion(kind string, err error) {
	if m == nil {
		return
	}
	m.Ingestions.WithLabelValues(kind, status(err)).Inc()
}

func (m *Metrics) ObserveGeneration(mode string, err error) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(mode, status(err)).Inc()
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.Stages.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
