package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry           *prometheus.Registry
	TransactionsTotal  prometheus.Counter
	IngestErrorsTotal  *prometheus.CounterVec
	ReplaysTotal       *prometheus.CounterVec
	AutomationOutcomes *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		TransactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafficlens",
			Name:      "transactions_ingested_total",
			Help:      "Total transactions accepted into the store",
		}),
		IngestErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trafficlens",
			Name:      "ingest_errors_total",
			Help:      "Total rejected ingest records by reason",
		}, []string{"reason"}),
		ReplaysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trafficlens",
			Name:      "replays_total",
			Help:      "Total replayed requests by outcome",
		}, []string{"outcome"}),
		AutomationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trafficlens",
			Name:      "automation_targets_total",
			Help:      "Total automation targets by terminal state",
		}, []string{"state"}),
	}
	r.MustRegister(m.TransactionsTotal, m.IngestErrorsTotal, m.ReplaysTotal, m.AutomationOutcomes)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
