package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stock_monitor"

// Metrics holds the collectors updated by the monitor cycle
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	FetchesTotal     *prometheus.CounterVec
	SnapshotsSaved   prometheus.Counter
	SymbolsSkipped   prometheus.Counter
	AlertsRaised     *prometheus.CounterVec
	LastCycleSuccess prometheus.Gauge
	MonitoredSymbols prometheus.Gauge
	PublishFailures  *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "The total number of monitor cycles by result",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Duration of monitor cycles",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "The total number of quote fetches by source and result",
		}, []string{"source", "result"}),
		SnapshotsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "snapshots_saved_total",
			Help:      "The total number of snapshot rows written",
		}),
		SymbolsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "symbols_skipped_total",
			Help:      "The total number of symbols omitted for lack of data",
		}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "alerts_total",
			Help:      "The total number of alerts raised by kind",
		}, []string{"kind"}),
		LastCycleSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle",
		}),
		MonitoredSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitored_symbols",
			Help:      "The number of symbols being monitored",
		}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "failures_total",
			Help:      "The total number of failed event or notification deliveries",
		}, []string{"sink"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CyclesTotal,
		m.CycleDuration,
		m.FetchesTotal,
		m.SnapshotsSaved,
		m.SymbolsSkipped,
		m.AlertsRaised,
		m.LastCycleSuccess,
		m.MonitoredSymbols,
		m.PublishFailures,
	)
	return m
}

// ObserveCycle records the outcome of one cycle
func (m *Metrics) ObserveCycle(started time.Time, err error) {
	m.CycleDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		m.CyclesTotal.WithLabelValues("failure").Inc()
		return
	}
	m.CyclesTotal.WithLabelValues("success").Inc()
	m.LastCycleSuccess.SetToCurrentTime()
}

// ObserveFetch records one source fetch
func (m *Metrics) ObserveFetch(source string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.FetchesTotal.WithLabelValues(source, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
