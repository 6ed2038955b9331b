// Package metrics exposes Prometheus metrics for HTTP traffic, invoice saves
// and the database pool.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
	"fieldledger/internal/infrastructure/storage/postgres"
)

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	saves           *prometheus.CounterVec
	retries         prometheus.Counter
	deficitUnits    *prometheus.CounterVec
	catalogFallback *prometheus.CounterVec
}

var _ invoice.Observer = (*Metrics)(nil)

// New creates collectors on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_invoice_saves_total",
			Help: "Invoice saves by result.",
		}, []string{"result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_commit_retries_total",
			Help: "Invoice commits recomputed after a concurrent stock change.",
		}),
		deficitUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_deficit_units_total",
			Help: "Units consumed without available stock, by item type.",
		}, []string{"item_type"}),
		catalogFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_catalog_fallback_total",
			Help: "Requests served from the default catalog, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.saves, m.retries, m.deficitUnits, m.catalogFallback,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SaveFinished implements invoice.Observer.
func (m *Metrics) SaveFinished(result string) { m.saves.WithLabelValues(result).Inc() }

// CommitRetried implements invoice.Observer.
func (m *Metrics) CommitRetried() { m.retries.Inc() }

// DeficitRecorded implements invoice.Observer.
func (m *Metrics) DeficitRecorded(itemType stock.ItemType, units int64) {
	m.deficitUnits.WithLabelValues(string(itemType)).Add(float64(units))
}

// CatalogFallback counts a catalog served from the default. Pass it to
// catalog.WithFallbackHook.
func (m *Metrics) CatalogFallback(reason string) { m.catalogFallback.WithLabelValues(reason).Inc() }

// RegisterPool exports connection pool statistics as gauges.
func (m *Metrics) RegisterPool(pool *postgres.Pool) {
	gauge := func(name, help string, value func(postgres.PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return value(pool.Stats())
		})
	}
	m.registry.MustRegister(
		gauge("db_pool_total_conns", "Open connections.", func(s postgres.PoolStats) float64 { return float64(s.TotalConns) }),
		gauge("db_pool_acquired_conns", "Connections in use.", func(s postgres.PoolStats) float64 { return float64(s.AcquiredConns) }),
		gauge("db_pool_idle_conns", "Idle connections.", func(s postgres.PoolStats) float64 { return float64(s.IdleConns) }),
		gauge("db_pool_max_conns", "Pool size limit.", func(s postgres.PoolStats) float64 { return float64(s.MaxConns) }),
	)
}
