package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/db2kit/pkg/store"
)

const (
	statusSuccess  = "success"
	statusError    = "error"
	statusNotFound = "not_found"
)

// Metrics holds all Prometheus metrics for the API. A nil *Metrics records
// nothing.
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Record lookup metrics
	lookupsTotal *prometheus.CounterVec

	// Catalog metrics
	catalogTables        prometheus.Gauge
	tableRecords         *prometheus.GaugeVec
	tableRecordsSkipped  *prometheus.GaugeVec
	tableSectionsOmitted *prometheus.GaugeVec

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db2kit_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db2kit_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "db2kit_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		lookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db2kit_record_lookups_total",
				Help: "Total number of record lookups by identifier",
			},
			[]string{"table", "status"},
		),

		catalogTables: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "db2kit_catalog_tables",
				Help: "Number of decoded tables served",
			},
		),

		tableRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "db2kit_table_records",
				Help: "Records decoded per table, including copies",
			},
			[]string{"table"},
		),

		tableRecordsSkipped: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "db2kit_table_records_skipped",
				Help: "Malformed sparse records skipped per table",
			},
			[]string{"table"},
		),

		tableSectionsOmitted: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "db2kit_table_sections_omitted",
				Help: "Sections omitted per table because their encryption key is unknown",
			},
			[]string{"table"},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db2kit_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db2kit_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordLookup records a record lookup against table
func (m *Metrics) RecordLookup(table, status string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(table, status).Inc()
}

// ObserveCatalog sets the catalog gauges from the tables currently loaded
func (m *Metrics) ObserveCatalog(c *store.Catalog) {
	if m == nil {
		return
	}
	entries := c.Entries()
	m.catalogTables.Set(float64(len(entries)))
	for _, e := range entries {
		m.tableRecords.WithLabelValues(e.Name).Set(float64(e.Table.Stats.Records))
		m.tableRecordsSkipped.WithLabelValues(e.Name).Set(float64(e.Table.Stats.RecordsSkipped))
		m.tableSectionsOmitted.WithLabelValues(e.Name).Set(float64(e.Table.Stats.SectionsOmitted))
	}
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	if m == nil {
		return
	}
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	if m == nil {
		return
	}
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Capture the status code for the request counter.
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
