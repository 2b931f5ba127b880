package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "bestcity"

// Metrics holds every Prometheus instrument of the service on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	HTTPDuration      *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	DBConnection      prometheus.Gauge

	NotesCreated   prometheus.Counter
	NotesRetrieved prometheus.Counter
	NotesUpdated   prometheus.Counter
	NotesDeleted   prometheus.Counter

	Errors          *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec
}

func New(logger *zap.Logger) *Metrics {
	registry := prometheus.NewRegistry()
	prometheus.WrapRegistererWithPrefix(namespace+"_", registry).MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		logger:   logger,
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1, 3, 5, 7, 10},
		}, []string{"method", "route", "status_code"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of active connections",
		}),
		DBConnection: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connection_status",
			Help:      "Database connection status (1 = connected, 0 = disconnected)",
		}),
		NotesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_created_total",
			Help:      "Total number of notes created",
		}),
		NotesRetrieved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_retrieved_total",
			Help:      "Total number of notes retrieved",
		}),
		NotesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_updated_total",
			Help:      "Total number of notes updated",
		}),
		NotesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_deleted_total",
			Help:      "Total number of notes deleted",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		}, []string{"type", "route"}),
		DBQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
		}, []string{"operation", "collection"}),
	}

	registry.MustRegister(
		m.HTTPDuration,
		m.HTTPRequests,
		m.ActiveConnections,
		m.DBConnection,
		m.NotesCreated,
		m.NotesRetrieved,
		m.NotesUpdated,
		m.NotesDeleted,
		m.Errors,
		m.DBQueryDuration,
	)
	return m
}

// Registry exposes the underlying registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetDBConnected records the database link state.
func (m *Metrics) SetDBConnected(connected bool) {
	if connected {
		m.DBConnection.Set(1)
	} else {
		m.DBConnection.Set(0)
	}
	m.logger.Info("Database connection status updated", zap.Bool("connected", connected))
}

func (m *Metrics) ObserveQuery(operation, collection string, d time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation, collection).Observe(d.Seconds())
}

func (m *Metrics) RecordError(kind, route string) {
	m.Errors.WithLabelValues(kind, route).Inc()
}

// RouteFunc names the route template a request resolves to.
type RouteFunc func(r *http.Request) string

// Middleware times every request. It must wrap the router so that unmatched
// and panicking requests are counted too.
func (m *Metrics) Middleware(route RouteFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.ActiveConnections.Inc()

			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				labels := prometheus.Labels{
					"method":      r.Method,
					"route":       route(r),
					"status_code": strconv.Itoa(ww.status),
				}
				m.HTTPDuration.With(labels).Observe(time.Since(start).Seconds())
				m.HTTPRequests.With(labels).Inc()
				m.ActiveConnections.Dec()
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture response status
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
