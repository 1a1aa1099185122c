package viewerapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/openspec-viewer/openspec"
)

// Metrics holds the viewer's Prometheus collectors on a private registry so
// several servers can coexist in one process (and in tests).
type Metrics struct {
	registry *prometheus.Registry

	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	parseWarnings   prometheus.Gauge
	parseErrors     prometheus.Gauge
	watchEvents     *prometheus.CounterVec
	clients         prometheus.Gauge
	httpRequests    *prometheus.CounterVec
}

// NewMetrics creates and registers the viewer metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openspec_refresh_total",
			Help: "Total OpenSpec load passes by result",
		}, []string{"result"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "openspec_refresh_duration_seconds",
			Help:    "Duration of OpenSpec load passes in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		parseWarnings: factory.NewGauge(prometheus.GaugeOpts{
			Name: "openspec_parse_warnings",
			Help: "Warnings reported by the most recent load pass",
		}),
		parseErrors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "openspec_parse_errors",
			Help: "Errors reported by the most recent load pass",
		}),
		watchEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openspec_watch_events_total",
			Help: "Filesystem events by type and affected entity",
		}, []string{"type", "entity"}),
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "openspec_connected_clients",
			Help: "Connected live-update clients",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openspec_http_requests_total",
			Help: "HTTP API requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRefresh records one load pass.
func (m *Metrics) ObserveRefresh(res openspec.Result[openspec.Data], elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !res.OK() {
		result = "error"
	}
	m.refreshTotal.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(elapsed.Seconds())
	m.parseWarnings.Set(float64(len(res.Warnings)))
	m.parseErrors.Set(float64(len(res.Errors)))
}

// ObserveWatchEvent records a classified filesystem event.
func (m *Metrics) ObserveWatchEvent(ev openspec.ChangeEvent) {
	if m == nil {
		return
	}
	m.watchEvents.WithLabelValues(string(ev.Type), string(ev.AffectedEntity)).Inc()
}

// SetClients records the number of connected clients.
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

// instrument counts requests for route by response status.
func (m *Metrics) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
