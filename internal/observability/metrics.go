package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances (tests, the CLI) never
// collide on the global default registerer. All methods are nil-safe.
type Metrics struct {
	reg *prometheus.Registry

	imports       *prometheus.CounterVec
	confirms      *prometheus.CounterVec
	exports       *prometheus.CounterVec
	stagingSwept  prometheus.Counter
	mergeDuration *prometheus.HistogramVec
	writes        *prometheus.HistogramVec
	writeConflict *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	httpInflight  prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		imports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyport_imports_total",
			Help: "Archive uploads by kind and result",
		}, []string{"kind", "result"}),
		confirms: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyport_confirms_total",
			Help: "Import confirmations by kind, overwrite mode and result",
		}, []string{"kind", "mode", "result"}),
		exports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyport_exports_total",
			Help: "Exports by kind and result",
		}, []string{"kind", "result"}),
		stagingSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "studyport_staging_swept_total",
			Help: "Staging sessions and directories reclaimed by the sweeper",
		}),
		mergeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studyport_merge_duration_seconds",
			Help:    "Time spent applying a confirmed import",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
		writes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studyport_record_write_duration_seconds",
			Help:    "Transactional record writes by operation and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		writeConflict: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyport_record_write_conflicts_total",
			Help: "Record writes rejected by a uniqueness or compare-and-set conflict",
		}, []string{"op"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyport_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studyport_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "studyport_http_inflight_requests",
			Help: "HTTP requests currently being served",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) IncImport(kind, result string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(label(kind), label(result)).Inc()
}

func (m *Metrics) IncConfirm(kind, mode, result string) {
	if m == nil {
		return
	}
	m.confirms.WithLabelValues(label(kind), label(mode), label(result)).Inc()
}

func (m *Metrics) IncExport(kind, result string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(label(kind), label(result)).Inc()
}

func (m *Metrics) AddStagingSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.stagingSwept.Add(float64(n))
}

func (m *Metrics) ObserveMerge(kind string, dur time.Duration) {
	if m == nil {
		return
	}
	m.mergeDuration.WithLabelValues(label(kind)).Observe(dur.Seconds())
}

func (m *Metrics) ObserveWrite(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(label(op), label(status)).Observe(dur.Seconds())
}

func (m *Metrics) IncWriteConflict(op string) {
	if m == nil {
		return
	}
	m.writeConflict.WithLabelValues(label(op)).Inc()
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	method = strings.ToUpper(label(method))
	route = label(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.httpInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.httpInflight.Dec()
}

func label(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
