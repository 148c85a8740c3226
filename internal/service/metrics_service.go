package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the outbound WIMS calls and the score synchroniser.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	wimsDuration    *prometheus.HistogramVec
	wimsTotal       *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	syncGrades      *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	wimsDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wims_request_duration_seconds",
		Help:    "Duration of adm/raw calls to the WIMS server",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	wimsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wims_requests_total",
		Help: "Total adm/raw calls by job and outcome",
	}, []string{"job", "outcome"})

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Total score synchronisation runs by result",
	}, []string{"result"})

	syncGrades := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_grades_total",
		Help: "Total grades processed by synchronisation runs",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, wimsDuration, wimsTotal, syncRuns, syncGrades, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		wimsDuration:    wimsDuration,
		wimsTotal:       wimsTotal,
		syncRuns:        syncRuns,
		syncGrades:      syncGrades,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveRemoteCall records one outbound WIMS call. Satisfies the client's
// observer hook.
func (m *MetricsService) ObserveRemoteCall(job, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.wimsDuration.WithLabelValues(job).Observe(duration.Seconds())
	m.wimsTotal.WithLabelValues(job, outcome).Inc()
}

// ObserveSyncRun records the overall result of one synchronisation run.
func (m *MetricsService) ObserveSyncRun(failed bool, gradesUpdated, gradesFailed int) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "partial"
	}
	m.syncRuns.WithLabelValues(result).Inc()
	m.syncGrades.WithLabelValues("updated").Add(float64(gradesUpdated))
	m.syncGrades.WithLabelValues("failed").Add(float64(gradesFailed))
}
