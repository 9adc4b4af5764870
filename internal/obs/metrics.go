package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tokenhub_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenhub_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokenhub_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenhub_logins_total",
			Help: "Login attempts by path (oauth, local_admin, refresh) and outcome.",
		},
		[]string{"path", "outcome"},
	)

	supplyAdjustmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenhub_supply_adjustments_total",
			Help: "Mint and burn requests by outcome.",
		},
		[]string{"action", "outcome"},
	)

	sseClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tokenhub_sse_clients",
		Help: "Connected token event stream clients.",
	})

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tokenhub_build_info",
			Help: "Build information.",
		},
		[]string{"version", "commit"},
	)
)

// Init registers the metrics with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			loginsTotal, supplyAdjustmentsTotal, sseClients, buildInfo,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}

func ObserveLogin(path, outcome string) {
	loginsTotal.WithLabelValues(path, outcome).Inc()
}

func ObserveSupplyAdjustment(action, outcome string) {
	supplyAdjustmentsTotal.WithLabelValues(action, outcome).Inc()
}

func SSEClientConnected()    { sseClients.Inc() }
func SSEClientDisconnected() { sseClients.Dec() }

// Instrument records request count, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := RoutePattern(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// RoutePattern replaces uuid path segments with :id so labels stay bounded.
func RoutePattern(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if _, err := uuid.Parse(seg); err == nil && len(seg) == 36 {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working behind the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
