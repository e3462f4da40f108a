package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	checksTotal        *prometheus.CounterVec
	checkDuration      *prometheus.HistogramVec
	retrievedDocs      *prometheus.HistogramVec
	llmCallsTotal      *prometheus.CounterVec
	regenerationsTotal *prometheus.CounterVec
	aliasCacheTotal    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regcheck",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "regcheck",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "regcheck",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	checksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regcheck",
			Subsystem: "compliance",
			Name:      "checks_total",
			Help:      "Total completed compliance checks by market, domain and overall risk.",
		},
		[]string{"service", "market", "domain", "risk"},
	)
	checkDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "regcheck",
			Subsystem: "compliance",
			Name:      "check_duration_seconds",
			Help:      "End-to-end compliance check duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "domain"},
	)
	retrievedDocs := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "regcheck",
			Subsystem: "retrieval",
			Name:      "documents",
			Help:      "Distribution of documents handed to generation per check.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "domain"},
	)
	llmCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regcheck",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total model calls by purpose and status.",
		},
		[]string{"service", "purpose", "status"},
	)
	regenerationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regcheck",
			Subsystem: "llm",
			Name:      "regenerations_total",
			Help:      "Total answers regenerated after a low review score.",
		},
		[]string{"service", "domain"},
	)
	aliasCacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regcheck",
			Subsystem: "alias_cache",
			Name:      "lookups_total",
			Help:      "Total ingredient alias cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		checksTotal,
		checkDuration,
		retrievedDocs,
		llmCallsTotal,
		regenerationsTotal,
		aliasCacheTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		checksTotal:        checksTotal,
		checkDuration:      checkDuration,
		retrievedDocs:      retrievedDocs,
		llmCallsTotal:      llmCallsTotal,
		regenerationsTotal: regenerationsTotal,
		aliasCacheTotal:    aliasCacheTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordCheck(service, market, domain, risk string, docCount int, duration time.Duration) {
	if risk == "" {
		risk = "unknown"
	}
	m.checksTotal.WithLabelValues(service, market, domain, risk).Inc()
	m.checkDuration.WithLabelValues(service, domain).Observe(duration.Seconds())
	m.retrievedDocs.WithLabelValues(service, domain).Observe(float64(docCount))
}

func (m *HTTPServerMetrics) RecordLLMCall(service, purpose string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.llmCallsTotal.WithLabelValues(service, purpose, status).Inc()
}

func (m *HTTPServerMetrics) RecordRegeneration(service, domain string) {
	m.regenerationsTotal.WithLabelValues(service, domain).Inc()
}

func (m *HTTPServerMetrics) RecordAliasLookup(service string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.aliasCacheTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
