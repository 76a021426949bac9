package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Translation metrics
	TranslationsTotal   *prometheus.CounterVec
	TranslationDuration *prometheus.HistogramVec
	OracleCalls         *prometheus.HistogramVec
	Lifts               *prometheus.CounterVec
	PiecesRewritten     *prometheus.CounterVec

	// Verification against live targets
	Executions        *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
}

var (
	metrics *PrometheusMetrics
)

// InitMetrics registers every metric with reg. A nil reg uses the default
// registry.
func InitMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	metrics = &PrometheusMetrics{
		HttpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cracksql_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HttpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cracksql_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		TranslationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cracksql_translations_total",
				Help: "Statements translated, by outcome",
			},
			[]string{"source", "target", "outcome"},
		),
		TranslationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cracksql_translation_duration_seconds",
				Help:    "Wall clock time of one statement translation",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"source", "target"},
		),
		OracleCalls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cracksql_oracle_calls_per_statement",
				Help:    "Oracle calls made for one statement",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"source", "target"},
		),
		Lifts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cracksql_lifts_total",
				Help: "Times a failing piece was lifted to its enclosing piece",
			},
			[]string{"source", "target"},
		),
		PiecesRewritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cracksql_pieces_rewritten_total",
				Help: "Pieces replaced in successfully translated statements",
			},
			[]string{"source", "target", "kind"},
		),

		Executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cracksql_verify_executions_total",
				Help: "Statements executed against a target database for verification",
			},
			[]string{"database_type", "status"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cracksql_verify_execution_duration_seconds",
				Help:    "Verification execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"database_type"},
		),
	}
	return metrics
}

// GetMetrics returns the initialized metrics
func GetMetrics() *PrometheusMetrics {
	return metrics
}

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HttpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		metrics.HttpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// TranslationSample is what one finished translation reports.
type TranslationSample struct {
	Source     string
	Target     string
	Succeeded  bool
	Duration   time.Duration
	OracleCall int
	Lifts      int
	// PieceKinds lists the kind of every piece left rewritten.
	PieceKinds []string
}

// RecordTranslation records a finished statement translation
func RecordTranslation(s TranslationSample) {
	if metrics == nil {
		return
	}

	outcome := "failed"
	if s.Succeeded {
		outcome = "succeeded"
	}
	metrics.TranslationsTotal.WithLabelValues(s.Source, s.Target, outcome).Inc()
	metrics.TranslationDuration.WithLabelValues(s.Source, s.Target).Observe(s.Duration.Seconds())
	metrics.OracleCalls.WithLabelValues(s.Source, s.Target).Observe(float64(s.OracleCall))
	if s.Lifts > 0 {
		metrics.Lifts.WithLabelValues(s.Source, s.Target).Add(float64(s.Lifts))
	}
	for _, kind := range s.PieceKinds {
		metrics.PiecesRewritten.WithLabelValues(s.Source, s.Target, kind).Inc()
	}
}

// RecordExecution records a verification run against a target database
func RecordExecution(databaseType string, err error, duration time.Duration) {
	if metrics == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.Executions.WithLabelValues(databaseType, status).Inc()
	metrics.ExecutionDuration.WithLabelValues(databaseType).Observe(duration.Seconds())
}
