package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationID(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(CorrelationID(), RequestLogger(log))

	var fromCtx string
	r.GET("/ping", func(c *gin.Context) {
		fromCtx = CorrelationIDFrom(c.Request.Context())
		c.String(http.StatusOK, GetCorrelationID(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "abc", fromCtx)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "abc", entry.Data["correlation_id"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Body.String(), 36)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPM: 1, Burst: 2})
	defer rl.Close()

	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", "k1")
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "k2")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 2, rl.ActiveClients())
}

func TestRecordTranslation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	defer func() { metrics = nil }()

	RecordTranslation(TranslationSample{
		Source:     "mysql",
		Target:     "postgresql",
		Succeeded:  true,
		Duration:   20 * time.Millisecond,
		OracleCall: 2,
		Lifts:      1,
		PieceKinds: []string{"function", "clause"},
	})
	RecordTranslation(TranslationSample{Source: "mysql", Target: "postgresql"})
	RecordExecution("postgresql", nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranslationsTotal.WithLabelValues("mysql", "postgresql", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranslationsTotal.WithLabelValues("mysql", "postgresql", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lifts.WithLabelValues("mysql", "postgresql")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PiecesRewritten.WithLabelValues("mysql", "postgresql", "function")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("postgresql", "success")))

	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/x/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x/1", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HttpRequestsTotal.WithLabelValues("GET", "/x/:id", "200")))
}
