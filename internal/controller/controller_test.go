package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cracksql/internal/database"
	"cracksql/internal/knowledge"
	"cracksql/internal/middleware"
	"cracksql/internal/rewrite"
	"cracksql/internal/service"
	"cracksql/internal/utils"
	"cracksql/internal/utils/sql_translator"
)

type envelope struct {
	Success       bool            `json:"success"`
	Data          json.RawMessage `json:"data"`
	CorrelationID string          `json:"correlationId"`
	Error         *struct {
		Code    string `json:"code"`
		Details string `json:"details"`
	} `json:"error"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	store, err := knowledge.NewStore(knowledge.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mgr := sql_translator.NewSQLTranslationManager(sql_translator.Options{
		Store:  store,
		Engine: rewrite.DefaultConfig(),
		Logger: logger,
	})
	svc := service.NewTranslationService(service.TranslationServiceOptions{Manager: mgr, Logger: logger})

	router := gin.New()
	router.Use(middleware.CorrelationID())
	Routes{
		Health:      NewHealthController(nil, "test", mgr.SupportedDialects()),
		Translation: NewTranslationController(svc),
		Database:    NewDatabaseController(database.NewConnectionPool(nil, nil, logger)),
	}.Register(router)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", "cid-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func TestTranslateEndpoint(t *testing.T) {
	router := newRouter(t)

	code, env := do(t, router, http.MethodPost, "/api/v1/sql/translate", map[string]string{
		"sql":    "SELECT IFNULL(a, 0) FROM t LIMIT 1, 2",
		"source": "mysql",
		"target": "postgresql",
	})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, "cid-1", env.CorrelationID)

	var res rewrite.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "SELECT COALESCE(a, 0) FROM t LIMIT 2 OFFSET 1", res.SQL)
}

func TestTranslateEndpointFailures(t *testing.T) {
	router := newRouter(t)

	code, env := do(t, router, http.MethodPost, "/api/v1/sql/translate", map[string]string{
		"sql": "SELECT DATE_FORMAT(d, '%Y') FROM t", "source": "mysql", "target": "postgresql",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, utils.ErrCodeTranslationFailed, env.Error.Code)
	var res rewrite.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, rewrite.CannotTranslate, res.SQL)

	code, env = do(t, router, http.MethodPost, "/api/v1/sql/translate", map[string]string{
		"sql": "SELECT 1", "source": "db2", "target": "postgresql",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, utils.ErrCodeUnsupportedDialect, env.Error.Code)

	code, env = do(t, router, http.MethodPost, "/api/v1/sql/translate", map[string]string{"source": "mysql"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, utils.ErrCodeValidationFailed, env.Error.Code)

	code, env = do(t, router, http.MethodPost, "/api/v1/sql/translate", map[string]string{
		"sql": "SELEC a FROM", "source": "mysql", "target": "postgresql",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, utils.ErrCodeSQLSyntaxError, env.Error.Code)
}

func TestKnowledgeEndpoints(t *testing.T) {
	router := newRouter(t)

	code, env := do(t, router, http.MethodGet, "/api/v1/sql/dialects", nil)
	require.Equal(t, http.StatusOK, code)
	var dialects []string
	require.NoError(t, json.Unmarshal(env.Data, &dialects))
	assert.ElementsMatch(t, []string{"mysql", "postgresql", "oracle"}, dialects)

	code, _ = do(t, router, http.MethodPost, "/api/v1/sql/signature", map[string]interface{}{
		"dialect": "mysql", "rule": "limit_clause", "targets": []string{"LIMIT", ","},
	})
	assert.Equal(t, http.StatusOK, code)

	code, env = do(t, router, http.MethodPost, "/api/v1/sql/signature", map[string]interface{}{
		"dialect": "mysql", "rule": "no_such_rule", "targets": []string{"LIMIT"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, utils.ErrCodeUnknownRule, env.Error.Code)

	code, _ = do(t, router, http.MethodPost, "/api/v1/sql/pieces", map[string]string{
		"sql": "SELECT IFNULL(a, 0) FROM t", "dialect": "mysql",
	})
	assert.Equal(t, http.StatusOK, code)
}

func TestHistoryNeedsDatabase(t *testing.T) {
	router := newRouter(t)

	code, env := do(t, router, http.MethodGet, "/api/v1/translations", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, utils.ErrCodeServiceUnavailable, env.Error.Code)

	code, _ = do(t, router, http.MethodGet, "/api/v1/datasources", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthAndDatabaseEndpoints(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "disabled", health.Database.Status)

	code, env := do(t, router, http.MethodGet, "/api/v1/database/types", nil)
	require.Equal(t, http.StatusOK, code)
	var drivers []database.DriverInfo
	require.NoError(t, json.Unmarshal(env.Data, &drivers))
	assert.Len(t, drivers, 4)
}
