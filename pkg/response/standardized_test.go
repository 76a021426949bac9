package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cracksql/internal/dialect"
	"cracksql/internal/utils"
)

func TestAbort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Abort(c, dialect.ErrUnknownDialect.New("db2"), "cid-1")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, c.Errors, 1)

	var body StandardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "cid-1", body.CorrelationID)
	require.NotNil(t, body.Error)
	assert.Equal(t, utils.ErrCodeUnsupportedDialect, body.Error.Code)
	assert.Contains(t, body.Error.Details, "db2")
}

func TestFailedResponse(t *testing.T) {
	resp := FailedResponse(map[string]string{"sql": "x"}, utils.NewTranslationFailedError("Cannot translate!"), "cid")
	assert.False(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Equal(t, utils.ErrCodeTranslationFailed, resp.Error.Code)

	ok := SuccessResponse(1, "cid")
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)

	assert.Equal(t, "Unauthorized access", UnauthorizedResponse("", "cid").Error.Message)
	assert.Equal(t, utils.ErrCodeValidationFailed, ValidationErrorResponse("bad", "cid").Error.Code)
}
