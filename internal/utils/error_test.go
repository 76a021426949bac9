package utils

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cracksql/internal/dialect"
	"cracksql/internal/grammar"
	"cracksql/internal/parser"
	"cracksql/internal/pathfinder"
	"cracksql/internal/repository"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"dialect", dialect.ErrUnknownDialect.New("db2"), ErrCodeUnsupportedDialect, http.StatusBadRequest},
		{"signature", pathfinder.ErrNoCandidateFound.New("limit_clause", []string{"TOP"}), ErrCodeNoSignature, http.StatusNotFound},
		{"rule", grammar.ErrUnknownRule.New("mysql", "nope"), ErrCodeUnknownRule, http.StatusBadRequest},
		{"datasource", repository.ErrDataSourceNotFound.New("x"), ErrCodeDataSourceNotFound, http.StatusNotFound},
		{"history", repository.ErrTranslationNotFound.New("x"), ErrCodeNotFound, http.StatusNotFound},
		{"duplicate", repository.ErrDataSourceExists.New("x"), ErrCodeDataSourceExists, http.StatusConflict},
		{"other", errors.New("boom"), ErrCodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.Status())
			assert.Equal(t, tt.err.Error(), appErr.Details)
			assert.Equal(t, tt.err, appErr.Unwrap())
		})
	}

	assert.Nil(t, FromError(nil))
}

func TestFromErrorParseError(t *testing.T) {
	pe := &parser.ParseError{Line: 1, Column: 8, Near: "FROM", Message: "unexpected token"}
	appErr := FromError(parser.ErrParse.Wrap(pe, "mysql"))
	assert.Equal(t, ErrCodeSQLSyntaxError, appErr.Code)
	assert.Equal(t, "SQL syntax error at line 1, column 8", appErr.Message)
}

func TestAppErrorHelpers(t *testing.T) {
	v := NewValidationError("bad input", "sql is required")
	assert.Same(t, v, FromError(v))
	assert.True(t, IsErrorType(v, ErrCodeValidationFailed))
	assert.Equal(t, http.StatusUnprocessableEntity, GetErrorStatus(v))
	assert.Equal(t, http.StatusInternalServerError, GetErrorStatus(errors.New("x")))

	nf := NewNotFoundError("Translation")
	assert.Equal(t, "Translation not found", nf.Message)

	tf := NewTranslationFailedError("Cannot translate!")
	assert.Equal(t, "Statement could not be translated", tf.Message)
	assert.Equal(t, "Cannot translate!", tf.Details)

	unknown := NewErrorBuilder("SOMETHING_NEW").Build()
	assert.Equal(t, "Unknown error", unknown.Message)
	assert.Equal(t, http.StatusInternalServerError, unknown.Status())
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("3f0b2a1e-7c2d-4b8e-9f3a-1d2c3b4a5e6f"))
	assert.False(t, IsValidUUID("not-a-uuid"))
}
