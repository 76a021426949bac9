package utils

import (
	"fmt"
	"net/http"

	"cracksql/internal/dialect"
	"cracksql/internal/grammar"
	"cracksql/internal/knowledge"
	"cracksql/internal/parser"
	"cracksql/internal/pathfinder"
	"cracksql/internal/repository"
	"cracksql/internal/rewrite"
)

// Error codes with HTTP status mapping
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"

	// Translation errors
	ErrCodeSQLSyntaxError     = "SQL_SYNTAX_ERROR"
	ErrCodeUnsupportedDialect = "UNSUPPORTED_DIALECT"
	ErrCodeTranslationFailed  = "TRANSLATION_FAILED"
	ErrCodeNoSignature        = "NO_SIGNATURE"
	ErrCodeUnknownRule        = "UNKNOWN_RULE"
	ErrCodeKnowledgeBase      = "KNOWLEDGE_BASE_ERROR"
	ErrCodeStatementRejected  = "STATEMENT_REJECTED"

	// Target database errors
	ErrCodeDataSourceNotFound = "DATASOURCE_NOT_FOUND"
	ErrCodeDataSourceExists   = "DATASOURCE_EXISTS"
	ErrCodeDataSourceInactive = "DATASOURCE_INACTIVE"
	ErrCodeConnectionFailed   = "CONNECTION_FAILED"

	ErrCodeInvalidToken = "INVALID_TOKEN"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeInvalidUUID  = "INVALID_UUID"
)

// HTTPStatus maps error codes to HTTP status codes
var HTTPStatus = map[string]int{
	ErrCodeInvalidRequest:     http.StatusBadRequest,
	ErrCodeValidationFailed:   http.StatusUnprocessableEntity,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeInternalError:      http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeRateLimitExceeded:  http.StatusTooManyRequests,

	ErrCodeSQLSyntaxError:     http.StatusBadRequest,
	ErrCodeUnsupportedDialect: http.StatusBadRequest,
	ErrCodeTranslationFailed:  http.StatusUnprocessableEntity,
	ErrCodeNoSignature:        http.StatusNotFound,
	ErrCodeUnknownRule:        http.StatusBadRequest,
	ErrCodeKnowledgeBase:      http.StatusInternalServerError,
	ErrCodeStatementRejected:  http.StatusForbidden,

	ErrCodeDataSourceNotFound: http.StatusNotFound,
	ErrCodeDataSourceExists:   http.StatusConflict,
	ErrCodeDataSourceInactive: http.StatusServiceUnavailable,
	ErrCodeConnectionFailed:   http.StatusServiceUnavailable,

	ErrCodeInvalidToken: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeInvalidUUID:  http.StatusBadRequest,
}

var defaultMessages = map[string]string{
	ErrCodeInvalidRequest:     "The request is invalid",
	ErrCodeValidationFailed:   "Validation failed",
	ErrCodeUnauthorized:       "Unauthorized access",
	ErrCodeNotFound:           "Resource not found",
	ErrCodeConflict:           "Resource conflict",
	ErrCodeInternalError:      "Internal server error",
	ErrCodeServiceUnavailable: "Service temporarily unavailable",
	ErrCodeRateLimitExceeded:  "Rate limit exceeded",

	ErrCodeSQLSyntaxError:     "SQL syntax error",
	ErrCodeUnsupportedDialect: "Dialect is not supported",
	ErrCodeTranslationFailed:  "Statement could not be translated",
	ErrCodeNoSignature:        "No signature covers the requested keywords",
	ErrCodeUnknownRule:        "Unknown grammar rule",
	ErrCodeKnowledgeBase:      "Knowledge base could not be loaded",
	ErrCodeStatementRejected:  "Statement is not allowed",

	ErrCodeDataSourceNotFound: "Data source not found",
	ErrCodeDataSourceExists:   "Data source already exists",
	ErrCodeDataSourceInactive: "Data source is inactive",
	ErrCodeConnectionFailed:   "Target database connection failed",

	ErrCodeInvalidToken: "Invalid token",
	ErrCodeTokenExpired: "Token expired",
	ErrCodeInvalidUUID:  "Invalid UUID format",
}

// AppError represents an application error with additional context
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status of the error code.
func (e *AppError) Status() int {
	if status, ok := HTTPStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorBuilder provides a fluent interface for creating errors
type ErrorBuilder struct {
	code    string
	message string
	details string
	cause   error
}

// NewErrorBuilder creates a new error builder
func NewErrorBuilder(code string) *ErrorBuilder {
	return &ErrorBuilder{code: code}
}

// WithMessage sets the error message
func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.message = message
	return eb
}

// WithDetails sets the error details
func (eb *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	eb.details = details
	return eb
}

// WithCause sets the underlying error; its text becomes the details when
// none were given.
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.cause = cause
	return eb
}

// Build constructs the final AppError
func (eb *ErrorBuilder) Build() *AppError {
	msg := eb.message
	if msg == "" {
		msg = defaultMessages[eb.code]
		if msg == "" {
			msg = "Unknown error"
		}
	}
	details := eb.details
	if details == "" && eb.cause != nil {
		details = eb.cause.Error()
	}
	return &AppError{
		Code:    eb.code,
		Message: msg,
		Details: details,
		Cause:   eb.cause,
	}
}

func NewValidationError(message string, details string) *AppError {
	return NewErrorBuilder(ErrCodeValidationFailed).
		WithMessage(message).
		WithDetails(details).
		Build()
}

func NewNotFoundError(resource string) *AppError {
	return NewErrorBuilder(ErrCodeNotFound).
		WithMessage(fmt.Sprintf("%s not found", resource)).
		Build()
}

// NewTranslationFailedError reports a statement that ended on the
// "Cannot translate!" sentinel.
func NewTranslationFailedError(reason string) *AppError {
	return NewErrorBuilder(ErrCodeTranslationFailed).
		WithDetails(reason).
		Build()
}

// FromError classifies an error returned by the translation packages.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	code := ErrCodeInternalError
	if pe, ok := parser.AsParseError(err); ok {
		return NewErrorBuilder(ErrCodeSQLSyntaxError).
			WithMessage(fmt.Sprintf("SQL syntax error at line %d, column %d", pe.Line, pe.Column)).
			WithCause(err).
			Build()
	}
	switch {
	case dialect.ErrUnknownDialect.Is(err):
		code = ErrCodeUnsupportedDialect
	case pathfinder.ErrNoCandidateFound.Is(err):
		code = ErrCodeNoSignature
	case grammar.ErrUnknownRule.Is(err):
		code = ErrCodeUnknownRule
	case knowledge.ErrCatalogLoad.Is(err), grammar.ErrGrammarBuild.Is(err):
		code = ErrCodeKnowledgeBase
	case rewrite.ErrEngineConfig.Is(err):
		code = ErrCodeInternalError
	case repository.ErrDataSourceNotFound.Is(err):
		code = ErrCodeDataSourceNotFound
	case repository.ErrTranslationNotFound.Is(err):
		code = ErrCodeNotFound
	case repository.ErrDataSourceExists.Is(err):
		code = ErrCodeDataSourceExists
	case repository.ErrInvalidDatabaseType.Is(err):
		code = ErrCodeValidationFailed
	}
	return NewErrorBuilder(code).WithCause(err).Build()
}

// IsErrorType checks if an error matches a specific error code
func IsErrorType(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Status()
	}
	return http.StatusInternalServerError
}
