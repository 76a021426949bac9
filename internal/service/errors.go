package service

import (
	"cracksql/internal/database"
	"cracksql/internal/security"
	"cracksql/internal/utils"
	"cracksql/internal/utils/sql_translator"
)

// classify turns errors of the packages utils.FromError cannot see into
// AppErrors. Anything else is returned as is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var code string
	switch {
	case database.ErrConnectionFailed.Is(err):
		code = utils.ErrCodeConnectionFailed
	case database.ErrDataSourceInactive.Is(err):
		code = utils.ErrCodeDataSourceInactive
	case sql_translator.ErrEmptyStatement.Is(err):
		code = utils.ErrCodeValidationFailed
	case sql_translator.ErrInvalidStatement.Is(err):
		code = utils.ErrCodeSQLSyntaxError
	case security.ErrEmptyStatement.Is(err), security.ErrStatementTooLong.Is(err),
		security.ErrNotReadOnly.Is(err), security.ErrMultipleStatements.Is(err),
		security.ErrUnreadableStatement.Is(err):
		code = utils.ErrCodeStatementRejected
	default:
		return err
	}
	return utils.NewErrorBuilder(code).WithCause(err).Build()
}

// IsStatementRejected reports whether err comes from the statement guard.
func IsStatementRejected(err error) bool {
	return utils.IsErrorType(classify(err), utils.ErrCodeStatementRejected)
}
