package repository

import errors "gopkg.in/src-d/go-errors.v1"

// Common repository errors
var (
	ErrDataSourceNotFound  = errors.NewKind("data source %s not found")
	ErrDataSourceExists    = errors.NewKind("data source %s already exists")
	ErrInvalidDatabaseType = errors.NewKind("invalid database type %q")
	ErrTranslationNotFound = errors.NewKind("translation %s not found")
)
