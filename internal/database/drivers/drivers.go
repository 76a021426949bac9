// Package drivers describes how each supported target database is reached.
package drivers

import (
	"context"
	"database/sql"

	"cracksql/internal/dialect"
	"cracksql/internal/model"
)

// Driver opens connections to one kind of database and knows how to run a
// statement without leaving anything behind.
type Driver interface {
	// Open opens a database connection
	Open(dsn string) (*sql.DB, error)

	// ValidateDSN validates the connection string
	ValidateDSN(dsn string) error

	// GetDefaultPort returns the default port for the database
	GetDefaultPort() int

	// BuildDSN builds a connection string from configuration
	BuildDSN(config *model.DataSourceConfig) string

	// GetDriverName returns the underlying database/sql driver name
	GetDriverName() string

	// Dialect returns the SQL dialect the database speaks.
	Dialect() dialect.Dialect

	// TxOptions returns the options of the transaction statements are
	// verified in, or nil for the driver default.
	TxOptions() *sql.TxOptions

	// TestConnection tests if the connection is working
	TestConnection(ctx context.Context, db *sql.DB) error
}
