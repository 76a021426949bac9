package traditional

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/lib/pq"

	"cracksql/internal/dialect"
	"cracksql/internal/model"
)

// PostgreSQLDriver implements Driver for PostgreSQL
type PostgreSQLDriver struct{}

func (d *PostgreSQLDriver) Open(dsn string) (*sql.DB, error) {
	return sql.Open(d.GetDriverName(), dsn)
}

func (d *PostgreSQLDriver) ValidateDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	_, err := pq.ParseURL(dsn)
	return err
}

func (d *PostgreSQLDriver) GetDefaultPort() int {
	return 5432
}

func (d *PostgreSQLDriver) BuildDSN(config *model.DataSourceConfig) string {
	port := config.Port
	if port == 0 {
		port = d.GetDefaultPort()
	}

	q := url.Values{}
	if config.SSL {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	if config.Timezone != "" {
		q.Set("TimeZone", config.Timezone)
	}
	if config.Timeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(config.Timeout))
	}
	for k, v := range config.AdditionalProps {
		q.Set(k, v)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.Username, config.Password),
		Host:     net.JoinHostPort(config.Host, strconv.Itoa(port)),
		Path:     "/" + config.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (d *PostgreSQLDriver) GetDriverName() string {
	return "postgres"
}

func (d *PostgreSQLDriver) Dialect() dialect.Dialect {
	return dialect.PostgreSQL
}

func (d *PostgreSQLDriver) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{ReadOnly: true}
}

func (d *PostgreSQLDriver) TestConnection(ctx context.Context, db *sql.DB) error {
	return db.PingContext(ctx)
}
