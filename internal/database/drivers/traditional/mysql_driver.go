// Package traditional holds the drivers of the relational databases
// statements are translated to.
package traditional

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"cracksql/internal/dialect"
	"cracksql/internal/model"
)

// MySQLDriver implements Driver for MySQL/MariaDB
type MySQLDriver struct{}

func (d *MySQLDriver) Open(dsn string) (*sql.DB, error) {
	return sql.Open(d.GetDriverName(), dsn)
}

func (d *MySQLDriver) ValidateDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	_, err := mysql.ParseDSN(dsn)
	return err
}

func (d *MySQLDriver) GetDefaultPort() int {
	return 3306
}

func (d *MySQLDriver) BuildDSN(config *model.DataSourceConfig) string {
	port := config.Port
	if port == 0 {
		port = d.GetDefaultPort()
	}

	cfg := mysql.NewConfig()
	cfg.User = config.Username
	cfg.Passwd = config.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(config.Host, strconv.Itoa(port))
	cfg.DBName = config.Database
	cfg.ParseTime = true
	if config.Timeout > 0 {
		cfg.Timeout = time.Duration(config.Timeout) * time.Second
	}
	if config.SSL {
		cfg.TLSConfig = "true"
	}
	if config.Timezone != "" {
		if loc, err := time.LoadLocation(config.Timezone); err == nil {
			cfg.Loc = loc
		}
	}
	if len(config.AdditionalProps) > 0 {
		cfg.Params = make(map[string]string, len(config.AdditionalProps))
		for k, v := range config.AdditionalProps {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}

func (d *MySQLDriver) GetDriverName() string {
	return "mysql"
}

func (d *MySQLDriver) Dialect() dialect.Dialect {
	return dialect.MySQL
}

func (d *MySQLDriver) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{ReadOnly: true}
}

func (d *MySQLDriver) TestConnection(ctx context.Context, db *sql.DB) error {
	return db.PingContext(ctx)
}
