package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"cracksql/internal/database/drivers"
	"cracksql/internal/dialect"
	"cracksql/internal/middleware"
	"cracksql/internal/model"
)

// Guard vets a statement before it reaches a live database.
type Guard interface {
	Check(d dialect.Dialect, sql string) error
}

// Executor verifies translated statements by running them against one data
// source inside a transaction that is always rolled back. Only the first
// row is fetched.
type Executor struct {
	pool       *ConnectionPool
	dataSource *model.DataSource
	driver     drivers.Driver
	guard      Guard
	log        logrus.FieldLogger
}

// NewExecutor returns an Executor for an active data source. guard may be
// nil.
func NewExecutor(pool *ConnectionPool, dataSource *model.DataSource, guard Guard) (*Executor, error) {
	if dataSource.Status != "" && dataSource.Status != model.DataSourceStatusActive {
		return nil, ErrDataSourceInactive.New(dataSource.Name, dataSource.Status)
	}
	driver, err := pool.registry.GetDriver(dataSource.Type)
	if err != nil {
		return nil, err
	}
	return &Executor{
		pool:       pool,
		dataSource: dataSource,
		driver:     driver,
		guard:      guard,
		log: pool.log.WithFields(logrus.Fields{
			"datasource": dataSource.ID,
			"dialect":    driver.Dialect(),
		}),
	}, nil
}

// Dialect returns the dialect of the data source.
func (x *Executor) Dialect() dialect.Dialect {
	return x.driver.Dialect()
}

// Connect opens the connection ahead of the first statement, so that an
// unreachable database is reported as such rather than as a bad statement.
func (x *Executor) Connect(ctx context.Context) error {
	_, err := x.pool.GetConnection(ctx, x.dataSource)
	return err
}

// Execute implements rewrite.Executor.
func (x *Executor) Execute(ctx context.Context, query string) error {
	start := time.Now()
	err := x.execute(ctx, query)
	elapsed := time.Since(start)
	middleware.RecordExecution(string(x.dataSource.Type), err, elapsed)

	log := x.log.WithField("elapsed", elapsed)
	if err != nil {
		log.WithError(err).Debug("statement rejected by target")
		return err
	}
	log.Debug("statement accepted by target")
	return nil
}

func (x *Executor) execute(ctx context.Context, query string) error {
	if x.guard != nil {
		if err := x.guard.Check(x.driver.Dialect(), query); err != nil {
			return err
		}
	}

	db, err := x.pool.GetConnection(ctx, x.dataSource)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, x.driver.TxOptions())
	if err != nil {
		return ErrConnectionFailed.Wrap(err, x.dataSource.Name)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			x.log.WithError(rerr).Warn("rollback failed")
		}
	}()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	rows.Next()
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
