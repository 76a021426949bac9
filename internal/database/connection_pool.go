// Package database reaches the target databases translated statements are
// verified against.
package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"

	"cracksql/internal/model"
)

var (
	// ErrConnectionFailed wraps failures to open or ping a data source.
	ErrConnectionFailed = errors.NewKind("cannot connect to data source %s")
	// ErrDataSourceInactive is returned for data sources that are not active.
	ErrDataSourceInactive = errors.NewKind("data source %s is %s")
)

// Decrypter recovers a stored password.
type Decrypter interface {
	Decrypt(encoded string) (string, error)
}

// ConnectionPool keeps one *sql.DB per data source.
type ConnectionPool struct {
	registry  *DriverRegistry
	decrypter Decrypter
	log       logrus.FieldLogger

	pools    map[string]*sql.DB
	mutex    sync.RWMutex
	health   map[string]bool
	healthMu sync.RWMutex
}

// NewConnectionPool creates a pool. A nil decrypter uses stored passwords as
// they are.
func NewConnectionPool(registry *DriverRegistry, decrypter Decrypter, log logrus.FieldLogger) *ConnectionPool {
	if registry == nil {
		registry = GetDriverRegistry()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ConnectionPool{
		registry:  registry,
		decrypter: decrypter,
		log:       log.WithField("component", "connection_pool"),
		pools:     make(map[string]*sql.DB),
		health:    make(map[string]bool),
	}
}

// GetConnection gets or creates a database connection for the specified data source
func (cp *ConnectionPool) GetConnection(ctx context.Context, dataSource *model.DataSource) (*sql.DB, error) {
	cp.mutex.RLock()
	db, exists := cp.pools[dataSource.ID]
	cp.mutex.RUnlock()

	if exists {
		if err := db.PingContext(ctx); err == nil {
			return db, nil
		}
		cp.log.WithField("datasource", dataSource.ID).Warn("dropping dead connection")
		cp.removeConnection(dataSource.ID)
	}
	return cp.createConnection(ctx, dataSource)
}

func (cp *ConnectionPool) createConnection(ctx context.Context, dataSource *model.DataSource) (*sql.DB, error) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	// Another caller may have won the race.
	if db, exists := cp.pools[dataSource.ID]; exists {
		if err := db.PingContext(ctx); err == nil {
			return db, nil
		}
	}

	driver, err := cp.registry.GetDriver(dataSource.Type)
	if err != nil {
		return nil, err
	}

	config := dataSource.Config
	config.ApplyDefaults()
	if cp.decrypter != nil && config.Password != "" {
		config.Password, err = cp.decrypter.Decrypt(config.Password)
		if err != nil {
			return nil, ErrConnectionFailed.Wrap(err, dataSource.Name)
		}
	}

	db, err := driver.Open(driver.BuildDSN(&config))
	if err != nil {
		return nil, ErrConnectionFailed.Wrap(err, dataSource.Name)
	}
	configureConnectionPool(db, &config)

	if err := driver.TestConnection(ctx, db); err != nil {
		db.Close()
		cp.setHealth(dataSource.ID, false)
		return nil, ErrConnectionFailed.Wrap(err, dataSource.Name)
	}

	cp.pools[dataSource.ID] = db
	cp.setHealth(dataSource.ID, true)
	cp.log.WithFields(logrus.Fields{
		"datasource": dataSource.ID,
		"type":       dataSource.Type,
	}).Info("connection opened")
	return db, nil
}

func configureConnectionPool(db *sql.DB, config *model.DataSourceConfig) {
	db.SetMaxOpenConns(config.MaxPoolSize)

	maxIdleConns := config.MaxPoolSize / 2
	if maxIdleConns < 2 {
		maxIdleConns = 2
	}
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Duration(config.MaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(config.IdleTimeout) * time.Second)
}

func (cp *ConnectionPool) removeConnection(dataSourceID string) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	if db, exists := cp.pools[dataSourceID]; exists {
		db.Close()
		delete(cp.pools, dataSourceID)
		cp.setHealth(dataSourceID, false)
	}
}

// CloseConnection closes the connection of a data source, if open. It is
// called when a data source changes or goes away.
func (cp *ConnectionPool) CloseConnection(dataSourceID string) error {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	db, exists := cp.pools[dataSourceID]
	if !exists {
		return nil
	}
	delete(cp.pools, dataSourceID)
	cp.setHealth(dataSourceID, false)
	return db.Close()
}

// CloseAll closes all connections in the pool
func (cp *ConnectionPool) CloseAll() error {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	var lastErr error
	for id, db := range cp.pools {
		if err := db.Close(); err != nil {
			lastErr = err
		}
		delete(cp.pools, id)
		cp.setHealth(id, false)
	}
	return lastErr
}

// ConnectionStats contains connection pool statistics
type ConnectionStats struct {
	OpenConnections   int           `json:"openConnections"`
	InUse             int           `json:"inUse"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"waitCount"`
	WaitDuration      time.Duration `json:"waitDuration"`
	MaxIdleClosed     int64         `json:"maxIdleClosed"`
	MaxLifetimeClosed int64         `json:"maxLifetimeClosed"`
	Healthy           bool          `json:"healthy"`
}

// GetStats returns statistics for all connections in the pool
func (cp *ConnectionPool) GetStats() map[string]ConnectionStats {
	cp.mutex.RLock()
	defer cp.mutex.RUnlock()

	stats := make(map[string]ConnectionStats, len(cp.pools))
	for id, db := range cp.pools {
		s := db.Stats()
		stats[id] = ConnectionStats{
			OpenConnections:   s.OpenConnections,
			InUse:             s.InUse,
			Idle:              s.Idle,
			WaitCount:         s.WaitCount,
			WaitDuration:      s.WaitDuration,
			MaxIdleClosed:     s.MaxIdleClosed,
			MaxLifetimeClosed: s.MaxLifetimeClosed,
			Healthy:           cp.IsHealthy(id),
		}
	}
	return stats
}

// HealthCheck pings every open connection.
func (cp *ConnectionPool) HealthCheck(ctx context.Context) map[string]bool {
	cp.mutex.RLock()
	defer cp.mutex.RUnlock()

	results := make(map[string]bool, len(cp.pools))
	for id, db := range cp.pools {
		ok := db.PingContext(ctx) == nil
		cp.setHealth(id, ok)
		results[id] = ok
	}
	return results
}

// IsHealthy checks if a specific data source connection is healthy
func (cp *ConnectionPool) IsHealthy(dataSourceID string) bool {
	cp.healthMu.RLock()
	defer cp.healthMu.RUnlock()
	return cp.health[dataSourceID]
}

func (cp *ConnectionPool) setHealth(dataSourceID string, healthy bool) {
	cp.healthMu.Lock()
	defer cp.healthMu.Unlock()
	cp.health[dataSourceID] = healthy
}
