package database

import (
	"context"
	"fmt"
	"time"

	"cracksql/internal/database/drivers"
	"cracksql/internal/model"
)

// HealthChecker performs health checks on database connections
type HealthChecker struct {
	connPool *ConnectionPool
	registry *DriverRegistry
}

// NewHealthChecker creates a new HealthChecker instance
func NewHealthChecker(connPool *ConnectionPool) *HealthChecker {
	return &HealthChecker{
		connPool: connPool,
		registry: connPool.registry,
	}
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	DataSourceID string        `json:"dataSourceId,omitempty"`
	DatabaseType string        `json:"databaseType,omitempty"`
	Dialect      string        `json:"dialect,omitempty"`
	Status       string        `json:"status"`
	Message      string        `json:"message,omitempty"`
	Latency      time.Duration `json:"latency"`
	CheckedAt    time.Time     `json:"checkedAt"`
}

// DatabaseHealthSummary represents a summary of database health
type DatabaseHealthSummary struct {
	TotalConnections     int                 `json:"totalConnections"`
	HealthyConnections   int                 `json:"healthyConnections"`
	UnhealthyConnections int                 `json:"unhealthyConnections"`
	Results              []HealthCheckResult `json:"results"`
	CheckedAt            time.Time           `json:"checkedAt"`
}

// CheckDataSourceHealth connects to a data source through the pool.
func (hc *HealthChecker) CheckDataSourceHealth(ctx context.Context, dataSource *model.DataSource) *HealthCheckResult {
	start := time.Now()
	result := &HealthCheckResult{
		DataSourceID: dataSource.ID,
		DatabaseType: string(dataSource.Type),
		CheckedAt:    start,
	}

	driver, err := hc.registry.GetDriver(dataSource.Type)
	if err != nil {
		return result.fail("error", err, start)
	}
	result.Dialect = string(driver.Dialect())

	db, err := hc.connPool.GetConnection(ctx, dataSource)
	if err != nil {
		return result.fail("unhealthy", err, start)
	}
	if err := driver.TestConnection(ctx, db); err != nil {
		return result.fail("unhealthy", err, start)
	}
	result.Status = "healthy"
	result.Message = "Connection successful"
	result.Latency = time.Since(start)
	return result
}

func (r *HealthCheckResult) fail(status string, err error, start time.Time) *HealthCheckResult {
	r.Status = status
	r.Message = err.Error()
	r.Latency = time.Since(start)
	return r
}

// CheckAllConnectionsHealth pings every open connection.
func (hc *HealthChecker) CheckAllConnectionsHealth(ctx context.Context) *DatabaseHealthSummary {
	checked := hc.connPool.HealthCheck(ctx)
	summary := &DatabaseHealthSummary{
		TotalConnections: len(checked),
		Results:          make([]HealthCheckResult, 0, len(checked)),
		CheckedAt:        time.Now(),
	}
	for id, ok := range checked {
		result := HealthCheckResult{DataSourceID: id, Status: "healthy", CheckedAt: summary.CheckedAt}
		if ok {
			summary.HealthyConnections++
		} else {
			result.Status = "unhealthy"
			summary.UnhealthyConnections++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary
}

// CheckDataSourceConnectivity tests connectivity without going through the
// pool, for data sources that are not saved yet.
func (hc *HealthChecker) CheckDataSourceConnectivity(ctx context.Context, config *model.DataSourceConfig, dbType model.DatabaseType) *HealthCheckResult {
	start := time.Now()
	result := &HealthCheckResult{DatabaseType: string(dbType), CheckedAt: start}

	driver, err := hc.registry.GetDriver(dbType)
	if err != nil {
		return result.fail("error", err, start)
	}
	result.Dialect = string(driver.Dialect())

	dsn := driver.BuildDSN(config)
	if err := driver.ValidateDSN(dsn); err != nil {
		return result.fail("error", fmt.Errorf("invalid connection string: %w", err), start)
	}
	db, err := driver.Open(dsn)
	if err != nil {
		return result.fail("unhealthy", err, start)
	}
	defer db.Close()

	if err := driver.TestConnection(ctx, db); err != nil {
		return result.fail("unhealthy", err, start)
	}
	result.Status = "healthy"
	result.Message = "Connection successful"
	result.Latency = time.Since(start)
	return result
}

// ValidateDataSourceConfiguration checks the required fields of config and
// fills in the default port.
func (hc *HealthChecker) ValidateDataSourceConfiguration(config *model.DataSourceConfig, dbType model.DatabaseType) error {
	driver, err := hc.registry.GetDriver(dbType)
	if err != nil {
		return err
	}
	return validateDatabaseConfig(config, driver)
}

func validateDatabaseConfig(config *model.DataSourceConfig, driver drivers.Driver) error {
	if config.Host == "" {
		return fmt.Errorf("host is required")
	}
	if config.Port <= 0 {
		config.Port = driver.GetDefaultPort()
	}
	if config.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	return driver.ValidateDSN(driver.BuildDSN(config))
}

// DriverInfo contains information about a database driver
type DriverInfo struct {
	Type        string `json:"type"`
	DriverName  string `json:"driverName"`
	Dialect     string `json:"dialect"`
	DefaultPort int    `json:"defaultPort"`
}

// GetDriverInfo returns information about available database drivers
func (hc *HealthChecker) GetDriverInfo() []DriverInfo {
	types := hc.registry.ListDrivers()
	info := make([]DriverInfo, 0, len(types))
	for _, dbType := range types {
		driver, err := hc.registry.GetDriver(dbType)
		if err != nil {
			continue
		}
		info = append(info, DriverInfo{
			Type:        string(dbType),
			DriverName:  driver.GetDriverName(),
			Dialect:     string(driver.Dialect()),
			DefaultPort: driver.GetDefaultPort(),
		})
	}
	return info
}
