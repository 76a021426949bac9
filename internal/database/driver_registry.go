package database

import (
	"sort"
	"sync"

	"cracksql/internal/database/drivers"
	"cracksql/internal/database/drivers/traditional"
	"cracksql/internal/model"
	"cracksql/internal/repository"
)

// DriverRegistry manages driver instances and creation
type DriverRegistry struct {
	drivers map[model.DatabaseType]func() drivers.Driver
	mutex   sync.RWMutex
}

var globalDriverRegistry = NewDriverRegistry()

// GetDriverRegistry returns the process wide registry.
func GetDriverRegistry() *DriverRegistry {
	return globalDriverRegistry
}

// NewDriverRegistry creates a registry holding the built-in drivers.
func NewDriverRegistry() *DriverRegistry {
	registry := &DriverRegistry{
		drivers: make(map[model.DatabaseType]func() drivers.Driver),
	}
	registry.registerDrivers()
	return registry
}

func (dr *DriverRegistry) registerDrivers() {
	dr.mutex.Lock()
	defer dr.mutex.Unlock()

	dr.register(model.DatabaseTypeMySQL, func() drivers.Driver {
		return &traditional.MySQLDriver{}
	})
	dr.register(model.DatabaseTypeMariaDB, func() drivers.Driver {
		return &traditional.MySQLDriver{}
	})
	dr.register(model.DatabaseTypePostgreSQL, func() drivers.Driver {
		return &traditional.PostgreSQLDriver{}
	})
	dr.register(model.DatabaseTypeOracle, func() drivers.Driver {
		return &traditional.OracleDriver{}
	})
}

// register registers a driver factory function
func (dr *DriverRegistry) register(dbType model.DatabaseType, factory func() drivers.Driver) {
	dr.drivers[dbType] = factory
}

// Register adds or replaces the factory of dbType.
func (dr *DriverRegistry) Register(dbType model.DatabaseType, factory func() drivers.Driver) {
	dr.mutex.Lock()
	defer dr.mutex.Unlock()
	dr.register(dbType, factory)
}

// GetDriver creates a driver for the specified database type
func (dr *DriverRegistry) GetDriver(dbType model.DatabaseType) (drivers.Driver, error) {
	dr.mutex.RLock()
	factory, exists := dr.drivers[dbType]
	dr.mutex.RUnlock()

	if !exists {
		return nil, repository.ErrInvalidDatabaseType.New(dbType)
	}
	return factory(), nil
}

// ListDrivers returns all supported database types, sorted.
func (dr *DriverRegistry) ListDrivers() []model.DatabaseType {
	dr.mutex.RLock()
	defer dr.mutex.RUnlock()

	types := make([]model.DatabaseType, 0, len(dr.drivers))
	for dbType := range dr.drivers {
		types = append(types, dbType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// IsSupported checks if a database type is supported
func (dr *DriverRegistry) IsSupported(dbType model.DatabaseType) bool {
	dr.mutex.RLock()
	_, exists := dr.drivers[dbType]
	dr.mutex.RUnlock()
	return exists
}
