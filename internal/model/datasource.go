package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cracksql/internal/dialect"
)

// DatabaseType is the engine a data source connects to.
type DatabaseType string

const (
	DatabaseTypeMySQL      DatabaseType = "mysql"
	DatabaseTypeMariaDB    DatabaseType = "mariadb"
	DatabaseTypePostgreSQL DatabaseType = "postgresql"
	DatabaseTypeOracle     DatabaseType = "oracle"
)

// Dialect returns the SQL dialect spoken by the database type.
func (t DatabaseType) Dialect() (dialect.Dialect, error) {
	switch t {
	case DatabaseTypeMySQL, DatabaseTypeMariaDB:
		return dialect.MySQL, nil
	case DatabaseTypePostgreSQL:
		return dialect.PostgreSQL, nil
	case DatabaseTypeOracle:
		return dialect.Oracle, nil
	}
	return "", dialect.ErrUnknownDialect.New(string(t))
}

type DataSourceStatus string

const (
	DataSourceStatusActive   DataSourceStatus = "active"
	DataSourceStatusInactive DataSourceStatus = "inactive"
	DataSourceStatusError    DataSourceStatus = "error"
)

// DataSource is a target database translated statements can be verified
// against. Requests name it by ID or Name.
type DataSource struct {
	ID        string           `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string           `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Type      DatabaseType     `gorm:"type:enum('mysql','mariadb','postgresql','oracle');not null" json:"type"`
	Config    DataSourceConfig `gorm:"type:json;not null" json:"config"`
	Status    DataSourceStatus `gorm:"type:enum('active','inactive','error');default:'active'" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// DataSourceConfig holds the connection configuration for a data source.
// Password is stored encrypted; see security.CredentialVault.
type DataSourceConfig struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	Database string `json:"database" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password,omitempty"`
	SSL      bool   `json:"ssl"`
	// Timeout is the connection timeout in seconds, default 30.
	Timeout     int `json:"timeout"`
	MaxPoolSize int `json:"maxPoolSize"`
	IdleTimeout int `json:"idleTimeout"`
	MaxLifetime int `json:"maxLifetime"`
	// Timezone is passed to MySQL as loc and to PostgreSQL as TimeZone.
	Timezone        string            `json:"timezone"`
	AdditionalProps map[string]string `json:"additionalProps,omitempty"`
}

// Value implements driver.Valuer interface for GORM
func (dsc DataSourceConfig) Value() (driver.Value, error) {
	return json.Marshal(dsc)
}

// Scan implements sql.Scanner interface for GORM
func (dsc *DataSourceConfig) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dsc)
	case string:
		return json.Unmarshal([]byte(v), dsc)
	default:
		return fmt.Errorf("cannot scan %T into DataSourceConfig", value)
	}
}

// ApplyDefaults fills the pool settings left at zero.
func (dsc *DataSourceConfig) ApplyDefaults() {
	if dsc.Timeout <= 0 {
		dsc.Timeout = 30
	}
	if dsc.MaxPoolSize <= 0 {
		dsc.MaxPoolSize = 10
	}
	if dsc.IdleTimeout <= 0 {
		dsc.IdleTimeout = 600
	}
	if dsc.MaxLifetime <= 0 {
		dsc.MaxLifetime = 1800
	}
}

// TableName returns the table name for the DataSource model
func (DataSource) TableName() string {
	return "data_sources"
}

// BeforeCreate generates a new UUID if ID is empty
func (ds *DataSource) BeforeCreate(tx *gorm.DB) error {
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	return nil
}

// IsValidDatabaseType checks if a database type is valid
func IsValidDatabaseType(dbType string) bool {
	switch DatabaseType(dbType) {
	case DatabaseTypeMySQL, DatabaseTypeMariaDB, DatabaseTypePostgreSQL, DatabaseTypeOracle:
		return true
	default:
		return false
	}
}
