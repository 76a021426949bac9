package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cracksql/internal/dialect"
)

func TestDatabaseTypeDialect(t *testing.T) {
	tests := []struct {
		typ  DatabaseType
		want dialect.Dialect
	}{
		{DatabaseTypeMySQL, dialect.MySQL},
		{DatabaseTypeMariaDB, dialect.MySQL},
		{DatabaseTypePostgreSQL, dialect.PostgreSQL},
		{DatabaseTypeOracle, dialect.Oracle},
	}
	for _, tt := range tests {
		got, err := tt.typ.Dialect()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.True(t, IsValidDatabaseType(string(tt.typ)))
	}

	_, err := DatabaseType("sqlserver").Dialect()
	assert.True(t, dialect.ErrUnknownDialect.Is(err))
	assert.False(t, IsValidDatabaseType("sqlserver"))
}

func TestDataSourceConfigValue(t *testing.T) {
	cfg := DataSourceConfig{Host: "db", Port: 5432, Database: "app", Username: "u", Timezone: "UTC"}
	v, err := cfg.Value()
	require.NoError(t, err)

	var back DataSourceConfig
	require.NoError(t, back.Scan(v))
	assert.Equal(t, cfg, back)

	var fromString DataSourceConfig
	require.NoError(t, fromString.Scan(`{"host":"h","port":1}`))
	assert.Equal(t, "h", fromString.Host)

	assert.NoError(t, new(DataSourceConfig).Scan(nil))
	assert.Error(t, new(DataSourceConfig).Scan(42))
}

func TestApplyDefaults(t *testing.T) {
	cfg := DataSourceConfig{MaxPoolSize: 3}
	cfg.ApplyDefaults()
	assert.Equal(t, 30, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxPoolSize)
	assert.Equal(t, 600, cfg.IdleTimeout)
	assert.Equal(t, 1800, cfg.MaxLifetime)
}

func TestBeforeCreateAssignsIDs(t *testing.T) {
	ds := &DataSource{}
	require.NoError(t, ds.BeforeCreate(nil))
	assert.Len(t, ds.ID, 36)

	rec := &TranslationRecord{ID: "keep"}
	require.NoError(t, rec.BeforeCreate(nil))
	assert.Equal(t, "keep", rec.ID)
}
