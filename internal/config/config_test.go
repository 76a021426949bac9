package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 2, cfg.Engine.MaxRetry)
	assert.Equal(t, 64, cfg.Engine.MaxIterations)
	assert.Equal(t, 2*time.Minute, cfg.Engine.Timeout)
	assert.True(t, cfg.Engine.LiftEnabled)
	assert.False(t, cfg.Engine.Execute)
	assert.Equal(t, "gpt-4o-mini", cfg.Oracle.Model)
	assert.Equal(t, 60*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 64<<10, cfg.Security.MaxStatementLength)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
engine:
  max_retry_time: 3
  timeout: 30s
  execute: true
oracle:
  base_url: http://localhost:11434/v1
  model: qwen2.5-coder
  temperature: 0.2
knowledge:
  cache_path: /var/lib/cracksql/signatures
logging:
  level: debug
  format: text
`)
	t.Setenv("CRACKSQL_ENGINE_MAX_ITERATIONS", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Engine.MaxRetry)
	assert.Equal(t, 10, cfg.Engine.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.Engine.Timeout)
	assert.True(t, cfg.Engine.Execute)
	assert.InDelta(t, 0.2, cfg.Oracle.Temperature, 1e-6)

	opts := cfg.Oracle.Options(nil)
	assert.Equal(t, "http://localhost:11434/v1", opts.BaseURL)
	assert.Equal(t, "qwen2.5-coder", opts.Model)
	assert.Equal(t, "/var/lib/cracksql/signatures", cfg.Knowledge.Options(nil).CachePath)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"format":     "logging:\n  format: xml\n",
		"iterations": "engine:\n  max_iterations: 0\n",
		"auth":       "security:\n  enable_auth: true\n",
		"database":   "database:\n  enabled: true\n  host: \"\"\n",
		"oracle url": "oracle:\n  base_url: not a url\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	defer logrus.SetFormatter(logrus.StandardLogger().Formatter)

	log, err := SetupLogging(LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	_, err = SetupLogging(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, gormLogLevel("debug"))
	assert.Equal(t, logger.Warn, gormLogLevel("info"))
	assert.Equal(t, logger.Error, gormLogLevel("warn"))
	assert.Equal(t, logger.Silent, gormLogLevel("error"))
	assert.Equal(t, logger.Warn, gormLogLevel(""))
}
