// Package config loads the server configuration with viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"cracksql/internal/knowledge"
	"cracksql/internal/oracle"
	"cracksql/internal/rewrite"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Engine    rewrite.Config  `mapstructure:"engine"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required,numeric"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"`
	Host string `mapstructure:"host"`
}

// DatabaseConfig is the MySQL database holding data sources and the
// translation history. With Enabled false the server runs without it.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port     string `mapstructure:"port"`
	Database string `mapstructure:"database" validate:"required_if=Enabled true"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSL      string `mapstructure:"ssl"`
}

type SecurityConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret" validate:"required_if=EnableAuth true"`
	JWTExpiration      time.Duration `mapstructure:"jwt_expiration"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" validate:"gte=0"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
	EnableAuth         bool          `mapstructure:"enable_auth"`
	EnableRateLimit    bool          `mapstructure:"enable_rate_limit"`
	// CredentialKey seals data source passwords at rest.
	CredentialKey string `mapstructure:"credential_key"`
	// MaxStatementLength bounds statements run against data sources.
	MaxStatementLength int `mapstructure:"max_statement_length" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// OracleConfig points at an OpenAI compatible chat endpoint.
type OracleConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Temperature       float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// Options converts the section for oracle.New.
func (c OracleConfig) Options(log logrus.FieldLogger) oracle.Options {
	return oracle.Options{
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		Model:             c.Model,
		Temperature:       c.Temperature,
		RequestsPerMinute: c.RequestsPerMinute,
		Burst:             c.Burst,
		Timeout:           c.Timeout,
		Logger:            log,
	}
}

type KnowledgeConfig struct {
	CatalogDir    string `mapstructure:"catalog_dir"`
	CachePath     string `mapstructure:"cache_path"`
	MaxCandidates int    `mapstructure:"max_candidates" validate:"gte=0"`
}

// Options converts the section for knowledge.NewStore.
func (c KnowledgeConfig) Options(log logrus.FieldLogger) knowledge.Options {
	return knowledge.Options{
		CatalogDir:    c.CatalogDir,
		CachePath:     c.CachePath,
		MaxCandidates: c.MaxCandidates,
		Logger:        log,
	}
}

// Load reads config.yaml from ./configs or the working directory, or
// configFile when set, then CRACKSQL_* environment variables.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("CRACKSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		logrus.Info("Config file not found, using defaults and environment variables")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.host", "0.0.0.0")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.database", "cracksql")
	v.SetDefault("database.username", "cracksql")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl", "false")

	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_expiration", "24h")
	v.SetDefault("security.rate_limit_per_minute", 60)
	v.SetDefault("security.rate_limit_burst", 10)
	v.SetDefault("security.enable_auth", false)
	v.SetDefault("security.enable_rate_limit", true)
	v.SetDefault("security.credential_key", "")
	v.SetDefault("security.max_statement_length", 64<<10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	engine := rewrite.DefaultConfig()
	v.SetDefault("engine.max_retry_time", engine.MaxRetry)
	v.SetDefault("engine.max_iterations", engine.MaxIterations)
	v.SetDefault("engine.timeout", engine.Timeout.String())
	v.SetDefault("engine.execute", engine.Execute)
	v.SetDefault("engine.lift_enabled", engine.LiftEnabled)

	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", "gpt-4o-mini")
	v.SetDefault("oracle.temperature", 0)
	v.SetDefault("oracle.requests_per_minute", 60)
	v.SetDefault("oracle.burst", 1)
	v.SetDefault("oracle.timeout", "60s")

	v.SetDefault("knowledge.catalog_dir", "")
	v.SetDefault("knowledge.cache_path", "")
	v.SetDefault("knowledge.max_candidates", 0)
}
