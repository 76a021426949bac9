// Package bootstrap builds the object graph shared by the server, the MCP
// server and the CLI from a loaded configuration.
package bootstrap

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"cracksql/internal/config"
	"cracksql/internal/database"
	"cracksql/internal/knowledge"
	"cracksql/internal/oracle"
	"cracksql/internal/repository"
	"cracksql/internal/rewrite"
	"cracksql/internal/security"
	"cracksql/internal/service"
	"cracksql/internal/utils/sql_translator"
)

// Version is reported by the health check and the MCP server.
var Version = "0.1.0"

// App holds the long-lived components. DB, Pool and DataSources are nil
// when the metadata database is disabled.
type App struct {
	Config       *config.Config
	Log          *logrus.Logger
	DB           *gorm.DB
	Store        *knowledge.Store
	Manager      *sql_translator.SQLTranslationManager
	Pool         *database.ConnectionPool
	Translations service.TranslationService
	DataSources  service.DataSourceService
}

// Options tweak Build.
type Options struct {
	// Offline answers with the built-in rules instead of a chat model.
	Offline bool
}

// NewOracle returns the chat model client, or the rule oracle when no
// endpoint is configured or offline is set.
func NewOracle(cfg config.OracleConfig, offline bool, log *logrus.Logger) rewrite.Oracle {
	if offline || (cfg.APIKey == "" && cfg.BaseURL == "") {
		log.Info("No chat endpoint configured, translating with built-in rules")
		return sql_translator.NewRuleOracle()
	}
	return oracle.New(cfg.Options(log))
}

// Build wires every component of cfg.
func Build(cfg *config.Config, log *logrus.Logger, opts Options) (*App, error) {
	store, err := knowledge.NewStore(cfg.Knowledge.Options(log))
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Log: log, Store: store}

	app.Manager = sql_translator.NewSQLTranslationManager(sql_translator.Options{
		Store:  store,
		Oracle: NewOracle(cfg.Oracle, opts.Offline, log),
		Engine: cfg.Engine,
		Logger: log,
	})

	tsOpts := service.TranslationServiceOptions{
		Manager: app.Manager,
		Guard:   security.NewStatementGuard(cfg.Security.MaxStatementLength),
		Logger:  log,
	}

	if cfg.Database.Enabled {
		db, err := config.InitDatabase(cfg, log)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.DB = db

		var vault *security.CredentialVault
		if cfg.Security.CredentialKey != "" {
			if vault, err = security.NewCredentialVaultFromSecret(cfg.Security.CredentialKey); err != nil {
				app.Close()
				return nil, err
			}
		} else {
			log.Warn("security.credential_key is empty, data source passwords are stored in clear")
		}

		var decrypter database.Decrypter
		var sealer service.Vault
		if vault != nil {
			decrypter, sealer = vault, vault
		}
		app.Pool = database.NewConnectionPool(database.GetDriverRegistry(), decrypter, log)
		dsRepo := repository.NewDataSourceRepository(db)
		app.DataSources = service.NewDataSourceService(dsRepo, app.Pool, sealer, log)

		tsOpts.DataSources = dsRepo
		tsOpts.History = repository.NewTranslationRepository(db)
		tsOpts.Pool = app.Pool
	}
	app.Translations = service.NewTranslationService(tsOpts)
	return app, nil
}

// Close releases the pooled connections, the metadata database and the
// signature cache.
func (a *App) Close() {
	if a.Pool != nil {
		if err := a.Pool.CloseAll(); err != nil {
			a.Log.WithError(err).Warn("Failed to close target connections")
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.WithError(err).Warn("Failed to close signature cache")
		}
	}
}
