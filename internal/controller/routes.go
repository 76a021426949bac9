package controller

import (
	"github.com/gin-gonic/gin"
)

// Routes holds the controllers of the API. DataSources and Database are
// nil when no metadata database is configured, and their routes are left
// out.
type Routes struct {
	Health      *HealthController
	Translation *TranslationController
	DataSources *DataSourceController
	Database    *DatabaseController
	// Protect guards every route but the health check.
	Protect []gin.HandlerFunc
}

// Register mounts the routes under /api/v1.
func (r Routes) Register(router *gin.Engine) {
	router.GET("/health", r.Health.HealthCheck)

	api := router.Group("/api/v1", r.Protect...)
	{
		sql := api.Group("/sql")
		{
			sql.GET("/dialects", r.Translation.GetSupportedDialects)
			sql.POST("/translate", r.Translation.Translate)
			sql.POST("/signature", r.Translation.Signature)
			sql.POST("/pieces", r.Translation.Pieces)
			sql.POST("/verify", r.Translation.Verify)
		}

		translations := api.Group("/translations")
		{
			translations.GET("", r.Translation.ListTranslations)
			translations.GET("/stats", r.Translation.GetStats)
			translations.GET("/:id", r.Translation.GetTranslation)
		}
	}

	if r.DataSources != nil {
		datasources := api.Group("/datasources")
		{
			datasources.POST("", r.DataSources.CreateDataSource)
			datasources.GET("", r.DataSources.ListDataSources)
			datasources.POST("/test-connection", r.DataSources.TestConnection)
			datasources.GET("/:id", r.DataSources.GetDataSource)
			datasources.PUT("/:id", r.DataSources.UpdateDataSource)
			datasources.DELETE("/:id", r.DataSources.DeleteDataSource)
			datasources.POST("/:id/activate", r.DataSources.ActivateDataSource)
			datasources.POST("/:id/deactivate", r.DataSources.DeactivateDataSource)
			datasources.POST("/:id/test", r.DataSources.TestDataSource)
		}
	}

	if r.Database != nil {
		database := api.Group("/database")
		{
			database.GET("/types", r.Database.GetDatabaseTypes)
			database.GET("/connections/stats", r.Database.GetConnectionStats)
			database.GET("/health", r.Database.GetDatabaseHealth)
		}
	}
}
