package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Dialects  []string       `json:"dialects"`
	Database  DatabaseStatus `json:"database"`
}

type DatabaseStatus struct {
	Status          string `json:"status"`
	Message         string `json:"message,omitempty"`
	OpenConnections int    `json:"openConnections,omitempty"`
	InUse           int    `json:"inUse,omitempty"`
	Idle            int    `json:"idle,omitempty"`
}

type HealthController struct {
	db       *gorm.DB
	version  string
	dialects []string
}

// NewHealthController creates a HealthController. db is nil when no
// metadata database is configured.
func NewHealthController(db *gorm.DB, version string, dialects []string) *HealthController {
	return &HealthController{db: db, version: version, dialects: dialects}
}

func (hc *HealthController) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   "cracksql",
		Version:   hc.version,
		Dialects:  hc.dialects,
		Database:  DatabaseStatus{Status: "disabled"},
	}

	if hc.db != nil {
		sqlDB, err := hc.db.DB()
		switch {
		case err != nil:
			resp.Status = "unhealthy"
			resp.Database = DatabaseStatus{Status: "disconnected", Message: "Failed to get database instance"}
		case sqlDB.PingContext(c.Request.Context()) != nil:
			resp.Status = "unhealthy"
			resp.Database = DatabaseStatus{Status: "disconnected", Message: "Database ping failed"}
		default:
			stats := sqlDB.Stats()
			resp.Database = DatabaseStatus{
				Status:          "connected",
				OpenConnections: stats.OpenConnections,
				InUse:           stats.InUse,
				Idle:            stats.Idle,
			}
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, resp)
}
