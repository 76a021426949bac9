package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cracksql/internal/database"
)

// DatabaseController reports on the drivers and the pooled target
// connections.
type DatabaseController struct {
	pool          *database.ConnectionPool
	healthChecker *database.HealthChecker
}

func NewDatabaseController(pool *database.ConnectionPool) *DatabaseController {
	return &DatabaseController{
		pool:          pool,
		healthChecker: database.NewHealthChecker(pool),
	}
}

// GetDatabaseTypes godoc
// @Summary Get supported database types
// @Description Returns the drivers available for data sources and the dialect each one speaks
// @Tags database
// @Produce json
// @Success 200 {object} response.StandardResponse{data=[]database.DriverInfo}
// @Router /api/v1/database/types [get]
func (dc *DatabaseController) GetDatabaseTypes(c *gin.Context) {
	ok(c, http.StatusOK, dc.healthChecker.GetDriverInfo())
}

// GetConnectionStats godoc
// @Summary Get connection pool statistics
// @Tags database
// @Produce json
// @Success 200 {object} response.StandardResponse
// @Router /api/v1/database/connections/stats [get]
func (dc *DatabaseController) GetConnectionStats(c *gin.Context) {
	ok(c, http.StatusOK, dc.pool.GetStats())
}

// GetDatabaseHealth godoc
// @Summary Get database health status
// @Description Pings every pooled target connection
// @Tags database
// @Produce json
// @Success 200 {object} response.StandardResponse{data=database.DatabaseHealthSummary}
// @Router /api/v1/database/health [get]
func (dc *DatabaseController) GetDatabaseHealth(c *gin.Context) {
	ok(c, http.StatusOK, dc.healthChecker.CheckAllConnectionsHealth(c.Request.Context()))
}
