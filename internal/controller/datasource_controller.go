package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cracksql/internal/service"
)

// DataSourceController manages the target databases translations can be
// verified against.
type DataSourceController struct {
	service service.DataSourceService
}

func NewDataSourceController(svc service.DataSourceService) *DataSourceController {
	return &DataSourceController{service: svc}
}

// CreateDataSource godoc
// @Summary Create a new data source
// @Description Creates a new data source with the provided configuration
// @Tags datasources
// @Accept json
// @Produce json
// @Param request body service.CreateDataSourceRequest true "Create data source request"
// @Success 201 {object} response.StandardResponse{data=model.DataSource}
// @Failure 409 {object} response.StandardResponse
// @Router /api/v1/datasources [post]
func (dc *DataSourceController) CreateDataSource(c *gin.Context) {
	var req service.CreateDataSourceRequest
	if !bindJSON(c, &req) {
		return
	}
	ds, err := dc.service.CreateDataSource(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, ds)
}

// GetDataSource godoc
// @Summary Get a data source by ID
// @Tags datasources
// @Produce json
// @Param id path string true "Data source UUID"
// @Success 200 {object} response.StandardResponse{data=model.DataSource}
// @Failure 404 {object} response.StandardResponse
// @Router /api/v1/datasources/{id} [get]
func (dc *DataSourceController) GetDataSource(c *gin.Context) {
	ds, err := dc.service.GetDataSource(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, ds)
}

// ListDataSources godoc
// @Summary List data sources
// @Tags datasources
// @Produce json
// @Param status query string false "Filter by status"
// @Param name query string false "Look up a single data source by name"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.StandardResponse{data=service.ListDataSourcesResponse}
// @Router /api/v1/datasources [get]
func (dc *DataSourceController) ListDataSources(c *gin.Context) {
	if name := c.Query("name"); name != "" {
		ds, err := dc.service.GetDataSourceByName(c.Request.Context(), name)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, ds)
		return
	}

	var req service.ListDataSourcesRequest
	if !bindQuery(c, &req) {
		return
	}
	res, err := dc.service.ListDataSources(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// UpdateDataSource godoc
// @Summary Update a data source
// @Tags datasources
// @Accept json
// @Produce json
// @Param id path string true "Data source UUID"
// @Param request body service.UpdateDataSourceRequest true "Update data source request"
// @Success 200 {object} response.StandardResponse{data=model.DataSource}
// @Router /api/v1/datasources/{id} [put]
func (dc *DataSourceController) UpdateDataSource(c *gin.Context) {
	var req service.UpdateDataSourceRequest
	if !bindJSON(c, &req) {
		return
	}
	ds, err := dc.service.UpdateDataSource(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, ds)
}

// DeleteDataSource godoc
// @Summary Delete a data source
// @Tags datasources
// @Param id path string true "Data source UUID"
// @Success 204
// @Router /api/v1/datasources/{id} [delete]
func (dc *DataSourceController) DeleteDataSource(c *gin.Context) {
	if err := dc.service.DeleteDataSource(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateDataSource godoc
// @Summary Activate a data source
// @Tags datasources
// @Param id path string true "Data source UUID"
// @Success 200 {object} response.StandardResponse
// @Router /api/v1/datasources/{id}/activate [post]
func (dc *DataSourceController) ActivateDataSource(c *gin.Context) {
	if err := dc.service.ActivateDataSource(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "active"})
}

// DeactivateDataSource godoc
// @Summary Deactivate a data source
// @Tags datasources
// @Param id path string true "Data source UUID"
// @Success 200 {object} response.StandardResponse
// @Router /api/v1/datasources/{id}/deactivate [post]
func (dc *DataSourceController) DeactivateDataSource(c *gin.Context) {
	if err := dc.service.DeactivateDataSource(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "inactive"})
}

// TestDataSource godoc
// @Summary Check a saved data source
// @Tags datasources
// @Param id path string true "Data source UUID"
// @Success 200 {object} response.StandardResponse{data=database.HealthCheckResult}
// @Router /api/v1/datasources/{id}/test [post]
func (dc *DataSourceController) TestDataSource(c *gin.Context) {
	res, err := dc.service.TestDataSource(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// TestConnection godoc
// @Summary Check a configuration before saving it
// @Tags datasources
// @Accept json
// @Param request body service.TestConnectionRequest true "Connection to test"
// @Success 200 {object} response.StandardResponse{data=database.HealthCheckResult}
// @Router /api/v1/datasources/test-connection [post]
func (dc *DataSourceController) TestConnection(c *gin.Context) {
	var req service.TestConnectionRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := dc.service.TestConnection(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
