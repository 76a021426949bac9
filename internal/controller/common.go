package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"cracksql/internal/middleware"
	"cracksql/internal/utils"
	"cracksql/pkg/response"
)

var validate = validator.New()

// bindJSON decodes and validates the request body, writing the error
// response itself when either step fails.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, utils.NewValidationError("Invalid request body", err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fail(c, utils.NewValidationError("Validation failed", err.Error()))
		return false
	}
	return true
}

// bindQuery is bindJSON for query strings.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		fail(c, utils.NewValidationError("Invalid query parameters", err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fail(c, utils.NewValidationError("Validation failed", err.Error()))
		return false
	}
	return true
}

func fail(c *gin.Context, err error) {
	response.Abort(c, err, middleware.GetCorrelationID(c))
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, response.SuccessResponse(data, middleware.GetCorrelationID(c)))
}
