package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cracksql/internal/middleware"
	"cracksql/internal/model"
	"cracksql/internal/service"
	"cracksql/internal/utils"
	"cracksql/pkg/response"
)

// TranslationController handles SQL dialect translation requests
type TranslationController struct {
	service service.TranslationService
}

// NewTranslationController creates a new translation controller
func NewTranslationController(svc service.TranslationService) *TranslationController {
	return &TranslationController{service: svc}
}

// Translate godoc
// @Summary Translate SQL from one dialect to another
// @Description Rewrites a statement piece by piece until it is valid in the target dialect
// @Tags translation
// @Accept json
// @Produce json
// @Param request body model.TranslateRequest true "Translation request"
// @Success 200 {object} response.StandardResponse{data=rewrite.Result}
// @Failure 400 {object} response.StandardResponse
// @Failure 422 {object} response.StandardResponse{data=rewrite.Result}
// @Router /api/v1/sql/translate [post]
func (tc *TranslationController) Translate(c *gin.Context) {
	var req model.TranslateRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := tc.service.Translate(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	if !res.Succeeded {
		// The session log is useful even when the statement cannot be
		// translated.
		c.JSON(http.StatusUnprocessableEntity, response.FailedResponse(
			res, utils.NewTranslationFailedError(res.Reason), middleware.GetCorrelationID(c)))
		return
	}
	ok(c, http.StatusOK, res)
}

// Verify godoc
// @Summary Run a statement against a data source
// @Description Executes a read-only statement inside a rolled back transaction
// @Tags translation
// @Accept json
// @Produce json
// @Param request body service.VerifyRequest true "Verify request"
// @Success 200 {object} response.StandardResponse{data=service.VerifyResponse}
// @Failure 403 {object} response.StandardResponse
// @Router /api/v1/sql/verify [post]
func (tc *TranslationController) Verify(c *gin.Context) {
	var req service.VerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := tc.service.Verify(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Signature godoc
// @Summary Derive a grammar signature
// @Description Finds the shortest grammar paths from a rule to the given terminals
// @Tags knowledge
// @Accept json
// @Produce json
// @Param request body model.SignatureRequest true "Signature request"
// @Success 200 {object} response.StandardResponse{data=model.SignatureResponse}
// @Failure 404 {object} response.StandardResponse
// @Router /api/v1/sql/signature [post]
func (tc *TranslationController) Signature(c *gin.Context) {
	var req model.SignatureRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := tc.service.Signature(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Pieces godoc
// @Summary List the catalogued constructs of a statement
// @Tags knowledge
// @Accept json
// @Produce json
// @Param request body model.PiecesRequest true "Pieces request"
// @Success 200 {object} response.StandardResponse{data=[]model.PieceInfo}
// @Router /api/v1/sql/pieces [post]
func (tc *TranslationController) Pieces(c *gin.Context) {
	var req model.PiecesRequest
	if !bindJSON(c, &req) {
		return
	}
	pieces, err := tc.service.Pieces(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, pieces)
}

// GetSupportedDialects godoc
// @Summary Get supported SQL dialects
// @Tags translation
// @Produce json
// @Success 200 {object} response.StandardResponse{data=[]string}
// @Router /api/v1/sql/dialects [get]
func (tc *TranslationController) GetSupportedDialects(c *gin.Context) {
	ok(c, http.StatusOK, tc.service.SupportedDialects())
}

// ListTranslations godoc
// @Summary List past translations
// @Tags history
// @Produce json
// @Param source query string false "Source dialect"
// @Param target query string false "Target dialect"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.StandardResponse{data=service.ListTranslationsResponse}
// @Router /api/v1/translations [get]
func (tc *TranslationController) ListTranslations(c *gin.Context) {
	var req service.ListTranslationsRequest
	if !bindQuery(c, &req) {
		return
	}
	res, err := tc.service.ListTranslations(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// GetTranslation godoc
// @Summary Get a past translation
// @Tags history
// @Produce json
// @Param id path string true "Translation UUID"
// @Success 200 {object} response.StandardResponse{data=model.TranslationRecord}
// @Failure 404 {object} response.StandardResponse
// @Router /api/v1/translations/{id} [get]
func (tc *TranslationController) GetTranslation(c *gin.Context) {
	rec, err := tc.service.GetTranslation(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// GetStats godoc
// @Summary Summarize past translations
// @Tags history
// @Produce json
// @Success 200 {object} response.StandardResponse{data=model.TranslationStats}
// @Router /api/v1/translations/stats [get]
func (tc *TranslationController) GetStats(c *gin.Context) {
	stats, err := tc.service.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, stats)
}
