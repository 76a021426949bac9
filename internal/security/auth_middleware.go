package security

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cracksql/internal/middleware"
	"cracksql/internal/utils"
	"cracksql/pkg/response"
)

// Context keys set by RequireAuth.
const (
	ClaimsKey = "user_claims"
	UserIDKey = "user_id"
)

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	jwtManager *JWTManager
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtManager *JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// RequireAuth rejects requests without a valid bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.UnauthorizedResponse(
				err.Error(), middleware.GetCorrelationID(c)))
			return
		}

		claims, err := am.jwtManager.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse(
				utils.ErrCodeInvalidToken, "Invalid or expired token", "", middleware.GetCorrelationID(c)))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func (am *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(ClaimsKey)
		claims, ok := v.(*Claims)
		if !ok || !claims.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorResponse(
				utils.ErrCodeUnauthorized, "Insufficient permissions", "role "+role+" required",
				middleware.GetCorrelationID(c)))
			return
		}
		c.Next()
	}
}
