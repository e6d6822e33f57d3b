package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kwabena-dev/courseattend-api/internal/middleware"
	"github.com/kwabena-dev/courseattend-api/internal/models"
	appErrors "github.com/kwabena-dev/courseattend-api/pkg/errors"
	"github.com/kwabena-dev/courseattend-api/pkg/response"
)

// callerFromContext resolves the authenticated caller from the JWT claims
// attached by the auth middleware. On failure it writes the error response
// and reports false.
func callerFromContext(c *gin.Context) (models.Caller, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Caller{}, false
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Caller{}, false
	}
	return claims.Caller(), true
}
