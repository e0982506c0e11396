package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
)

func handleError(c *gin.Context, err error) {
	switch {
	case authErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case authErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case authErrors.IsTokenExpired(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
	case authErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case authErrors.IsAlreadyExists(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case authErrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case authErrors.IsIncompleteIdentity(err):
		_ = c.Error(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "user record is incomplete"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
