package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vidhost/auth-service/internal/adapters/transport/http/dto"
	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	identityKey = "identity"
)

type Authenticator interface {
	Validate(context.Context, dto.ValidateDTO) (model.Identity, error)
}

// Auth accepts an access token from the Authorization header or, failing
// that, from the access cookie. The verified identity is stored on the context.
func Auth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		id, err := a.Validate(c.Request.Context(), dto.ValidateDTO{AccessToken: raw})
		switch {
		case err == nil:
		case customErrors.IsTokenExpired(err):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
			return
		case customErrors.IsInvalidToken(err), customErrors.IsInvalidArgument(err):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		default:
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	if tok, err := c.Cookie(AccessCookie); err == nil {
		return tok
	}
	return ""
}

func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}
