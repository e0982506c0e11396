package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidhost/auth-service/internal/adapters/transport/http/middleware"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
)

func issueTokens(c *gin.Context, pair model.TokenPair, domain string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		middleware.AccessCookie,
		pair.AccessToken,
		int(pair.AccessTTL.Seconds()),
		"/",
		domain,
		true, // secure
		true, // httpOnly
	)

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		middleware.RefreshCookie,
		pair.RefreshToken,
		int(pair.RefreshTTL.Seconds()),
		"/",
		domain,
		true,
		true,
	)

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    int(pair.AccessTTL.Seconds()),
		"userId":       pair.UserID,
	})
}

func clearTokens(c *gin.Context, domain string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, "", -1, "/", domain, true, true)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.RefreshCookie, "", -1, "/", domain, true, true)
}
