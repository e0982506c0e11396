// Package http exposes the session service over a gin router. Tokens are
// returned in the body and as cookies; either works on the way back in.
package http

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vidhost/auth-service/internal/adapters/transport/http/dto"
	"github.com/vidhost/auth-service/internal/adapters/transport/http/middleware"
	appsvc "github.com/vidhost/auth-service/internal/app/auth/service"
)

type Options struct {
	CookieDomain string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	RateLimit   int
	RateBurst   int
	RateHosts   int
	RateIdleTTL time.Duration
}

type Handler struct {
	svc          appsvc.Service
	log          *zap.Logger
	cookieDomain string
}

func NewRouter(svc appsvc.Service, log *zap.Logger, opts Options) *gin.Engine {
	h := &Handler{svc: svc, log: log, cookieDomain: opts.CookieDomain}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	if opts.RateLimit > 0 {
		router.Use(middleware.RateLimitPerIP(opts.RateLimit, opts.RateBurst, opts.RateHosts, opts.RateIdleTTL))
	}

	router.GET("/health", h.health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST("/refresh", h.refresh)
	router.POST("/logout", h.logout)

	me := router.Group("/me", middleware.Auth(svc))
	me.GET("", h.profile)
	me.PATCH("", h.updateProfile)
	me.POST("/password", h.changePassword)
	me.POST("/history", h.addToHistory)

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
}

func (h *Handler) register(c *gin.Context) {
	var body dto.RegisterDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("/register", zap.String("user", fingerprint(body.Email)))

	pair, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		handleError(c, err)
		return
	}
	issueTokens(c, pair, h.cookieDomain)
}

func (h *Handler) login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("/login", zap.String("user", fingerprint(body.Identifier)))

	pair, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		handleError(c, err)
		return
	}
	issueTokens(c, pair, h.cookieDomain)
}

func (h *Handler) refresh(c *gin.Context) {
	var body dto.RefreshDTO
	if err := bindOptionalJSON(c, &body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	body.RefreshToken = orCookie(c, body.RefreshToken, middleware.RefreshCookie)
	if body.AccessToken == "" {
		body.AccessToken = middleware.BearerToken(c)
	}

	pair, err := h.svc.Refresh(c.Request.Context(), body)
	if err != nil {
		handleError(c, err)
		return
	}
	issueTokens(c, pair, h.cookieDomain)
}

func (h *Handler) logout(c *gin.Context) {
	var body dto.LogoutDTO
	if err := bindOptionalJSON(c, &body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	body.RefreshToken = orCookie(c, body.RefreshToken, middleware.RefreshCookie)
	if body.AccessToken == "" {
		body.AccessToken = middleware.BearerToken(c)
	}
	h.log.Info("/logout")

	if err := h.svc.Logout(c.Request.Context(), body); err != nil {
		handleError(c, err)
		return
	}
	clearTokens(c, h.cookieDomain)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) profile(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	user, err := h.svc.Profile(c.Request.Context(), id.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var body dto.UpdateProfileDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := middleware.IdentityFrom(c)
	body.UserID = id.ID

	user, err := h.svc.UpdateProfile(c.Request.Context(), body)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) changePassword(c *gin.Context) {
	var body dto.ChangePasswordDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := middleware.IdentityFrom(c)
	body.UserID = id.ID

	if err := h.svc.ChangePassword(c.Request.Context(), body); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (h *Handler) addToHistory(c *gin.Context) {
	var body dto.WatchDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := middleware.IdentityFrom(c)
	body.UserID = id.ID

	if err := h.svc.AddToWatchHistory(c.Request.Context(), body); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindOptionalJSON lets cookie-only clients send an empty body.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dst)
}

func orCookie(c *gin.Context, val, cookie string) string {
	if val != "" {
		return val
	}
	v, _ := c.Cookie(cookie)
	return v
}

// fingerprint keeps identifiers out of the logs while still letting repeated
// attempts be correlated.
func fingerprint(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}
