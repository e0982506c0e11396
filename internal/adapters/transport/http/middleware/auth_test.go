package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vidhost/auth-service/internal/adapters/transport/http/dto"
	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
)

type authStub struct {
	tokens map[string]model.Identity
	err    error
}

func (a authStub) Validate(_ context.Context, in dto.ValidateDTO) (model.Identity, error) {
	if a.err != nil {
		return model.Identity{}, a.err
	}
	id, ok := a.tokens[in.AccessToken]
	if !ok {
		return model.Identity{}, customErrors.ErrInvalidToken
	}
	return id, nil
}

func authRouter(a Authenticator) *gin.Engine {
	r := gin.New()
	r.Use(Auth(a))
	r.GET("/me", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, id.Username)
	})
	return r
}

func TestAuth(t *testing.T) {
	alice := model.Identity{ID: "u1", Email: "a@x.com", Username: "alice", FullName: "Alice A"}
	r := authRouter(authStub{tokens: map[string]model.Identity{"good": alice}})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := serve(r, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "alice", w.Body.String())
	})

	t.Run("lower-case scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "bearer good")
		require.Equal(t, http.StatusOK, serve(r, req).Code)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "good"})
		require.Equal(t, http.StatusOK, serve(r, req).Code)
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		require.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := serve(r, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Body.String(), "invalid token")
	})
}

func TestAuth_Expired(t *testing.T) {
	r := authRouter(authStub{err: customErrors.NewInvalidToken(customErrors.ErrTokenExpired)})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer old")
	w := serve(r, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "token expired")
}

func TestAuth_StoreFailure(t *testing.T) {
	r := authRouter(authStub{err: customErrors.WrapInternal(errors.New("redis down"), "Validate")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer any")
	require.Equal(t, http.StatusInternalServerError, serve(r, req).Code)
}
