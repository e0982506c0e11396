package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
)

// AccessClaims carries the full profile so API calls need no user lookup.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

func (c AccessClaims) Identity() model.Identity {
	return model.Identity{
		ID:       c.UserID,
		Email:    c.Email,
		Username: c.Username,
		FullName: c.FullName,
	}
}

// RefreshClaims carries only the user id.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
}

type TokenManager interface {
	IssueAccessToken(id model.Identity) (token string, exp time.Time, jti string, err error)
	IssueRefreshToken(id model.Identity) (token string, exp time.Time, jti string, err error)
	VerifyAccessToken(token string) (claims AccessClaims, err error)
	VerifyRefreshToken(token string) (claims RefreshClaims, err error)
}
