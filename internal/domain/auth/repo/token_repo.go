package repo

import (
	"context"
	"time"
)

type TokenRepo interface {
	Store(ctx context.Context, jti string, expiresAt time.Time) error

	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	IsRevoked(ctx context.Context, jti string) (bool, error)

	RevokeAccess(ctx context.Context, jti string, expiresAt time.Time) error

	IsAccessRevoked(ctx context.Context, jti string) (bool, error)
}
