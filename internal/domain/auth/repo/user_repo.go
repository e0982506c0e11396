package repo

import (
	"context"

	"github.com/vidhost/auth-service/internal/domain/auth/model"
)

type UserRepo interface {
	CreateUser(ctx context.Context, u model.User) (string, error)

	// FindByIdentifier matches either the username or the email.
	FindByIdentifier(ctx context.Context, identifier string) (model.User, error)

	GetUserByID(ctx context.Context, id string) (model.User, error)

	UpdateUser(ctx context.Context, u model.User) error
}
