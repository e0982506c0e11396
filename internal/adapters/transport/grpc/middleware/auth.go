package middleware

import (
	"context"
	"strings"

	grpc_auth "github.com/grpc-ecosystem/go-grpc-middleware/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vidhost/auth-service/internal/adapters/transport/http/dto"
	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
)

const healthPrefix = "/grpc.health.v1.Health/"

type Authenticator interface {
	Validate(context.Context, dto.ValidateDTO) (model.Identity, error)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(model.Identity)
	return id, ok
}

// Auth requires "authorization: bearer <access token>" metadata on every call
// except the listed public methods and the health service.
func Auth(a Authenticator, public ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]struct{}, len(public))
	for _, m := range public {
		skip[m] = struct{}{}
	}

	bearer := grpc_auth.UnaryServerInterceptor(func(ctx context.Context) (context.Context, error) {
		tok, err := grpc_auth.AuthFromMD(ctx, "bearer")
		if err != nil {
			return nil, err
		}

		id, err := a.Validate(ctx, dto.ValidateDTO{AccessToken: tok})
		switch {
		case err == nil:
			return WithIdentity(ctx, id), nil
		case customErrors.IsTokenExpired(err):
			return nil, status.Error(codes.Unauthenticated, "token expired")
		case customErrors.IsInvalidToken(err), customErrors.IsInvalidArgument(err):
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		default:
			return nil, status.Error(codes.Internal, "internal error")
		}
	})

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := skip[info.FullMethod]; ok || strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}
		return bearer(ctx, req, info, handler)
	}
}
