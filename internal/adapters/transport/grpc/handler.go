package grpc

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vidhost/auth-service/internal/adapters/transport/grpc/middleware"
	"github.com/vidhost/auth-service/internal/adapters/transport/http/dto"
	appsvc "github.com/vidhost/auth-service/internal/app/auth/service"
	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
)

var _ AuthServer = (*Handler)(nil)

type Handler struct {
	svc appsvc.Service
	log *zap.Logger
}

func NewHandler(svc appsvc.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := h.svc.Register(ctx, dto.RegisterDTO{
		Username:   field(req, "username"),
		Email:      field(req, "email"),
		FullName:   field(req, "fullname"),
		Password:   field(req, "password"),
		Avatar:     field(req, "avatar"),
		CoverImage: field(req, "cover_image"),
	})
	if err != nil {
		h.log.Debug("gRPC Register failed", zap.Error(err))
		return nil, mapError(err)
	}
	return pairResponse(pair)
}

func (h *Handler) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := h.svc.Login(ctx, dto.LoginDTO{
		Identifier: field(req, "identifier"),
		Password:   field(req, "password"),
	})
	if err != nil {
		h.log.Debug("gRPC Login failed", zap.Error(err))
		return nil, mapError(err)
	}
	return pairResponse(pair)
}

func (h *Handler) Validate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := h.svc.Validate(ctx, dto.ValidateDTO{
		AccessToken: field(req, "access_token"),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return structpb.NewStruct(map[string]any{
		"id":       id.ID,
		"email":    id.Email,
		"username": id.Username,
		"fullname": id.FullName,
	})
}

func (h *Handler) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := h.svc.Refresh(ctx, dto.RefreshDTO{
		RefreshToken: field(req, "refresh_token"),
		AccessToken:  field(req, "access_token"),
	})
	if err != nil {
		h.log.Debug("gRPC Refresh failed", zap.Error(err))
		return nil, mapError(err)
	}
	return pairResponse(pair)
}

func (h *Handler) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	err := h.svc.Logout(ctx, dto.LogoutDTO{
		RefreshToken: field(req, "refresh_token"),
		AccessToken:  field(req, "access_token"),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return structpb.NewStruct(map[string]any{"success": true})
}

// Profile needs a bearer token; the identity is put on ctx by the auth interceptor.
func (h *Handler) Profile(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}

	user, err := h.svc.Profile(ctx, id.ID)
	if err != nil {
		return nil, mapError(err)
	}

	history := make([]any, 0, len(user.WatchHistory))
	for _, v := range user.WatchHistory {
		history = append(history, v)
	}
	return structpb.NewStruct(map[string]any{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"fullname":      user.FullName,
		"avatar":        user.Avatar,
		"cover_image":   user.CoverImage,
		"watch_history": history,
		"created_at":    user.CreatedAt.Unix(),
	})
}

func field(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func pairResponse(pair model.TokenPair) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"access_ttl":    int64(pair.AccessTTL.Seconds()),
		"refresh_ttl":   int64(pair.RefreshTTL.Seconds()),
		"user_id":       pair.UserID,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, customErrors.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, customErrors.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, customErrors.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "token expired")
	case errors.Is(err, customErrors.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, customErrors.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, customErrors.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, customErrors.ErrIncompleteIdentity):
		return status.Error(codes.FailedPrecondition, "user record is incomplete")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
