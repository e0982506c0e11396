package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vidhost/auth-service/internal/adapters/transport/http/dto"
	"github.com/vidhost/auth-service/internal/app/auth/password"
	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/jwt"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
	repo "github.com/vidhost/auth-service/internal/domain/auth/repo"
	"go.uber.org/zap"
)

// watchHistoryLimit caps how many video ids are kept per user.
const watchHistoryLimit = 200

type authService struct {
	userRepo  repo.UserRepo
	tokenRepo repo.TokenRepo
	tokens    jwt.TokenManager
	passwords *password.Pool
	v         *validator.Validate
	log       *zap.Logger
}

type Service interface {
	Register(context.Context, dto.RegisterDTO) (model.TokenPair, error)
	Login(context.Context, dto.LoginDTO) (model.TokenPair, error)
	Validate(context.Context, dto.ValidateDTO) (model.Identity, error)
	Refresh(context.Context, dto.RefreshDTO) (model.TokenPair, error)
	Logout(context.Context, dto.LogoutDTO) error
	Profile(ctx context.Context, userID string) (model.User, error)
	ChangePassword(context.Context, dto.ChangePasswordDTO) error
	UpdateProfile(context.Context, dto.UpdateProfileDTO) (model.User, error)
	AddToWatchHistory(context.Context, dto.WatchDTO) error
}

func New(
	ur repo.UserRepo,
	tr repo.TokenRepo,
	tm jwt.TokenManager,
	pp *password.Pool,
	v *validator.Validate,
	log *zap.Logger,
) Service {
	return &authService{
		userRepo: ur, tokenRepo: tr, tokens: tm, passwords: pp, v: v, log: log,
	}
}

func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// usernames and emails share one canonical form, so a login identifier can be
// normalized without knowing which one it is
func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (a *authService) Register(ctx context.Context, in dto.RegisterDTO) (model.TokenPair, error) {
	in.Username = NormalizeUsername(in.Username)
	in.Email = NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	if err := a.v.Struct(in); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument(err.Error())
	}

	for _, ident := range []string{in.Username, in.Email} {
		_, err := a.userRepo.FindByIdentifier(ctx, ident)
		switch {
		case err == nil:
			return model.TokenPair{}, customErrors.ErrAlreadyExists
		case !errors.Is(err, customErrors.ErrNotFound):
			return model.TokenPair{}, customErrors.WrapInternal(err, "Register")
		}
	}

	user := model.User{
		ID:         uuid.NewString(),
		Username:   in.Username,
		Email:      in.Email,
		FullName:   in.FullName,
		Avatar:     in.Avatar,
		CoverImage: in.CoverImage,
	}
	if err := a.passwords.Apply(ctx, &user, in.Password, true); err != nil {
		return model.TokenPair{}, err
	}

	if _, err := a.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, customErrors.ErrAlreadyExists) {
			return model.TokenPair{}, customErrors.ErrAlreadyExists
		}
		return model.TokenPair{}, customErrors.WrapInternal(err, "Register")
	}

	return a.issueTokens(ctx, user)
}

func (a *authService) Login(ctx context.Context, in dto.LoginDTO) (model.TokenPair, error) {
	if err := a.v.Struct(in); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.userRepo.FindByIdentifier(ctx, normalizeIdentifier(in.Identifier))
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		if err := a.passwords.VerifyUnknown(ctx, in.Password); err != nil {
			return model.TokenPair{}, err
		}
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	case err != nil:
		return model.TokenPair{}, customErrors.WrapInternal(err, "Login")
	}

	ok, err := a.passwords.Verify(ctx, in.Password, user.PasswordHash)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !ok {
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	}

	return a.issueTokens(ctx, user)
}

func (a *authService) Validate(ctx context.Context, in dto.ValidateDTO) (model.Identity, error) {
	if err := a.v.Struct(in); err != nil {
		return model.Identity{}, customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.tokens.VerifyAccessToken(in.AccessToken)
	if err != nil {
		return model.Identity{}, err
	}

	revoked, err := a.tokenRepo.IsAccessRevoked(ctx, claims.ID)
	if err != nil {
		return model.Identity{}, customErrors.WrapInternal(err, "Validate")
	}
	if revoked {
		return model.Identity{}, customErrors.ErrInvalidToken
	}

	return claims.Identity(), nil
}

// Refresh rotates the refresh token: the presented one is revoked and a new
// pair is issued from the current user record.
func (a *authService) Refresh(ctx context.Context, in dto.RefreshDTO) (model.TokenPair, error) {
	if err := a.v.Struct(in); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.tokens.VerifyRefreshToken(in.RefreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	revoked, err := a.tokenRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}
	if revoked {
		a.log.Warn("revoked refresh token presented", zap.String("user_id", claims.UserID))
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	if err = a.tokenRepo.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}

	if in.AccessToken != "" {
		if acc, errAcc := a.tokens.VerifyAccessToken(in.AccessToken); errAcc == nil && acc.UserID == claims.UserID {
			_ = a.tokenRepo.RevokeAccess(ctx, acc.ID, acc.ExpiresAt.Time)
		}
	}

	user, err := a.userRepo.GetUserByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.TokenPair{}, customErrors.ErrInvalidToken
	case err != nil:
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}

	return a.issueTokens(ctx, user)
}

func (a *authService) Logout(ctx context.Context, in dto.LogoutDTO) error {
	if err := a.v.Struct(in); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.tokens.VerifyRefreshToken(in.RefreshToken)
	if err != nil {
		return err
	}

	if err := a.tokenRepo.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return customErrors.WrapInternal(err, "Logout")
	}

	// the access token may already be expired, which is fine
	if in.AccessToken != "" {
		if acc, err := a.tokens.VerifyAccessToken(in.AccessToken); err == nil {
			_ = a.tokenRepo.RevokeAccess(ctx, acc.ID, acc.ExpiresAt.Time)
		}
	}
	return nil
}

func (a *authService) Profile(ctx context.Context, userID string) (model.User, error) {
	user, err := a.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.User{}, customErrors.ErrNotFound
	case err != nil:
		return model.User{}, customErrors.WrapInternal(err, "Profile")
	}
	return user, nil
}

func (a *authService) ChangePassword(ctx context.Context, in dto.ChangePasswordDTO) error {
	if err := a.v.Struct(in); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.Profile(ctx, in.UserID)
	if err != nil {
		return err
	}

	ok, err := a.passwords.Verify(ctx, in.CurrentPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return customErrors.ErrInvalidCredentials
	}

	if err := a.passwords.Apply(ctx, &user, in.NewPassword, true); err != nil {
		return err
	}
	if err := a.userRepo.UpdateUser(ctx, user); err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}
	return nil
}

// UpdateProfile never touches the password hash.
func (a *authService) UpdateProfile(ctx context.Context, in dto.UpdateProfileDTO) (model.User, error) {
	if err := a.v.Struct(in); err != nil {
		return model.User{}, customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.Profile(ctx, in.UserID)
	if err != nil {
		return model.User{}, err
	}

	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Avatar != nil {
		user.Avatar = *in.Avatar
	}
	if in.CoverImage != nil {
		user.CoverImage = *in.CoverImage
	}
	if err := a.passwords.Apply(ctx, &user, "", false); err != nil {
		return model.User{}, err
	}

	if err := a.userRepo.UpdateUser(ctx, user); err != nil {
		return model.User{}, customErrors.WrapInternal(err, "UpdateProfile")
	}
	return user, nil
}

// AddToWatchHistory moves videoID to the end of the history, most recent last.
func (a *authService) AddToWatchHistory(ctx context.Context, in dto.WatchDTO) error {
	if err := a.v.Struct(in); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.Profile(ctx, in.UserID)
	if err != nil {
		return err
	}

	user.WatchHistory = slices.DeleteFunc(user.WatchHistory, func(id string) bool { return id == in.VideoID })
	user.WatchHistory = append(user.WatchHistory, in.VideoID)
	if n := len(user.WatchHistory); n > watchHistoryLimit {
		user.WatchHistory = user.WatchHistory[n-watchHistoryLimit:]
	}

	if err := a.userRepo.UpdateUser(ctx, user); err != nil {
		return customErrors.WrapInternal(err, "AddToWatchHistory")
	}
	return nil
}

func (a *authService) issueTokens(ctx context.Context, user model.User) (model.TokenPair, error) {
	identity := user.Identity()

	at, atExp, _, err := a.tokens.IssueAccessToken(identity)
	if err != nil {
		return model.TokenPair{}, issueError(err, "IssueAccessToken")
	}
	rt, rtExp, jti, err := a.tokens.IssueRefreshToken(identity)
	if err != nil {
		return model.TokenPair{}, issueError(err, "IssueRefreshToken")
	}
	if err = a.tokenRepo.Store(ctx, jti, rtExp); err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "StoreRefresh")
	}

	now := time.Now()
	return model.TokenPair{
		AccessToken:     at,
		RefreshToken:    rt,
		AccessTTL:       atExp.Sub(now),
		RefreshTTL:      rtExp.Sub(now),
		UserID:          user.ID,
		RefreshTokenJTI: jti,
	}, nil
}

func issueError(err error, context string) error {
	if customErrors.IsIncompleteIdentity(err) {
		return err
	}
	return customErrors.WrapInternal(err, context)
}
