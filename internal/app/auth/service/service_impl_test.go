package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vidhost/auth-service/internal/adapters/transport/http/dto"
	"github.com/vidhost/auth-service/internal/app/auth/jwt"
	"github.com/vidhost/auth-service/internal/app/auth/password"
	appsvc "github.com/vidhost/auth-service/internal/app/auth/service"
	authErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
	"github.com/vidhost/auth-service/internal/domain/auth/repo"
	"github.com/vidhost/auth-service/internal/infra/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

/* ──────────────────────────────── stubs ──────────────────────────────── */

type userRepoStub struct {
	users   map[string]model.User
	updates int
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[string]model.User)}
}

func (u *userRepoStub) CreateUser(_ context.Context, m model.User) (string, error) {
	u.users[m.ID] = m
	return m.ID, nil
}
func (u *userRepoStub) FindByIdentifier(_ context.Context, ident string) (model.User, error) {
	for _, v := range u.users {
		if v.Email == ident || v.Username == ident {
			return v, nil
		}
	}
	return model.User{}, authErrors.ErrNotFound
}
func (u *userRepoStub) GetUserByID(_ context.Context, id string) (model.User, error) {
	v, ok := u.users[id]
	if !ok {
		return model.User{}, authErrors.ErrNotFound
	}
	return v, nil
}
func (u *userRepoStub) UpdateUser(_ context.Context, m model.User) error {
	u.updates++
	u.users[m.ID] = m
	return nil
}

type tokenRepoStub struct {
	revoked       map[string]bool
	accessRevoked map[string]bool
}

func newTokenRepoStub() *tokenRepoStub {
	return &tokenRepoStub{revoked: map[string]bool{}, accessRevoked: map[string]bool{}}
}

func (t *tokenRepoStub) Store(_ context.Context, jti string, _ time.Time) error {
	if _, ok := t.revoked[jti]; !ok {
		t.revoked[jti] = false
	}
	return nil
}
func (t *tokenRepoStub) Revoke(_ context.Context, jti string, _ time.Time) error {
	t.revoked[jti] = true
	return nil
}
func (t *tokenRepoStub) IsRevoked(_ context.Context, jti string) (bool, error) {
	return t.revoked[jti], nil
}
func (t *tokenRepoStub) RevokeAccess(_ context.Context, jti string, _ time.Time) error {
	t.accessRevoked[jti] = true
	return nil
}
func (t *tokenRepoStub) IsAccessRevoked(_ context.Context, jti string) (bool, error) {
	return t.accessRevoked[jti], nil
}

type errTokenRepoStub struct{}

func (errTokenRepoStub) Store(context.Context, string, time.Time) error { return nil }
func (errTokenRepoStub) Revoke(context.Context, string, time.Time) error {
	return errors.New("err")
}
func (errTokenRepoStub) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("err")
}
func (errTokenRepoStub) RevokeAccess(context.Context, string, time.Time) error {
	return errors.New("err")
}
func (errTokenRepoStub) IsAccessRevoked(context.Context, string) (bool, error) {
	return false, errors.New("err")
}

type dupUserRepoStub struct{ *userRepoStub }

func (dupUserRepoStub) CreateUser(context.Context, model.User) (string, error) {
	return "", authErrors.ErrAlreadyExists
}

/* ───────────────────────────── helpers ───────────────────────────── */

type fixture struct {
	svc    appsvc.Service
	tokens *jwt.Manager
	users  *userRepoStub
	denied *tokenRepoStub
}

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:  "access-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenSecret: "refresh-secret",
		RefreshTokenTTL:    time.Hour,
		Issuer:             "test",
		Audience:           "test",
		HashAlgorithm:      config.HashBcrypt,
		HashCostFactor:     bcrypt.MinCost,
		PasswordPepper:     "pepper",
	}
}

func newSvcWith(t *testing.T, ur repo.UserRepo, tr repo.TokenRepo) (appsvc.Service, *jwt.Manager) {
	cfg := testConfig()
	tm, err := jwt.NewManager(cfg, nil)
	require.NoError(t, err)
	h, err := password.NewHasher(cfg)
	require.NoError(t, err)

	return appsvc.New(ur, tr, tm, password.NewPool(h, 2, nil), dto.NewValidator(), zap.NewNop()), tm
}

func newFixture(t *testing.T) fixture {
	ur := newUserRepoStub()
	tr := newTokenRepoStub()
	svc, tm := newSvcWith(t, ur, tr)
	return fixture{svc: svc, tokens: tm, users: ur, denied: tr}
}

var register = dto.RegisterDTO{
	Username: "Alice", Email: " A@X.com ", FullName: "Alice A", Password: "S3cretPass",
}

/* ───────────────────────────── tests ───────────────────────────── */

func TestAuthService_RegisterLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Register(ctx, register)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored := f.users.users[pair.UserID]
	require.Equal(t, "alice", stored.Username)
	require.Equal(t, "a@x.com", stored.Email)
	require.NotEqual(t, register.Password, stored.PasswordHash)

	byEmail, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: "a@x.com", Password: "S3cretPass"})
	require.NoError(t, err)
	require.Equal(t, pair.UserID, byEmail.UserID)

	byName, err := f.svc.Login(ctx, dto.LoginDTO{Identifier: " ALICE", Password: "S3cretPass"})
	require.NoError(t, err)
	require.NotEmpty(t, byName.RefreshToken)
}

func TestAuthService_RegisterInvalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), dto.RegisterDTO{})
	require.Error(t, err)
	require.True(t, authErrors.IsInvalidArgument(err))
}

func TestAuthService_RegisterTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, register)
	require.NoError(t, err)

	sameName := register
	sameName.Email = "other@x.com"
	_, err = f.svc.Register(ctx, sameName)
	require.True(t, authErrors.IsAlreadyExists(err))

	sameEmail := register
	sameEmail.Username = "bob"
	_, err = f.svc.Register(ctx, sameEmail)
	require.True(t, authErrors.IsAlreadyExists(err))
}

func TestAuthService_RegisterDuplicateAtStore(t *testing.T) {
	svc, _ := newSvcWith(t, dupUserRepoStub{newUserRepoStub()}, newTokenRepoStub())
	_, err := svc.Register(context.Background(), register)
	require.Error(t, err)
	require.True(t, authErrors.IsAlreadyExists(err))
}

func TestAuthService_LoginInvalidPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, register)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, dto.LoginDTO{Identifier: "alice", Password: "wrong"})
	require.Error(t, err)
	require.True(t, authErrors.IsInvalidCredentials(err))
}

func TestAuthService_LoginUserNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), dto.LoginDTO{Identifier: "none@example.com", Password: "p"})
	require.Error(t, err)
	require.True(t, authErrors.IsInvalidCredentials(err))
}

func TestAuthService_ValidateAndRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Register(ctx, register)
	require.NoError(t, err)

	id, err := f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: pair.AccessToken})
	require.NoError(t, err)
	require.Equal(t, model.Identity{ID: pair.UserID, Email: "a@x.com", Username: "alice", FullName: "Alice A"}, id)

	refreshed, err := f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken, AccessToken: pair.AccessToken})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshTokenJTI, refreshed.RefreshTokenJTI)

	// the presented refresh token is rotated out
	require.True(t, f.denied.revoked[pair.RefreshTokenJTI])
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.True(t, authErrors.IsInvalidToken(err))

	// and the old access token goes with it
	_, err = f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: pair.AccessToken})
	require.True(t, authErrors.IsInvalidToken(err))

	_, err = f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: refreshed.AccessToken})
	require.NoError(t, err)
}

func TestAuthService_RefreshPicksUpProfileChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Register(ctx, register)
	require.NoError(t, err)

	name := "Alice Liddell"
	_, err = f.svc.UpdateProfile(ctx, dto.UpdateProfileDTO{UserID: pair.UserID, FullName: &name})
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	claims, err := f.tokens.VerifyAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	require.Equal(t, name, claims.FullName)
}

func TestAuthService_RefreshDeletedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Register(ctx, register)
	require.NoError(t, err)

	delete(f.users.users, pair.UserID)
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.True(t, authErrors.IsInvalidToken(err))
}

func TestAuthService_InvalidTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: "bad"})
	require.True(t, authErrors.IsInvalidToken(err))

	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: "bad"})
	require.True(t, authErrors.IsInvalidToken(err))

	err = f.svc.Logout(ctx, dto.LogoutDTO{RefreshToken: "bad", AccessToken: "bad"})
	require.True(t, authErrors.IsInvalidToken(err))
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Register(ctx, register)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, dto.LogoutDTO{RefreshToken: pair.RefreshToken, AccessToken: pair.AccessToken}))

	_, err = f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: pair.AccessToken})
	require.True(t, authErrors.IsInvalidToken(err))
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.True(t, authErrors.IsInvalidToken(err))
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Register(ctx, register)
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, dto.ChangePasswordDTO{
		UserID: pair.UserID, CurrentPassword: "wrong", NewPassword: "N3wPassword",
	})
	require.True(t, authErrors.IsInvalidCredentials(err))

	require.NoError(t, f.svc.ChangePassword(ctx, dto.ChangePasswordDTO{
		UserID: pair.UserID, CurrentPassword: "S3cretPass", NewPassword: "N3wPassword",
	}))

	_, err = f.svc.Login(ctx, dto.LoginDTO{Identifier: "alice", Password: "S3cretPass"})
	require.True(t, authErrors.IsInvalidCredentials(err))
	_, err = f.svc.Login(ctx, dto.LoginDTO{Identifier: "alice", Password: "N3wPassword"})
	require.NoError(t, err)
}

func TestAuthService_UpdateProfileKeepsHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Register(ctx, register)
	require.NoError(t, err)
	before := f.users.users[pair.UserID].PasswordHash

	avatar := "https://cdn.example.com/a.png"
	user, err := f.svc.UpdateProfile(ctx, dto.UpdateProfileDTO{UserID: pair.UserID, Avatar: &avatar})
	require.NoError(t, err)
	require.Equal(t, avatar, user.Avatar)
	require.Equal(t, before, f.users.users[pair.UserID].PasswordHash)

	_, err = f.svc.UpdateProfile(ctx, dto.UpdateProfileDTO{UserID: "missing"})
	require.True(t, authErrors.IsNotFound(err))
}

func TestAuthService_WatchHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Register(ctx, register)
	require.NoError(t, err)

	for _, v := range []string{"v1", "v2", "v1"} {
		require.NoError(t, f.svc.AddToWatchHistory(ctx, dto.WatchDTO{UserID: pair.UserID, VideoID: v}))
	}
	user, err := f.svc.Profile(ctx, pair.UserID)
	require.NoError(t, err)
	require.Equal(t, []string{"v2", "v1"}, user.WatchHistory)
}

func TestAuthService_IncompleteRecord(t *testing.T) {
	f := newFixture(t)
	h, err := password.NewHasher(testConfig())
	require.NoError(t, err)
	hash, err := h.Hash("S3cretPass")
	require.NoError(t, err)

	// legacy record without a display name
	f.users.users["u1"] = model.User{ID: "u1", Username: "bob", Email: "b@x.com", PasswordHash: hash}

	_, err = f.svc.Login(context.Background(), dto.LoginDTO{Identifier: "bob", Password: "S3cretPass"})
	require.True(t, authErrors.IsIncompleteIdentity(err))
}

func TestAuthService_InternalErrors(t *testing.T) {
	svc, _ := newSvcWith(t, newUserRepoStub(), errTokenRepoStub{})
	ctx := context.Background()

	pair, err := svc.Register(ctx, register)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.Error(t, err)
	require.True(t, authErrors.IsInternal(err))

	_, err = svc.Validate(ctx, dto.ValidateDTO{AccessToken: pair.AccessToken})
	require.True(t, authErrors.IsInternal(err))
}
