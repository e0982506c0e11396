package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	jwtdomain "github.com/vidhost/auth-service/internal/domain/auth/jwt"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
	"github.com/vidhost/auth-service/internal/infra/config"
	"github.com/vidhost/auth-service/internal/infra/metrics"
)

var errMissingUserID = errors.New("token carries no user id")

// Manager signs and verifies HS256 access and refresh tokens. Access and
// refresh tokens use different secrets, so one can never stand in for the other.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
	leeway        time.Duration
	now           func() time.Time
	metrics       *metrics.Metrics
}

var _ jwtdomain.TokenManager = (*Manager)(nil)

func NewManager(cfg *config.Config, m *metrics.Metrics) (*Manager, error) {
	switch {
	case cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "":
		return nil, customErrors.NewInvalidArgument("token secrets must be set")
	case cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0:
		return nil, customErrors.NewInvalidArgument("token expiry must be positive")
	}

	return &Manager{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		leeway:        cfg.TokenLeeway,
		now:           time.Now,
		metrics:       m,
	}, nil
}

func (j *Manager) IssueAccessToken(id model.Identity) (token string, exp time.Time, jti string, err error) {
	if err := requireFullIdentity(id); err != nil {
		return "", time.Time{}, "", err
	}

	jti = uuid.NewString()
	claims := jwtdomain.AccessClaims{
		RegisteredClaims: j.registered(j.accessTTL, jti),
		UserID:           id.ID,
		Email:            id.Email,
		Username:         id.Username,
		FullName:         id.FullName,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.accessSecret)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign access token")
	}

	j.metrics.TokenIssued(metrics.KindAccess)
	return signed, claims.ExpiresAt.Time, jti, nil
}

func (j *Manager) IssueRefreshToken(id model.Identity) (token string, exp time.Time, jti string, err error) {
	if id.ID == "" {
		return "", time.Time{}, "", customErrors.NewIncompleteIdentity("id")
	}

	jti = uuid.NewString()
	claims := jwtdomain.RefreshClaims{
		RegisteredClaims: j.registered(j.refreshTTL, jti),
		UserID:           id.ID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.refreshSecret)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign refresh token")
	}

	j.metrics.TokenIssued(metrics.KindRefresh)
	return signed, claims.ExpiresAt.Time, jti, nil
}

func (j *Manager) VerifyAccessToken(raw string) (jwtdomain.AccessClaims, error) {
	var claims jwtdomain.AccessClaims
	if err := j.parse(raw, &claims, j.accessSecret); err != nil {
		j.recordFailure(metrics.KindAccess, err)
		return jwtdomain.AccessClaims{}, err
	}
	if claims.UserID == "" {
		j.metrics.TokenVerified(metrics.KindAccess, metrics.ResultInvalid)
		return jwtdomain.AccessClaims{}, customErrors.NewInvalidToken(errMissingUserID)
	}

	j.metrics.TokenVerified(metrics.KindAccess, metrics.ResultOK)
	return claims, nil
}

func (j *Manager) VerifyRefreshToken(raw string) (jwtdomain.RefreshClaims, error) {
	var claims jwtdomain.RefreshClaims
	if err := j.parse(raw, &claims, j.refreshSecret); err != nil {
		j.recordFailure(metrics.KindRefresh, err)
		return jwtdomain.RefreshClaims{}, err
	}
	if claims.UserID == "" {
		j.metrics.TokenVerified(metrics.KindRefresh, metrics.ResultInvalid)
		return jwtdomain.RefreshClaims{}, customErrors.NewInvalidToken(errMissingUserID)
	}

	j.metrics.TokenVerified(metrics.KindRefresh, metrics.ResultOK)
	return claims, nil
}

// VerifyToken checks a token against secret alone, without any manager state.
// Refresh tokens come back with only the ID set.
func VerifyToken(raw string, secret []byte) (model.Identity, error) {
	var claims jwtdomain.AccessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, hmacKey(secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return model.Identity{}, tokenError(err)
	}
	if claims.UserID == "" {
		return model.Identity{}, customErrors.NewInvalidToken(errMissingUserID)
	}
	return claims.Identity(), nil
}

func (j *Manager) parse(raw string, claims jwt.Claims, secret []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(j.leeway),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	if _, err := jwt.ParseWithClaims(raw, claims, hmacKey(secret), opts...); err != nil {
		return tokenError(err)
	}
	return nil
}

func (j *Manager) registered(ttl time.Duration, jti string) jwt.RegisteredClaims {
	now := j.now()
	rc := jwt.RegisteredClaims{
		Issuer:    j.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiryAt(now, ttl)),
		ID:        jti,
	}
	if j.audience != "" {
		rc.Audience = jwt.ClaimStrings{j.audience}
	}
	return rc
}

func (j *Manager) recordFailure(kind string, err error) {
	if customErrors.IsTokenExpired(err) {
		j.metrics.TokenVerified(kind, metrics.ResultExpired)
		return
	}
	j.metrics.TokenVerified(kind, metrics.ResultInvalid)
}

// expiryAt rounds up to the next whole second: exp is encoded with second
// precision and must never fall before now+ttl.
func expiryAt(now time.Time, ttl time.Duration) time.Time {
	exact := now.Add(ttl)
	exp := exact.Truncate(time.Second)
	if exp.Before(exact) {
		exp = exp.Add(time.Second)
	}
	return exp
}

func hmacKey(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, customErrors.ErrInvalidToken
		}
		return secret, nil
	}
}

func tokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return customErrors.NewInvalidToken(customErrors.ErrTokenExpired)
	}
	return customErrors.NewInvalidToken(err)
}

func requireFullIdentity(id model.Identity) error {
	switch {
	case id.ID == "":
		return customErrors.NewIncompleteIdentity("id")
	case id.Email == "":
		return customErrors.NewIncompleteIdentity("email")
	case id.Username == "":
		return customErrors.NewIncompleteIdentity("username")
	case id.FullName == "":
		return customErrors.NewIncompleteIdentity("fullname")
	}
	return nil
}
