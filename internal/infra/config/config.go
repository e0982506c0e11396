// Package config loads the service configuration from the environment and an
// optional config.json in the working directory.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	HashBcrypt   = "bcrypt"
	HashArgon2id = "argon2id"

	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	RefreshTokenSecret string
	RefreshTokenTTL    time.Duration
	Issuer             string
	Audience           string
	TokenLeeway        time.Duration

	HashCostFactor int
	HashAlgorithm  string
	HashWorkers    int
	PasswordPepper string

	UserStore     string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	HTTPAddress   string
	GRPCAddress   string
	HTTPSCertFile string
	HTTPSKeyFile  string
	CookieDomain  string

	LogLevel string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("HASH_ALGORITHM", HashBcrypt)
	v.SetDefault("HASH_WORKERS", 4)
	v.SetDefault("TOKEN_LEEWAY", "0s")
	v.SetDefault("USER_STORE", StorePostgres)
	v.SetDefault("MONGO_DATABASE", "vidhost")
	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("GRPC_ADDRESS", ":50051")
	v.SetDefault("LOG_LEVEL", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	accessTTL, err := durationOf(v, "ACCESS_TOKEN_EXPIRY")
	if err != nil {
		return nil, err
	}
	refreshTTL, err := durationOf(v, "REFRESH_TOKEN_EXPIRY")
	if err != nil {
		return nil, err
	}
	leeway, err := durationOf(v, "TOKEN_LEEWAY")
	if err != nil {
		return nil, err
	}
	cost, err := intOf(v, "HASH_COST_FACTOR")
	if err != nil {
		return nil, err
	}
	workers, err := intOf(v, "HASH_WORKERS")
	if err != nil {
		return nil, err
	}
	redisDB, err := intOf(v, "REDIS_DB")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AccessTokenSecret:  v.GetString("ACCESS_TOKEN_SECRET"),
		AccessTokenTTL:     accessTTL,
		RefreshTokenSecret: v.GetString("REFRESH_TOKEN_SECRET"),
		RefreshTokenTTL:    refreshTTL,
		Issuer:             v.GetString("JWT_ISSUER"),
		Audience:           v.GetString("JWT_AUDIENCE"),
		TokenLeeway:        leeway,

		HashCostFactor: cost,
		HashAlgorithm:  strings.ToLower(v.GetString("HASH_ALGORITHM")),
		HashWorkers:    workers,
		PasswordPepper: v.GetString("PASSWORD_PEPPER"),

		UserStore:     strings.ToLower(v.GetString("USER_STORE")),
		DatabaseURL:   v.GetString("DATABASE_URL"),
		MongoURI:      v.GetString("MONGO_URI"),
		MongoDatabase: v.GetString("MONGO_DATABASE"),

		RedisAddress:  v.GetString("REDIS_ADDRESS"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		HTTPAddress:   v.GetString("HTTP_ADDRESS"),
		GRPCAddress:   v.GetString("GRPC_ADDRESS"),
		HTTPSCertFile: v.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:  v.GetString("HTTPS_KEY_FILE"),
		CookieDomain:  v.GetString("COOKIE_DOMAIN"),

		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.validateStores(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the credential and token settings. Everything it checks is
// required for the service to issue a single token, so it fails fast.
func (c *Config) Validate() error {
	if c.AccessTokenSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET is required")
	}
	if c.RefreshTokenSecret == "" {
		return errors.New("REFRESH_TOKEN_SECRET is required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRY must be positive")
	}
	if c.RefreshTokenTTL <= 0 {
		return errors.New("REFRESH_TOKEN_EXPIRY must be positive")
	}
	if c.TokenLeeway < 0 {
		return errors.New("TOKEN_LEEWAY must not be negative")
	}
	return c.ValidateHashing()
}

func (c *Config) ValidateHashing() error {
	switch c.HashAlgorithm {
	case "", HashBcrypt:
		if c.HashCostFactor < bcrypt.MinCost || c.HashCostFactor > bcrypt.MaxCost {
			return fmt.Errorf("HASH_COST_FACTOR must be within [%d, %d] for bcrypt", bcrypt.MinCost, bcrypt.MaxCost)
		}
	case HashArgon2id:
		if c.HashCostFactor < 1 {
			return errors.New("HASH_COST_FACTOR must be positive for argon2id")
		}
	default:
		return fmt.Errorf("HASH_ALGORITHM %q is not supported", c.HashAlgorithm)
	}
	return nil
}

func (c *Config) validateStores() error {
	switch c.UserStore {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres user store")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo user store")
		}
	default:
		return fmt.Errorf("USER_STORE %q is not supported", c.UserStore)
	}
	if c.HashWorkers < 1 {
		return errors.New("HASH_WORKERS must be positive")
	}
	return nil
}

func durationOf(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	d, err := ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intOf(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %q", key, raw)
	}
	return n, nil
}

const maxDays = math.MaxInt64 / int64(24*time.Hour)

// ParseDuration accepts time.ParseDuration syntax plus a whole-day suffix, so
// "7d" and "10d" work the same way they do in token expiry settings elsewhere.
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		if n > maxDays || n < -maxDays {
			return 0, fmt.Errorf("duration %q out of range", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
