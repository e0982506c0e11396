package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vidhost/auth-service/internal/adapters/db/memory"
	mongorepo "github.com/vidhost/auth-service/internal/adapters/db/mongo"
	pgrepo "github.com/vidhost/auth-service/internal/adapters/db/postgres"
	redisrepo "github.com/vidhost/auth-service/internal/adapters/db/redis"
	grpctransport "github.com/vidhost/auth-service/internal/adapters/transport/grpc"
	httptransport "github.com/vidhost/auth-service/internal/adapters/transport/http"
	"github.com/vidhost/auth-service/internal/adapters/transport/http/dto"
	"github.com/vidhost/auth-service/internal/app/auth/jwt"
	"github.com/vidhost/auth-service/internal/app/auth/password"
	appsvc "github.com/vidhost/auth-service/internal/app/auth/service"
	"github.com/vidhost/auth-service/internal/domain/auth/repo"
	"github.com/vidhost/auth-service/internal/infra/config"
	lg "github.com/vidhost/auth-service/internal/infra/log"
	"github.com/vidhost/auth-service/internal/infra/metrics"
	"github.com/vidhost/auth-service/internal/infra/migrate"
	"github.com/vidhost/auth-service/internal/infra/server"
)

const (
	healthInterval = 15 * time.Second
	// in-process denylist size when no Redis is configured
	memoryDenylistSize = 100_000
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger level comes from config, so fall back to the default one
		lg.Must("").Fatal("failed to load config", zap.Error(err))
	}

	zapLog := lg.Must(cfg.LogLevel)
	defer zapLog.Sync()

	if err := run(cfg, zapLog); err != nil {
		zapLog.Fatal("server terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLog *zap.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	userRepo, probes, closeUsers, err := openUserStore(rootCtx, cfg, zapLog)
	if err != nil {
		return err
	}
	defer closeUsers()

	tokenRepo, probe, closeTokens := openTokenRepo(cfg, zapLog)
	defer closeTokens()
	if probe != nil {
		probes = append(probes, *probe)
	}

	hasher, err := password.NewHasher(cfg)
	if err != nil {
		return err
	}
	pool := password.NewPool(hasher, cfg.HashWorkers, m)

	tokens, err := jwt.NewManager(cfg, m)
	if err != nil {
		return err
	}

	svc := appsvc.New(userRepo, tokenRepo, tokens, pool, dto.NewValidator(), zapLog)

	router := httptransport.NewRouter(svc, zapLog, httptransport.Options{
		CookieDomain: cfg.CookieDomain,
		Metrics:      m.Handler(),
		RateLimit:    50,
		RateBurst:    100,
		RateHosts:    10_000,
		RateIdleTTL:  time.Hour,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv, err := server.NewGRPCServer(cfg, grpctransport.NewHandler(svc, zapLog), svc, m, zapLog)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return grpcSrv.Run(ctx)
	})

	g.Go(func() error {
		server.WatchHealth(ctx, grpcSrv.Health, healthInterval, zapLog, probes...)
		return nil
	})

	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddress))
		var err error
		if cfg.HTTPSCertFile != "" && cfg.HTTPSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		zapLog.Info("shutdown signal received")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			zapLog.Error("shutdown error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func openUserStore(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (repo.UserRepo, []server.Probe, func(), error) {
	switch cfg.UserStore {
	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongorepo.Connect(connectCtx, cfg.MongoURI)
		if err != nil {
			return nil, nil, nil, err
		}
		users := mongorepo.NewUserRepo(client.Database(cfg.MongoDatabase))
		if err := users.EnsureIndexes(connectCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		zapLog.Info("user store ready", zap.String("store", config.StoreMongo), zap.String("database", cfg.MongoDatabase))

		probe := server.Probe{Name: "mongo", Check: func(ctx context.Context) error { return client.Ping(ctx, nil) }}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		return users, []server.Probe{probe}, closeFn, nil

	default:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrate.Up(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, nil, nil, err
		}
		zapLog.Info("user store ready", zap.String("store", config.StorePostgres))

		probe := server.Probe{Name: "postgres", Check: sqlDB.PingContext}
		return pgrepo.NewPostgresUserRepo(db), []server.Probe{probe}, func() { _ = sqlDB.Close() }, nil
	}
}

// openTokenRepo falls back to the in-process denylist when REDIS_ADDRESS is
// empty. That is only correct for a single instance.
func openTokenRepo(cfg *config.Config, zapLog *zap.Logger) (repo.TokenRepo, *server.Probe, func()) {
	if cfg.RedisAddress == "" {
		zapLog.Warn("REDIS_ADDRESS not set, using in-process token denylist")
		return memory.NewTokenRepo(memoryDenylistSize, cfg.RefreshTokenTTL), nil, func() {}
	}

	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	probe := &server.Probe{Name: "redis", Check: func(ctx context.Context) error { return redisCli.Ping(ctx).Err() }}
	return redisrepo.NewRedisTokenRepo(redisCli), probe, func() { _ = redisCli.Close() }
}
