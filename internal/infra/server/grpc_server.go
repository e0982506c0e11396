package server

import (
	"context"
	"errors"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpctransport "github.com/vidhost/auth-service/internal/adapters/transport/grpc"
	"github.com/vidhost/auth-service/internal/adapters/transport/grpc/middleware"
	"github.com/vidhost/auth-service/internal/infra/config"
	"github.com/vidhost/auth-service/internal/infra/metrics"
)

const (
	rateLimit = 10
	rateBurst = 100
)

// GRPC bundles the server with its health service so callers can flip the
// serving status and stop both together.
type GRPC struct {
	Server *grpc.Server
	Health *health.Server
	addr   string
	logger *zap.Logger
}

// NewGRPCServer builds the server with TLS when a certificate is configured.
func NewGRPCServer(
	cfg *config.Config,
	handler *grpctransport.Handler,
	authn middleware.Authenticator,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*GRPC, error) {
	sm := grpc_prometheus.NewServerMetrics()
	sm.EnableHandlingTimeHistogram()
	if m != nil {
		if err := m.Registry().Register(sm); err != nil {
			return nil, err
		}
	}

	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(middleware.ChainUnaryServer(
			logger, sm, rateLimit, rateBurst,
			middleware.Auth(authn, grpctransport.PublicMethods...),
		)),
	}
	if cfg.HTTPSCertFile != "" && cfg.HTTPSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	s := grpc.NewServer(opts...)
	hs := health.NewServer()

	grpctransport.RegisterAuthServer(s, handler)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	sm.InitializeMetrics(s)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(grpctransport.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &GRPC{Server: s, Health: hs, addr: cfg.GRPCAddress, logger: logger}, nil
}

// Run serves on the configured address until ctx is cancelled, then stops
// gracefully with a 5-second cap.
func (g *GRPC) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return err
	}
	return g.Serve(ctx, lis)
}

func (g *GRPC) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := g.Server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	g.logger.Info("ctx cancelled, stopping gRPC server")
	g.Health.Shutdown()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		g.Server.GracefulStop()
		close(done)
	}()

	select {
	case <-stopCtx.Done():
		g.Server.Stop()
	case <-done:
	}
	g.logger.Info("gRPC server stopped")
	return nil
}
