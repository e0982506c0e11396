package middleware

import (
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return grpc_recovery.UnaryServerInterceptor(
		grpc_recovery.WithRecoveryHandler(func(p any) error {
			logger.Error("panic in gRPC handler", zap.Any("panic", p), zap.Stack("stack"))
			return status.Error(codes.Internal, "internal error")
		}),
	)
}

func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return grpc_zap.UnaryServerInterceptor(logger)
}

// MetricsInterceptor falls back to the process-wide collectors when sm is nil.
func MetricsInterceptor(sm *grpc_prometheus.ServerMetrics) grpc.UnaryServerInterceptor {
	if sm == nil {
		return grpc_prometheus.UnaryServerInterceptor
	}
	return sm.UnaryServerInterceptor()
}

// ChainUnaryServer runs recovery first so that a panic anywhere below it is
// turned into codes.Internal. Extra interceptors run after rate limiting.
func ChainUnaryServer(
	logger *zap.Logger,
	sm *grpc_prometheus.ServerMetrics,
	limit, burst int,
	extra ...grpc.UnaryServerInterceptor,
) grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
		MetricsInterceptor(sm),
		NewRateLimitPerIP(limit, burst, 10_000, time.Hour),
	}
	return grpc_middleware.ChainUnaryServer(append(chain, extra...)...)
}
