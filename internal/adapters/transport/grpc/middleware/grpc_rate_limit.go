package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/vidhost/auth-service/internal/adapters/transport/ratelimit"
)

// NewRateLimitPerIP limits calls per second for each peer host. Calls without
// peer information are rejected.
func NewRateLimitPerIP(limit, burst, cacheSize int, ttl time.Duration) grpc.UnaryServerInterceptor {
	visitors := ratelimit.NewVisitors(limit, burst, cacheSize, ttl)

	return func(
		ctx context.Context,
		req any,
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		p, ok := peer.FromContext(ctx)
		if !ok || p.Addr == nil {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}

		if !visitors.Allow(ratelimit.Host(p.Addr.String())) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
