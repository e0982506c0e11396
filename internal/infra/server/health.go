package server

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe checks one backing dependency, such as the user store or the denylist.
type Probe struct {
	Name  string
	Check func(context.Context) error
}

// WatchHealth runs every probe each interval and reports NOT_SERVING while any
// of them fails. It returns when ctx is done.
func WatchHealth(ctx context.Context, hs *health.Server, interval time.Duration, logger *zap.Logger, probes ...Probe) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		hs.SetServingStatus("", probeAll(ctx, interval, logger, probes))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func probeAll(ctx context.Context, timeout time.Duration, logger *zap.Logger, probes []Probe) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	for _, p := range probes {
		if err := p.Check(ctx); err != nil {
			logger.Warn("health probe failed", zap.String("probe", p.Name), zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return st
}
