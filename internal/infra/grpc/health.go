// Package grpc serves the standard gRPC health service next to the HTTP API.
package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"innkeep/internal/infra/obs"
)

// ServiceName is the health service name reported next to the overall "" status.
const ServiceName = "innkeep.availability"

type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	probes   obs.HealthHandlers
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthServer(probes obs.HealthHandlers, interval time.Duration, logger *slog.Logger) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{server: srv, health: hs, probes: probes, interval: interval, logger: logger}
}

// Refresh runs the readiness probes once and publishes the result.
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if failures := s.probes.Probe(ctx); len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn("readiness probe failed", "failures", failures)
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve blocks until ctx is done or the listener fails.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				s.logger.Info("shutting down grpc server")
				s.server.GracefulStop()
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
