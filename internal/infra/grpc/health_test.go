package grpc

import (
	"context"
	"errors"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"innkeep/internal/infra/obs"
)

func TestRefreshReflectsProbes(t *testing.T) {
	ready := true
	probes := obs.HealthHandlers{Checks: map[string]obs.Check{
		"store": func(context.Context) error {
			if ready {
				return nil
			}
			return errors.New("down")
		},
	}}
	s := NewHealthServer(probes, 0, nil)
	ctx := context.Background()
	if got := s.Refresh(ctx); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}
	ready = false
	if got := s.Refresh(ctx); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("unexpected status %v", resp.Status)
	}
}
