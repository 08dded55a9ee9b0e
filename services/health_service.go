// services/health_service.go

package services

import (
	"context"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/norun9/harvestbasket/cartstore"
)

const healthWatchInterval = 5 * time.Second

// HealthCheckService reports SERVING while the cart backend answers pings.
type HealthCheckService struct {
	healthpb.UnimplementedHealthServer
	backend cartstore.Backend
}

// NewHealthCheckService constructor.
func NewHealthCheckService(backend cartstore.Backend) *HealthCheckService {
	return &HealthCheckService{backend: backend}
}

// Check pings the cart backend.
func (h *HealthCheckService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	return &healthpb.HealthCheckResponse{Status: h.status(ctx)}, nil
}

// Watch sends the current status and then every change until the client leaves.
func (h *HealthCheckService) Watch(req *healthpb.HealthCheckRequest, stream healthpb.Health_WatchServer) error {
	ctx := stream.Context()
	last := h.status(ctx)
	if err := stream.Send(&healthpb.HealthCheckResponse{Status: last}); err != nil {
		return err
	}

	ticker := time.NewTicker(healthWatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current := h.status(ctx)
			if current == last {
				continue
			}
			last = current
			if err := stream.Send(&healthpb.HealthCheckResponse{Status: current}); err != nil {
				return err
			}
		}
	}
}

func (h *HealthCheckService) status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	if h.backend.Ping(ctx) {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
