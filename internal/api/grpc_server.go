package api

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"petit-storefront/internal/store"
)

// HealthService is the service name the storage probe reports under. The
// empty name reports the same status for the whole server.
const HealthService = "petit.storefront.Storage"

// GRPCServer exposes gRPC health checking and reflection. Its health
// status follows a periodic ping of the client storage.
type GRPCServer struct {
	Server *grpc.Server

	health   *health.Server
	storage  store.ClientStorer
	interval time.Duration
}

// NewGRPCServer registers the health and reflection services. A zero
// interval means 30s.
func NewGRPCServer(storage store.ClientStorer, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := grpc.NewServer()

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	log.Println("INFO: gRPC health check service registered.")

	// grpcurl and friends
	reflection.Register(s)
	log.Println("INFO: gRPC reflection service registered.")

	return &GRPCServer{Server: s, health: hs, storage: storage, interval: interval}
}

// Probe pings the storage once and publishes the result.
func (g *GRPCServer) Probe(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := g.storage.Ping(ctx); err != nil {
		log.Printf("WARN: Storage probe failed: %v", err)
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(HealthService, status)
	return status
}

// RunProbes probes until ctx ends.
func (g *GRPCServer) RunProbes(ctx context.Context) {
	g.Probe(ctx)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Probe(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING so clients drain before the
// server stops.
func (g *GRPCServer) Shutdown() {
	g.health.Shutdown()
}
