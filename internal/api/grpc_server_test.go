package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"

	"petit-storefront/internal/store"
)

type downStore struct {
	*store.MemoryStore
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func checkHealth(t *testing.T, g *GRPCServer, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	res, err := g.health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return res.GetStatus()
}

func TestGRPCServer_ProbeReportsStorage(t *testing.T) {
	g := NewGRPCServer(store.NewMemoryStore(), time.Minute)
	defer g.Server.Stop()

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, g.Probe(context.Background()))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, checkHealth(t, g, HealthService))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, checkHealth(t, g, ""))
}

func TestGRPCServer_ProbeMarksNotServing(t *testing.T) {
	g := NewGRPCServer(downStore{store.NewMemoryStore()}, time.Minute)
	defer g.Server.Stop()

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, g.Probe(context.Background()))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, checkHealth(t, g, HealthService))
}

func TestGRPCServer_RunProbesStopsWithContext(t *testing.T) {
	g := NewGRPCServer(store.NewMemoryStore(), 10*time.Millisecond)
	defer g.Server.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.RunProbes(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunProbes did not return after cancel")
	}
	g.Shutdown()
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, checkHealth(t, g, HealthService))
}
