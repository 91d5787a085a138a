package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// fakePinger fails while failing is set.
type fakePinger struct {
	failing   atomic.Bool
	callCount atomic.Int32
}

func (f *fakePinger) Ping(_ context.Context) error {
	f.callCount.Add(1)
	if f.failing.Load() {
		return errors.New("connection refused")
	}
	return nil
}

// testServer spins up an in-process gRPC server and returns a connected client.
func testServer(t *testing.T) (*HealthServer, healthpb.HealthClient) {
	t.Helper()

	srv := NewHealthServer(zap.NewNop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.Serve(lis) //nolint:errcheck

	conn, err := grpc.NewClient(
		lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		srv.GracefulStop()
	})

	return srv, healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	return resp.GetStatus()
}

func TestHealthServer_Serving(t *testing.T) {
	srv, client := testServer(t)

	for _, svc := range []string{"", ServiceName} {
		if got := checkStatus(t, client, svc); got != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("service %q: expected SERVING, got %s", svc, got)
		}
	}

	srv.SetServing(false)
	if got := checkStatus(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING, got %s", got)
	}
	if srv.Serving() {
		t.Error("Serving() should be false")
	}
}

func TestHealthServer_Check(t *testing.T) {
	srv := NewHealthServer(zap.NewNop())
	defer srv.GracefulStop()

	db := &fakePinger{}
	nats := &fakePinger{}
	deps := map[string]Pinger{"postgres": db, "nats": nats}

	srv.check(context.Background(), time.Second, deps)
	if !srv.Serving() {
		t.Error("expected serving with healthy dependencies")
	}

	db.failing.Store(true)
	srv.check(context.Background(), time.Second, deps)
	if srv.Serving() {
		t.Error("expected not serving with a failing dependency")
	}

	db.failing.Store(false)
	srv.check(context.Background(), time.Second, deps)
	if !srv.Serving() {
		t.Error("expected recovery once the dependency is back")
	}

	if db.callCount.Load() != 3 || nats.callCount.Load() != 3 {
		t.Errorf("expected 3 pings each, got %d/%d", db.callCount.Load(), nats.callCount.Load())
	}
}

func TestHealthServer_WatchStopsOnCancel(t *testing.T) {
	srv := NewHealthServer(zap.NewNop())
	defer srv.GracefulStop()

	p := &fakePinger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Watch(ctx, 10*time.Millisecond, map[string]Pinger{"postgres": p})
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	if p.callCount.Load() < 1 {
		t.Error("expected at least one ping")
	}
}
