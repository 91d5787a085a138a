// Package server runs the gRPC endpoint used by orchestrator health checks.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check service name for the safety API.
const ServiceName = "mimind.safety.v1.SafetyService"

// Pinger is a dependency whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves grpc.health.v1 for the safety service. The overall
// status ("") and ServiceName move together.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger

	mu      sync.Mutex
	serving bool
}

// NewHealthServer builds the gRPC server with the keepalive settings used
// by every service in this repo. The initial status is SERVING.
func NewHealthServer(logger *zap.Logger) *HealthServer {
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 10 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(1024*1024),
		grpc.MaxSendMsgSize(1024*1024),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Enable reflection for debugging with grpcurl
	reflection.Register(grpcServer)

	s := &HealthServer{
		grpc:   grpcServer,
		health: healthServer,
		logger: logger,
	}
	s.SetServing(true)
	return s
}

// SetServing flips the reported status. Transitions are logged.
func (s *HealthServer) SetServing(serving bool) {
	s.mu.Lock()
	changed := s.serving != serving
	s.serving = serving
	s.mu.Unlock()

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)

	if changed {
		s.logger.Info("health status changed", zap.String("status", status.String()))
	}
}

// Serving reports the current status.
func (s *HealthServer) Serving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serving
}

// Watch pings every dependency each interval and reports NOT_SERVING while
// any of them fails. It returns when ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration, deps map[string]Pinger) {
	if len(deps) == 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.check(ctx, interval, deps)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *HealthServer) check(ctx context.Context, timeout time.Duration, deps map[string]Pinger) {
	healthy := true
	for name, p := range deps {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			healthy = false
			s.logger.Warn("dependency ping failed", zap.String("dependency", name), zap.Error(err))
		}
	}
	s.SetServing(healthy)
}

// Serve blocks serving gRPC on lis.
func (s *HealthServer) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop reports NOT_SERVING so health checks drain, then stops the server.
func (s *HealthServer) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
