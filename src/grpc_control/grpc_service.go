package grpc_control

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"feedrace/src/config"
	"feedrace/src/logger"
)

// -----------------------------------------------------------------------------
// GRPCService exposes a standard gRPC health endpoint so orchestrators can
// probe the process without touching the HTTP surface. Control operations
// stay on HTTP; this server only answers health checks.
// -----------------------------------------------------------------------------

const serviceName = "feedrace.Backend"

type GRPCService struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	config   *config.Config
	logger   *logger.Logger
	running  bool
}

// -----------------------------------------------------------------------------

// NewGRPCService creates a new GRPCService instance
func NewGRPCService(config *config.Config, logger *logger.Logger) (*GRPCService, error) {
	address := fmt.Sprintf("%s:%d", config.GRPCHost, config.GRPCPort)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	server := grpc.NewServer()

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	return &GRPCService{
		server:   server,
		listener: listener,
		health:   healthServer,
		config:   config,
		logger:   logger,
	}, nil
}

// -----------------------------------------------------------------------------

// Start serves in the background and marks the service healthy
func (g *GRPCService) Start() error {
	if g.running {
		return fmt.Errorf("grpc service is already running")
	}

	g.logger.Info("Starting gRPC health service on %s", g.listener.Addr().String())
	g.health.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		g.running = true
		if err := g.server.Serve(g.listener); err != nil && err != grpc.ErrServerStopped {
			g.logger.Error("gRPC server failed: %v", err)
		}
		g.running = false
	}()

	return nil
}

// -----------------------------------------------------------------------------

// Stop gracefully stops the gRPC server, falling back to a hard stop when
// the context expires first.
func (g *GRPCService) Stop(ctx context.Context) error {
	g.logger.Info("Stopping gRPC health service...")
	g.health.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Info("gRPC service stopped gracefully")
	case <-ctx.Done():
		g.logger.Warning("gRPC graceful stop timed out, forcing shutdown")
		g.server.Stop()
	}

	return nil
}
