package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// GRPCHealth serves the standard gRPC health service. The status of the
// named service follows the readiness checks; the empty service name
// reports whether the process is up.
type GRPCHealth struct {
	server *grpc.Server
	health *health.Server
	checks []DependencyCheck
	logger zerolog.Logger
}

// NewGRPCHealth creates the gRPC server with the health service registered
func NewGRPCHealth(checks ...DependencyCheck) *GRPCHealth {
	g := &GRPCHealth{
		server: grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    10 * time.Second,
			Timeout: 3 * time.Second,
		})),
		health: health.NewServer(),
		checks: checks,
		logger: Component("grpc-health"),
	}
	healthpb.RegisterHealthServer(g.server, g.health)
	g.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return g
}

// Serve accepts connections on lis until Stop is called
func (g *GRPCHealth) Serve(lis net.Listener) error {
	g.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health service listening")
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Refresh runs the readiness checks and publishes the result
func (g *GRPCHealth) Refresh(ctx context.Context) bool {
	ready := true
	for name, dep := range RunChecks(ctx, g.checks...) {
		if dep.Status != "healthy" && !dep.Optional {
			ready = false
			g.logger.Warn().Str("dependency", name).Str("message", dep.Message).Msg("Dependency not ready")
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !ready {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus(serviceName, status)
	return ready
}

// Watch refreshes the published status every interval until ctx is done
func (g *GRPCHealth) Watch(ctx context.Context, interval time.Duration) {
	g.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Refresh(ctx)
		}
	}
}

// Stop marks every service as not serving and drains open RPCs
func (g *GRPCHealth) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}

// ProbeGRPC asks the health service at addr whether the service is ready.
// It is used by the container health check.
func ProbeGRPC(ctx context.Context, addr string) error {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("service %s is %s", serviceName, resp.GetStatus())
	}
	return nil
}
