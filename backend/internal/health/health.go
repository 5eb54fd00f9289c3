// ============================================================================
// backend/internal/health/health.go
// gRPC health and reflection endpoint for the grading binaries
// ============================================================================

package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"school_grading/backend/internal/shared"
)

// ServiceName is the health service name the grading API reports under
const ServiceName = "grading.GradingService"

// Pinger reports whether a dependency is reachable
type Pinger func(ctx context.Context) error

// Server is a gRPC server exposing only health and reflection
type Server struct {
	GRPC   *grpc.Server
	health *health.Server
	log    zerolog.Logger
}

// NewServer registers the health and reflection services. Status starts as
// NOT_SERVING until the first successful check.
func NewServer(opts ...grpc.ServerOption) *Server {
	s := &Server{
		GRPC:   grpc.NewServer(opts...),
		health: health.NewServer(),
		log:    shared.Logger("health"),
	}
	grpc_health_v1.RegisterHealthServer(s.GRPC, s.health)
	reflection.Register(s.GRPC)
	s.SetServing(false)
	return s
}

// SetServing sets both the overall and the grading service status
func (s *Server) SetServing(ok bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Check pings every dependency once and updates the status
func (s *Server) Check(ctx context.Context, deps map[string]Pinger) bool {
	ok := true
	for name, ping := range deps {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := ping(pctx)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			ok = false
		}
	}
	s.SetServing(ok)
	return ok
}

// Watch runs Check every interval until ctx is done, then reports NOT_SERVING
func (s *Server) Watch(ctx context.Context, interval time.Duration, deps map[string]Pinger) {
	s.Check(ctx, deps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.SetServing(false)
			return
		case <-ticker.C:
			s.Check(ctx, deps)
		}
	}
}

// Shutdown marks the server NOT_SERVING and stops it gracefully
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.GRPC.GracefulStop()
}
