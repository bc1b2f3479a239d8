// Package grpcapi exposes the narrator's gRPC surface: standard health
// checking that follows device connectivity, plus reflection for grpcurl.
package grpcapi

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"ai-scene-narrator-service/internal/observability"
	"ai-scene-narrator-service/internal/observability/logging"
	"ai-scene-narrator-service/internal/observability/metrics"
)

// ServiceName is the health-check service name for narration. It reports
// NOT_SERVING while the device is offline.
const ServiceName = "scene.narrator.Narrator"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	port   string
	logger zerolog.Logger
}

// NewServer builds a gRPC server with health and reflection registered.
func NewServer(port string, m *metrics.Metrics) *Server {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(g)

	return &Server{
		grpc:   g,
		health: hs,
		port:   port,
		logger: logging.WithComponent("grpc"),
	}
}

// SetOnline updates the narration health status. It matches the
// orchestrator's connectivity callback.
func (s *Server) SetOnline(online bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if online {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// Serve accepts connections on lis until Shutdown. It blocks.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server started")
	return s.grpc.Serve(lis)
}

// Start listens on the configured port and serves in a goroutine.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("grpc listen on :%s: %w", s.port, err)
	}
	go func() {
		if err := s.Serve(lis); err != nil {
			s.logger.Error().Err(err).Msg("grpc serve failed")
		}
	}()
	return nil
}

// Shutdown marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Shutdown() {
	s.logger.Info().Msg("shutting down gRPC server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
