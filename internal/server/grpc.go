package server

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	conf "github.com/webitel/document-exporter/config"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/server/interceptor"
	"github.com/webitel/document-exporter/registry"
	"github.com/webitel/document-exporter/registry/consul"
)

type Server struct {
	Server   *grpc.Server
	Health   *health.Server
	listener net.Listener
	config   *conf.ConsulConfig
	exitChan chan error
	registry registry.ServiceRegistrator
}

// BuildServer constructs the gRPC server carrying the health and reflection
// services. The Consul registry is only set up when an agent address is configured.
func BuildServer(config *conf.ConsulConfig, exitChan chan error) (*Server, error) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.OuterInterceptor(),
		),
	)

	listener, err := net.Listen("tcp", config.PublicAddress)
	if err != nil {
		return nil, errors.Internal(
			err.Error(),
			errors.WithID("server.build.listen.error"),
		)
	}

	var reg registry.ServiceRegistrator
	if config.Address != "" {
		reg, err = consul.NewConsulRegistry(config)
		if err != nil {
			_ = listener.Close()
			return nil, errors.Internal(
				err.Error(),
				errors.WithID("server.build.consul_registry.error"),
			)
		}
	}

	hs := health.NewServer()
	hs.SetServingStatus(registry.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	// Register gRPC reflection for debugging
	reflection.Register(s)

	return &Server{
		Server:   s,
		Health:   hs,
		listener: listener,
		exitChan: exitChan,
		config:   config,
		registry: reg,
	}, nil
}

// Addr is the bound listener address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Start registers and starts the gRPC server
func (s *Server) Start() {
	s.Health.SetServingStatus(registry.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if s.registry != nil {
		if err := s.registry.Register(); err != nil {
			s.exitChan <- err
			return
		}
	}
	if err := s.Server.Serve(s.listener); err != nil {
		s.exitChan <- errors.Internal(
			err.Error(),
			errors.WithID("server.start.serve.error"),
		)
	}
}

// Stop deregisters the service and gracefully stops the gRPC server
func (s *Server) Stop() {
	s.Health.Shutdown()
	if s.registry != nil {
		if err := s.registry.Deregister(); err != nil {
			slog.Error("server.stop.deregister.error", slog.String("error", err.Error()))
		}
	}
	s.Server.GracefulStop()
}
