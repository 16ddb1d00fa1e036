package rpc

import (
	"context"
	"fmt"
	"net"

	"github.com/qubic/chains-status/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const ServiceName = "qubic.chains.status"

// HealthServer serves the standard grpc health service. It reports NOT_SERVING until the first status list
// has been published.
type HealthServer struct {
	listenAddr string
	health     *health.Server
	srv        *grpc.Server
	lis        net.Listener
}

func NewHealthServer(listenAddr string) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{
		listenAddr: listenAddr,
		health:     hs,
	}
}

// Publish marks the service as serving. Used as publishing sink.
func (s *HealthServer) Publish(_ context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return nil
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return nil
}

func (s *HealthServer) Start(errChan chan error) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)

	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %v", err)
	}
	s.srv = srv
	s.lis = lis

	go func() {
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("serving grpc listener: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *HealthServer) Addr() string {
	if s.lis == nil {
		return s.listenAddr
	}
	return s.lis.Addr().String()
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	if s.srv != nil {
		s.srv.GracefulStop()
	}
}
