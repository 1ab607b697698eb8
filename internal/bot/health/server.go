// Package health serves the standard gRPC health service so a supervisor can
// see whether the bot is connected to WhatsApp and its storage works.
package health

import (
	"context"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

// Service names reported next to the overall ("") status.
const (
	WhatsApp = "pollwatch.WhatsApp"
	Storage  = "pollwatch.Storage"
)

type Server struct {
	address string
	health  *health.Server
	logger  logging.Logger

	mu       sync.Mutex
	whatsapp bool
	storage  bool
}

// NewServer starts with WhatsApp NOT_SERVING and storage SERVING.
func NewServer(address string, l logging.Logger) *Server {
	s := &Server{
		address: address,
		health:  health.NewServer(),
		logger:  l.With("module", "health_server"),
		storage: true,
	}
	s.publish()
	return s
}

// SetWhatsApp records the connection state of the WhatsApp client.
func (s *Server) SetWhatsApp(connected bool) {
	s.mu.Lock()
	s.whatsapp = connected
	s.mu.Unlock()
	s.publish()
}

// SetStorage records whether the last storage operation succeeded.
func (s *Server) SetStorage(ok bool) {
	s.mu.Lock()
	s.storage = ok
	s.mu.Unlock()
	s.publish()
}

func (s *Server) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.health.SetServingStatus(WhatsApp, servingStatus(s.whatsapp))
	s.health.SetServingStatus(Storage, servingStatus(s.storage))
	s.health.SetServingStatus("", servingStatus(s.whatsapp && s.storage))
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Check answers a health check in process.
func (s *Server) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting health server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
