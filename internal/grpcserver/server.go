// Package grpcserver exposes the standard gRPC health service for the
// catalogue, reporting SERVING only while the database answers pings.
package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "aura.Catalogue"

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
	DB     Pinger
}

func New(db Pinger) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary))
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	s := &Server{GRPC: gs, Health: hs, DB: db}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Check pings the database once and publishes the result.
func (s *Server) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		log.Warn().Err(err).Msg("grpc health: database ping failed")
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Watch re-checks every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.Check(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Check(ctx)
		}
	}
}

func (s *Server) Serve(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	return s.GRPC.Serve(lis)
}

// Stop marks every service NOT_SERVING before draining connections.
func (s *Server) Stop() {
	s.Health.Shutdown()
	s.GRPC.GracefulStop()
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.Health.SetServingStatus("", st)
	s.Health.SetServingStatus(ServiceName, st)
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("method", info.FullMethod).Dur("latency", time.Since(start)).Msg("grpc call")
	return resp, err
}
