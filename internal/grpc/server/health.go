// Package server поднимает gRPC-сервер со стандартным сервисом grpc.health.v1.
// Статус SERVING выставляется, пока отвечают все зависимости.
package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
)

// ServiceName - имя сервиса в ответах health.
const ServiceName = "tourbooking.API"

// Probe проверяет одну зависимость.
type Probe func(ctx context.Context) error

// HealthServer - gRPC-сервер с периодической проверкой зависимостей.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	probes     map[string]Probe
	interval   time.Duration
	log        *slog.Logger
}

// NewHealthServer слушает addr и регистрирует сервис health.
func NewHealthServer(addr string, interval time.Duration, probes map[string]Probe, log *slog.Logger) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newHealthServer(lis, interval, probes, log), nil
}

func newHealthServer(lis net.Listener, interval time.Duration, probes map[string]Probe, log *slog.Logger) *HealthServer {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{
		grpcServer: srv,
		health:     hs,
		listener:   lis,
		probes:     probes,
		interval:   interval,
		log:        log,
	}
}

// Addr возвращает адрес, на котором слушает сервер.
func (s *HealthServer) Addr() string {
	return s.listener.Addr().String()
}

// Probe опрашивает зависимости один раз и обновляет статус.
func (s *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, probe := range s.probes {
		if err := probe(ctx); err != nil {
			s.log.Warn("health probe failed", slog.String("dependency", name), sl.Err(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	return status
}

// Run обслуживает запросы, пока не отменён ctx.
func (s *HealthServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gRPC health service listening on", slog.String("address", s.Addr()))
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	s.Probe(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpcServer.GracefulStop()
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}
