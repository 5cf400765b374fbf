package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// CatalogService is the health service name tracking catalog freshness.
const CatalogService = "catalog"

// Checker reports whether a dependency is usable.
type Checker interface {
	Healthy() bool
}

type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	catalog  Checker
	interval time.Duration
	log      *zap.Logger
}

func NewServer(catalog Checker, interval time.Duration, log *zap.Logger, opts ...grpc.ServerOption) *Server {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	gs := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(gs)

	s := &Server{
		grpc:     gs,
		health:   hs,
		catalog:  catalog,
		interval: interval,
		log:      log,
	}
	s.update()
	return s
}

func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// Watch keeps the catalog status current until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.update()
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown marks every service NOT_SERVING and stops the server.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) update() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.catalog != nil && !s.catalog.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(CatalogService, status)
	s.log.Debug("health updated", zap.String("catalog", status.String()))
}
