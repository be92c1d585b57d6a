package server

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// adminServer serves the standard gRPC health service on a separate
// port so orchestrators can probe readiness without hitting the public
// API.
type adminServer struct {
	grpcSrv *grpc.Server
	health  *health.Server
	ln      net.Listener
	logger  *zap.Logger
}

func newAdminServer(addr string, logger *zap.Logger) (*adminServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return &adminServer{
		grpcSrv: grpcSrv,
		health:  healthSrv,
		ln:      ln,
		logger:  logger,
	}, nil
}

func (a *adminServer) setServing(up bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		status = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", status)
}

func (a *adminServer) run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.grpcSrv.GracefulStop()
		case <-done:
		}
	}()
	defer close(done)

	a.logger.Info("admin health server listening", zap.String("addr", a.ln.Addr().String()))
	return a.grpcSrv.Serve(a.ln)
}
