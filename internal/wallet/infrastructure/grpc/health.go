package grpc

import (
	"log/slog"
	"net"

	"github.com/dmehra2102/Cartified/internal/wallet/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// WalletService is the health service name that tracks the wallet session.
const WalletService = "cartified.wallet"

type SessionSource interface {
	Session() domain.Session
	Watch(fn func(domain.Session)) func()
}

// Health reports SERVING for the wallet service while a session is connected.
type Health struct {
	log    *slog.Logger
	srv    *health.Server
	cancel func()
}

func NewHealth(log *slog.Logger, sessions SessionSource) *Health {
	h := &Health{log: log, srv: health.NewServer()}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.update(sessions.Session())
	h.cancel = sessions.Watch(h.update)
	return h
}

func (h *Health) update(s domain.Session) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.Connected() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus(WalletService, status)
}

func (h *Health) Server() healthpb.HealthServer { return h.srv }

func (h *Health) Close() {
	h.cancel()
	h.srv.Shutdown()
}

func Run(log *slog.Logger, addr string, h *Health) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, h.srv)
	go func() {
		if err := gs.Serve(lis); err != nil {
			log.Error("grpc server stopped", "err", err)
		}
	}()
	return gs, nil
}
