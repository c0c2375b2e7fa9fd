package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/Cartified/internal/wallet/domain"
	"github.com/dmehra2102/Cartified/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Sessions interface {
	Session() domain.Session
	Info() domain.Info
	Connect(ctx context.Context) error
	Disconnect()
	SwitchNetwork(ctx context.Context, chainID uint64) bool
}

type Handler struct {
	log      *slog.Logger
	sessions Sessions
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, sessions Sessions) *Handler {
	return &Handler{log: log, sessions: sessions, tracer: otel.Tracer("wallet-http")}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.get)
	r.Post("/connect", h.connect)
	r.Post("/disconnect", h.disconnect)
	r.Post("/network", h.switchNetwork)
	return r
}

type walletResp struct {
	Session domain.Session `json:"session"`
	Info    *domain.Info   `json:"info,omitempty"`
}

func (h *Handler) write(w http.ResponseWriter, status int) {
	resp := walletResp{Session: h.sessions.Session()}
	if resp.Session.Connected() {
		info := h.sessions.Info()
		resp.Info = &info
	}
	httpx.JSON(w, status, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK)
}

var mappings = []httpx.Mapping{
	{Err: domain.ErrProviderUnavailable, Status: http.StatusServiceUnavailable},
	{Err: domain.ErrNoAccountsGranted, Status: http.StatusForbidden},
	{Err: domain.ErrNetworkMismatch, Status: http.StatusConflict},
	{Err: domain.ErrConnectInProgress, Status: http.StatusConflict},
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConnectWallet")
	defer span.End()

	if err := h.sessions.Connect(ctx); err != nil {
		status := httpx.Status(err, mappings...)
		if code, ok := domain.ProviderErrorCode(err); ok && code == domain.CodeUserRejected {
			status = http.StatusForbidden
		}
		if status >= 500 {
			h.log.Error("wallet connect failed", "err", err)
		}
		span.RecordError(err)
		httpx.Error(w, status, err.Error())
		return
	}
	h.write(w, http.StatusOK)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	h.sessions.Disconnect()
	h.write(w, http.StatusOK)
}

type switchReq struct {
	ChainID uint64 `json:"chainId"`
}

type switchResp struct {
	Switched bool           `json:"switched"`
	Session  domain.Session `json:"session"`
}

func (h *Handler) switchNetwork(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SwitchNetwork")
	defer span.End()

	var req switchReq
	if err := httpx.Decode(r, &req); err != nil || req.ChainID == 0 {
		httpx.Error(w, http.StatusBadRequest, "chainId is required")
		return
	}
	span.SetAttributes(attribute.Int64("chain_id", int64(req.ChainID)))

	ok := h.sessions.SwitchNetwork(ctx, req.ChainID)
	httpx.JSON(w, http.StatusOK, switchResp{Switched: ok, Session: h.sessions.Session()})
}
