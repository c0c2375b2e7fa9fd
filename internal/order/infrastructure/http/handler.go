package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dmehra2102/Cartified/internal/order/domain"
	wallet "github.com/dmehra2102/Cartified/internal/wallet/domain"
	"github.com/dmehra2102/Cartified/pkg/httpx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Checkout interface {
	State() domain.CheckoutState
	Next(ctx context.Context) (domain.CheckoutState, error)
	Back() (domain.CheckoutState, error)
	Reset() (domain.CheckoutState, error)
	SelectPayment(method string) error
}

type Delivery interface {
	Records(ctx context.Context) ([]domain.OrderRecord, error)
	Refresh(ctx context.Context) ([]domain.OrderRecord, error)
	Pending(ctx context.Context) ([]domain.OrderRecord, error)
	QR(ctx context.Context, tokenID uint64) (domain.QRPayload, error)
	Confirm(ctx context.Context, tokenID uint64) (string, error)
	Burn(ctx context.Context, tokenID uint64) (string, error)
}

type Loyalty interface {
	Points(ctx context.Context) (decimal.Decimal, error)
}

type History interface {
	Purchases(ctx context.Context, buyer string) ([]domain.Purchase, error)
}

type Account interface {
	Account() common.Address
}

// Handler serves checkout, order tracking and loyalty. History may be nil
// when no ledger is configured.
type Handler struct {
	log      *slog.Logger
	checkout Checkout
	delivery Delivery
	loyalty  Loyalty
	history  History
	account  Account
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, c Checkout, d Delivery, l Loyalty, hist History, acct Account) *Handler {
	return &Handler{
		log:      log,
		checkout: c,
		delivery: d,
		loyalty:  l,
		history:  hist,
		account:  acct,
		tracer:   otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/", h.checkoutState)
		r.Post("/next", h.checkoutNext)
		r.Post("/back", h.checkoutBack)
		r.Post("/reset", h.checkoutReset)
		r.Post("/payment", h.checkoutPayment)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/refresh", h.refreshOrders)
		r.Get("/pending", h.pendingOrders)
		r.Get("/{id}/qr", h.qr)
		r.Get("/{id}/qr.png", h.qrImage)
		r.Post("/{id}/confirm-delivery", h.confirmDelivery)
		r.Post("/{id}/burn", h.burn)
	})

	r.Get("/loyalty", h.points)
	r.Get("/purchases", h.purchases)
	return r
}

var mappings = []httpx.Mapping{
	{Err: domain.ErrEmptyCart, Status: http.StatusUnprocessableEntity},
	{Err: domain.ErrUnsupportedPayment, Status: http.StatusBadRequest},
	{Err: domain.ErrInvalidTransition, Status: http.StatusConflict},
	{Err: domain.ErrCheckoutBusy, Status: http.StatusConflict},
	{Err: domain.ErrConfirmationInFlight, Status: http.StatusConflict},
	{Err: domain.ErrOrderNotPending, Status: http.StatusConflict},
	{Err: domain.ErrOrderNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrTransactionRejected, Status: http.StatusForbidden},
	{Err: wallet.ErrNetworkMismatch, Status: http.StatusConflict},
	{Err: domain.ErrInsufficientFunds, Status: http.StatusPaymentRequired},
	{Err: domain.ErrUploadUnauthorized, Status: http.StatusBadGateway},
	{Err: domain.ErrUploadFailed, Status: http.StatusBadGateway},
	{Err: domain.ErrTransactionFailed, Status: http.StatusBadGateway},
	{Err: domain.ErrEventNotFound, Status: http.StatusBadGateway},
	{Err: domain.ErrInvalidContractAddress, Status: http.StatusServiceUnavailable},
	{Err: wallet.ErrWalletNotConnected, Status: http.StatusUnauthorized},
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, op string, err error) {
	status := httpx.Status(err, mappings...)
	if status >= 500 {
		h.log.Error(op+" failed", "err", err)
	}
	span.RecordError(err)
	httpx.Error(w, status, err.Error())
}

func (h *Handler) checkoutState(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.checkout.State())
}

func (h *Handler) checkoutNext(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CheckoutNext")
	defer span.End()

	st, err := h.checkout.Next(ctx)
	if err != nil {
		h.fail(w, span, "checkout next", err)
		return
	}
	span.SetAttributes(attribute.String("step", string(st.Step)))
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) checkoutBack(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "CheckoutBack")
	defer span.End()

	st, err := h.checkout.Back()
	if err != nil {
		h.fail(w, span, "checkout back", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) checkoutReset(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "CheckoutReset")
	defer span.End()

	st, err := h.checkout.Reset()
	if err != nil {
		h.fail(w, span, "checkout reset", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

type paymentReq struct {
	Method string `json:"method"`
}

func (h *Handler) checkoutPayment(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "CheckoutPayment")
	defer span.End()

	var req paymentReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.checkout.SelectPayment(req.Method); err != nil {
		h.fail(w, span, "select payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.checkout.State())
}

type ordersResp struct {
	Orders []domain.OrderRecord `json:"orders"`
	Count  int                  `json:"count"`
}

func (h *Handler) writeOrders(w http.ResponseWriter, span trace.Span, op string, records []domain.OrderRecord, err error) {
	if err != nil {
		h.fail(w, span, op, err)
		return
	}
	if records == nil {
		records = []domain.OrderRecord{}
	}
	httpx.JSON(w, http.StatusOK, ordersResp{Orders: records, Count: len(records)})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()
	records, err := h.delivery.Records(ctx)
	h.writeOrders(w, span, "list orders", records, err)
}

func (h *Handler) refreshOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RefreshOrders")
	defer span.End()
	records, err := h.delivery.Refresh(ctx)
	h.writeOrders(w, span, "refresh orders", records, err)
}

func (h *Handler) pendingOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PendingOrders")
	defer span.End()
	records, err := h.delivery.Pending(ctx)
	h.writeOrders(w, span, "pending orders", records, err)
}

func tokenID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid token id")
		return 0, false
	}
	return id, true
}

func (h *Handler) qr(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeliveryQR")
	defer span.End()

	id, ok := tokenID(w, r)
	if !ok {
		return
	}
	payload, err := h.delivery.QR(ctx, id)
	if err != nil {
		h.fail(w, span, "delivery qr", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payload)
}

const qrSize = 256

func (h *Handler) qrImage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeliveryQRImage")
	defer span.End()

	id, ok := tokenID(w, r)
	if !ok {
		return
	}
	payload, err := h.delivery.QR(ctx, id)
	if err != nil {
		h.fail(w, span, "delivery qr", err)
		return
	}
	raw, err := payload.Encode()
	if err != nil {
		h.fail(w, span, "encode qr", err)
		return
	}
	png, err := qrcode.Encode(string(raw), qrcode.Medium, qrSize)
	if err != nil {
		h.fail(w, span, "render qr", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

type txResp struct {
	TokenID uint64 `json:"tokenId"`
	TxHash  string `json:"txHash"`
}

func (h *Handler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmDelivery")
	defer span.End()

	id, ok := tokenID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("token_id", int64(id)))

	hash, err := h.delivery.Confirm(ctx, id)
	if err != nil {
		h.fail(w, span, "confirm delivery", err)
		return
	}
	httpx.JSON(w, http.StatusOK, txResp{TokenID: id, TxHash: hash})
}

func (h *Handler) burn(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "BurnOrder")
	defer span.End()

	id, ok := tokenID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("token_id", int64(id)))

	hash, err := h.delivery.Burn(ctx, id)
	if err != nil {
		h.fail(w, span, "burn order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, txResp{TokenID: id, TxHash: hash})
}

type pointsResp struct {
	Points decimal.Decimal `json:"points"`
}

func (h *Handler) points(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "LoyaltyPoints")
	defer span.End()

	p, err := h.loyalty.Points(ctx)
	if err != nil {
		h.fail(w, span, "loyalty points", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pointsResp{Points: p})
}

func (h *Handler) purchases(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListPurchases")
	defer span.End()

	if h.history == nil {
		httpx.Error(w, http.StatusNotImplemented, "purchase history is not configured")
		return
	}
	buyer := r.URL.Query().Get("buyer")
	if buyer == "" {
		acct := h.account.Account()
		if acct == (common.Address{}) {
			httpx.Error(w, http.StatusUnauthorized, wallet.ErrWalletNotConnected.Error())
			return
		}
		buyer = acct.Hex()
	} else if !common.IsHexAddress(buyer) {
		httpx.Error(w, http.StatusBadRequest, "invalid buyer address")
		return
	}

	ps, err := h.history.Purchases(ctx, common.HexToAddress(buyer).Hex())
	if err != nil {
		h.fail(w, span, "list purchases", err)
		return
	}
	if ps == nil {
		ps = []domain.Purchase{}
	}
	httpx.JSON(w, http.StatusOK, ps)
}
