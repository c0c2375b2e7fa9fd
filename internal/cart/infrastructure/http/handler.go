package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dmehra2102/Cartified/internal/cart/domain"
	catalog "github.com/dmehra2102/Cartified/internal/catalog/domain"
	"github.com/dmehra2102/Cartified/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errInvalidQuantity = errors.New("quantity must be at least 1")

type Catalog interface {
	catalog.Repository
	Category(ctx context.Context, category string) ([]catalog.Product, error)
}

type Handler struct {
	log     *slog.Logger
	catalog Catalog
	cart    *domain.Cart
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, products Catalog, cart *domain.Cart) *Handler {
	return &Handler{
		log:     log,
		catalog: products,
		cart:    cart,
		tracer:  otel.Tracer("storefront-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addItem)
		r.Put("/items/{id}", h.setQuantity)
		r.Post("/items/{id}/increment", h.increment)
		r.Post("/items/{id}/decrement", h.decrement)
		r.Delete("/items/{id}", h.removeItem)
	})
	return r
}

var mappings = []httpx.Mapping{
	{Err: catalog.ErrProductNotFound, Status: http.StatusNotFound},
	{Err: errInvalidQuantity, Status: http.StatusBadRequest},
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := httpx.Status(err, mappings...)
	if status >= 500 {
		h.log.Error("storefront request failed", "err", err)
	}
	httpx.Error(w, status, err.Error())
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	var (
		products []catalog.Product
		err      error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		span.SetAttributes(attribute.String("category", category))
		products, err = h.catalog.Category(ctx, category)
	} else {
		products, err = h.catalog.List(ctx)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	httpx.JSON(w, http.StatusOK, products)
}

func productID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	id, ok := productID(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.catalog.Get(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type cartLine struct {
	domain.Item
	Subtotal decimal.Decimal `json:"subtotal"`
}

type cartResp struct {
	Items []cartLine      `json:"items"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func (h *Handler) writeCart(w http.ResponseWriter, status int) {
	items := h.cart.Items()
	resp := cartResp{Items: make([]cartLine, 0, len(items)), Total: domain.Total(items)}
	for _, it := range items {
		resp.Items = append(resp.Items, cartLine{Item: it, Subtotal: it.Subtotal()})
		resp.Count += it.Quantity
	}
	httpx.JSON(w, status, resp)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear()
	h.writeCart(w, http.StatusOK)
}

type addItemReq struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddCartItem")
	defer span.End()

	var req addItemReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	span.SetAttributes(attribute.Int("product_id", req.ProductID), attribute.Int("quantity", req.Quantity))

	p, err := h.catalog.Get(ctx, req.ProductID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !h.cart.AddQuantity(p, req.Quantity) {
		h.fail(w, errInvalidQuantity)
		return
	}
	h.writeCart(w, http.StatusOK)
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req setQuantityReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Quantity < 1 {
		h.fail(w, errInvalidQuantity)
		return
	}
	if !h.cart.SetQuantity(id, req.Quantity) && !h.inCart(id) {
		httpx.Error(w, http.StatusNotFound, "item not in cart")
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) inCart(id int) bool {
	for _, it := range h.cart.Items() {
		if it.Product.ID == id {
			return true
		}
	}
	return false
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	if id, ok := productID(r); ok {
		h.cart.Increment(id)
	}
	h.writeCart(w, http.StatusOK)
}

// decrement at quantity 1 leaves the line unchanged.
func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	if id, ok := productID(r); ok {
		h.cart.Decrement(id)
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	if id, ok := productID(r); ok {
		h.cart.Remove(id)
	}
	h.writeCart(w, http.StatusOK)
}
