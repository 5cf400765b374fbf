package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/legacyxi/shopcart/cart-service/internal/cart"
	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"github.com/legacyxi/shopcart/pkg/logger"
	"go.uber.org/zap"
)

// CartService is what the handlers need from the service layer.
type CartService interface {
	View(ctx context.Context, sessionID string) (*domain.CartView, error)
	Count(ctx context.Context, sessionID string) (int, error)
	BeginAdd(ctx context.Context, sessionID, productID, size string, quantity int) (*domain.CartView, error)
	ConfirmAdd(ctx context.Context, sessionID string) (*domain.CartView, error)
	CancelPendingAdd(ctx context.Context, sessionID string) (*domain.CartView, error)
	AddItem(ctx context.Context, sessionID, productID, size string, quantity int) (*domain.CartView, error)
	UpdateQuantity(ctx context.Context, sessionID, productID, size string, quantity int) (*domain.CartView, error)
	RemoveLine(ctx context.Context, sessionID, productID, size string) (*domain.CartView, error)
	ClearCart(ctx context.Context, sessionID string) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, log *zap.Logger) *CartHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID string          `json:"product_id"`
	Size      string          `json:"size"`
	Quantity  json.RawMessage `json:"quantity,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity json.RawMessage `json:"quantity"`
}

type CountResponseDTO struct {
	Count int `json:"count"`
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, http.StatusOK, func(ctx context.Context, sessionID string) (*domain.CartView, error) {
		return h.carts.View(ctx, sessionID)
	})
}

// GET /api/cart/count
func (h *CartHandler) GetCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	n, err := h.carts.Count(ctx, getSessionID(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CountResponseDTO{Count: n})
}

// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAdd(w, r)
	if !ok {
		return
	}

	h.respondView(w, r, http.StatusCreated, func(ctx context.Context, sessionID string) (*domain.CartView, error) {
		return h.carts.AddItem(ctx, sessionID, req.ProductID, req.Size, parseQuantity(req.Quantity))
	})
}

// POST /api/cart/pending
func (h *CartHandler) BeginAdd(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAdd(w, r)
	if !ok {
		return
	}

	h.respondView(w, r, http.StatusOK, func(ctx context.Context, sessionID string) (*domain.CartView, error) {
		return h.carts.BeginAdd(ctx, sessionID, req.ProductID, req.Size, parseQuantity(req.Quantity))
	})
}

// POST /api/cart/pending/confirm
func (h *CartHandler) ConfirmAdd(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, http.StatusOK, func(ctx context.Context, sessionID string) (*domain.CartView, error) {
		return h.carts.ConfirmAdd(ctx, sessionID)
	})
}

// DELETE /api/cart/pending
func (h *CartHandler) CancelPendingAdd(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, http.StatusOK, func(ctx context.Context, sessionID string) (*domain.CartView, error) {
		return h.carts.CancelPendingAdd(ctx, sessionID)
	})
}

// PUT /api/cart/items/{product_id}/{size}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, size, ok := h.lineParams(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	h.respondView(w, r, http.StatusOK, func(ctx context.Context, sessionID string) (*domain.CartView, error) {
		return h.carts.UpdateQuantity(ctx, sessionID, productID, size, parseQuantity(req.Quantity))
	})
}

// DELETE /api/cart/items/{product_id}/{size}
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	productID, size, ok := h.lineParams(w, r)
	if !ok {
		return
	}

	h.respondView(w, r, http.StatusOK, func(ctx context.Context, sessionID string) (*domain.CartView, error) {
		return h.carts.RemoveLine(ctx, sessionID, productID, size)
	})
}

// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.ClearCart(ctx, getSessionID(r.Context())); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) respondView(w http.ResponseWriter, r *http.Request, status int,
	call func(ctx context.Context, sessionID string) (*domain.CartView, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := call(ctx, getSessionID(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, status, view)
}

func (h *CartHandler) decodeAdd(w http.ResponseWriter, r *http.Request) (AddItemRequestDTO, bool) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return req, false
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Size = strings.TrimSpace(req.Size)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return req, false
	}
	if !h.validSize(w, req.Size) {
		return req, false
	}
	return req, true
}

func (h *CartHandler) lineParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	productID := chi.URLParam(r, "product_id")
	size := chi.URLParam(r, "size")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return "", "", false
	}
	if !h.validSize(w, size) {
		return "", "", false
	}
	return productID, size, true
}

// validSize only checks presence; the service decides which sizes exist.
func (h *CartHandler) validSize(w http.ResponseWriter, size string) bool {
	if strings.TrimSpace(size) == "" {
		respondError(w, http.StatusBadRequest, "invalid_size", "size is required")
		return false
	}
	return true
}

func (h *CartHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.From(r.Context(), h.log)
	switch {
	case errors.Is(err, cart.ErrUnknownSize):
		respondError(w, http.StatusBadRequest, "invalid_size", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("cart request timed out", zap.Error(err))
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Error("cart request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// parseQuantity accepts a JSON number or a numeric string, as sent by a
// form field, and coerces anything else to the minimum quantity.
func parseQuantity(raw json.RawMessage) int {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return cart.ParseQuantity(s)
	}
	return cart.ParseQuantity(string(raw))
}
