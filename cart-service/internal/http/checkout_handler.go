package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/legacyxi/shopcart/cart-service/internal/cart"
	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"github.com/legacyxi/shopcart/cart-service/internal/service"
	"github.com/legacyxi/shopcart/pkg/logger"
	"go.uber.org/zap"
)

type CheckoutService interface {
	Checkout(ctx context.Context, sessionID, userID string) (*domain.CheckoutPayload, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
	log      *zap.Logger
}

func NewCheckoutHandler(checkout CheckoutService, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
		log:      log,
	}
}

type CheckoutResponseDTO struct {
	CheckoutID string `json:"checkout_id"`
	Total      string `json:"total"`
	Currency   string `json:"currency"`
	Lines      int    `json:"lines"`
}

// POST /api/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	payload, err := h.checkout.Checkout(ctx, getSessionID(r.Context()), userID)
	if errors.Is(err, service.ErrEmptyCart) {
		respondError(w, http.StatusConflict, "empty_cart", "cart is empty")
		return
	}
	if err != nil {
		logger.From(r.Context(), h.log).Error("checkout failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "checkout_unavailable", "checkout could not be started")
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		CheckoutID: payload.CheckoutID,
		Total:      cart.FormatAmount(payload.Total),
		Currency:   payload.Currency,
		Lines:      len(payload.Lines),
	})
}
