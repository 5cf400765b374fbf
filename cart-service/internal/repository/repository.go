package repository

import (
	"context"
	"errors"

	"github.com/legacyxi/shopcart/cart-service/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository stores the committed cart of each session.
// Pending add intents are never persisted.
type CartRepository interface {
	GetCart(ctx context.Context, sessionID string) (*domain.CartState, error)
	SaveCart(ctx context.Context, state *domain.CartState) error
	DeleteCart(ctx context.Context, sessionID string) error
}
