package cache

import (
	"context"
	"errors"

	"github.com/legacyxi/shopcart/cart-service/internal/domain"
)

// CartCache is a read-through cache in front of the cart repository.
type CartCache interface {
	Get(ctx context.Context, sessionID string) (*domain.CartState, error)
	Set(ctx context.Context, state *domain.CartState) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
