package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a single (product, size) entry. Quantity is always >= 1.
type CartLine struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// CartLineView is a CartLine joined against the catalog at read time.
type CartLineView struct {
	ProductID    string          `json:"product_id"`
	Size         string          `json:"size"`
	Quantity     int             `json:"quantity"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	Image        string          `json:"image,omitempty"`
}

// PendingAdd is an add-to-cart intent that has not been committed yet.
type PendingAdd struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// CartState is the persisted form of a session cart: productID -> size -> quantity.
type CartState struct {
	SessionID string                    `json:"session_id"`
	UserID    string                    `json:"user_id,omitempty"`
	Items     map[string]map[string]int `json:"items"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// CartView is what the storefront renders for a session.
type CartView struct {
	SessionID string          `json:"session_id"`
	Lines     []CartLineView  `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	Display   string          `json:"display_total"`
	Currency  string          `json:"currency"`
	Count     int             `json:"count"`
	Pending   *PendingAdd     `json:"pending,omitempty"`
	Version   uint64          `json:"version"`
}

// CheckoutPayload is handed to order placement when the shopper proceeds.
type CheckoutPayload struct {
	CheckoutID string          `json:"checkout_id"`
	SessionID  string          `json:"session_id"`
	UserID     string          `json:"user_id"`
	Lines      []CartLineView  `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	CapturedAt time.Time       `json:"captured_at"`
}
