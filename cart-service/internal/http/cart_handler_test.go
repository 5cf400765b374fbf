package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/legacyxi/shopcart/cart-service/internal/cart"
	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method    string
	sessionID string
	productID string
	size      string
	quantity  int
}

type mockCartService struct {
	m     sync.Mutex
	calls []call
	err   error
	count int
	sizes cart.SizePolicy
}

func (s *mockCartService) record(c call) (*domain.CartView, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, c)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.CartView{SessionID: c.sessionID, Count: s.count, Display: "0.00"}, nil
}

func (s *mockCartService) lastCall() call {
	s.m.Lock()
	defer s.m.Unlock()
	if len(s.calls) == 0 {
		return call{}
	}
	return s.calls[len(s.calls)-1]
}

func (s *mockCartService) View(_ context.Context, sessionID string) (*domain.CartView, error) {
	return s.record(call{method: "View", sessionID: sessionID})
}

func (s *mockCartService) Count(_ context.Context, sessionID string) (int, error) {
	_, err := s.record(call{method: "Count", sessionID: sessionID})
	return s.count, err
}

func (s *mockCartService) BeginAdd(_ context.Context, sessionID, productID, size string, quantity int) (*domain.CartView, error) {
	if err := s.checkSize(size); err != nil {
		return nil, err
	}
	return s.record(call{"BeginAdd", sessionID, productID, size, quantity})
}

func (s *mockCartService) ConfirmAdd(_ context.Context, sessionID string) (*domain.CartView, error) {
	return s.record(call{method: "ConfirmAdd", sessionID: sessionID})
}

func (s *mockCartService) CancelPendingAdd(_ context.Context, sessionID string) (*domain.CartView, error) {
	return s.record(call{method: "CancelPendingAdd", sessionID: sessionID})
}

func (s *mockCartService) AddItem(_ context.Context, sessionID, productID, size string, quantity int) (*domain.CartView, error) {
	if err := s.checkSize(size); err != nil {
		return nil, err
	}
	return s.record(call{"AddItem", sessionID, productID, size, quantity})
}

func (s *mockCartService) UpdateQuantity(_ context.Context, sessionID, productID, size string, quantity int) (*domain.CartView, error) {
	if err := s.checkSize(size); err != nil {
		return nil, err
	}
	return s.record(call{"UpdateQuantity", sessionID, productID, size, quantity})
}

func (s *mockCartService) RemoveLine(_ context.Context, sessionID, productID, size string) (*domain.CartView, error) {
	if err := s.checkSize(size); err != nil {
		return nil, err
	}
	return s.record(call{method: "RemoveLine", sessionID: sessionID, productID: productID, size: size})
}

func (s *mockCartService) ClearCart(_ context.Context, sessionID string) error {
	_, err := s.record(call{method: "ClearCart", sessionID: sessionID})
	return err
}

// checkSize rejects sizes the way the service does, before anything is recorded.
func (s *mockCartService) checkSize(size string) error {
	if s.sizes == nil {
		return nil
	}
	if _, ok := s.sizes(size); !ok {
		return fmt.Errorf("%w %q", cart.ErrUnknownSize, size)
	}
	return nil
}

func newTestRouter(carts *mockCartService, checkout *mockCheckoutService) http.Handler {
	return NewRouter(
		RouterConfig{RequestTimeout: 5 * time.Second, JWTSecret: testSecret},
		NewCartHandler(carts, 5*time.Second, nil),
		NewCheckoutHandler(checkout, 5*time.Second, nil),
		nil,
	)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockCartService{}, &mockCheckoutService{}), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestGetCart_AssignsSession(t *testing.T) {
	svc := &mockCartService{}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodGet, "/api/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sessionID := rec.Header().Get(SessionHeader)
	_, err := uuid.Parse(sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, svc.lastCall().sessionID)

	var view domain.CartView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, sessionID, view.SessionID)
}

func TestGetCart_KeepsValidSession(t *testing.T) {
	svc := &mockCartService{}
	sessionID := uuid.NewString()
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodGet, "/api/cart", "",
		map[string]string{SessionHeader: sessionID})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sessionID, rec.Header().Get(SessionHeader))
	assert.Equal(t, sessionID, svc.lastCall().sessionID)
}

func TestGetCart_ReplacesMalformedSession(t *testing.T) {
	svc := &mockCartService{}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodGet, "/api/cart", "",
		map[string]string{SessionHeader: "../../etc/passwd"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "../../etc/passwd", rec.Header().Get(SessionHeader))
}

func TestGetCart_ServiceError(t *testing.T) {
	svc := &mockCartService{err: errors.New("database error")}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodGet, "/api/cart", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "internal_error", resp.Code)
}

func TestGetCount(t *testing.T) {
	svc := &mockCartService{count: 7}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodGet, "/api/cart/count", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":7}`, rec.Body.String())
}

func TestAddItem_QuantityCoercion(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"number", `{"product_id":"p1","size":"M","quantity":3}`, 3},
		{"numeric string", `{"product_id":"p1","size":"M","quantity":"4"}`, 4},
		{"fraction", `{"product_id":"p1","size":"M","quantity":2.7}`, 2},
		{"zero", `{"product_id":"p1","size":"M","quantity":0}`, 1},
		{"negative", `{"product_id":"p1","size":"M","quantity":-5}`, 1},
		{"text", `{"product_id":"p1","size":"M","quantity":"abc"}`, 1},
		{"empty string", `{"product_id":"p1","size":"M","quantity":""}`, 1},
		{"missing", `{"product_id":"p1","size":"M"}`, 1},
		{"null", `{"product_id":"p1","size":"M","quantity":null}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCartService{}
			rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodPost, "/api/cart/items", tt.body, nil)

			require.Equal(t, http.StatusCreated, rec.Code)
			c := svc.lastCall()
			assert.Equal(t, "AddItem", c.method)
			assert.Equal(t, "p1", c.productID)
			assert.Equal(t, "M", c.size)
			assert.Equal(t, tt.expected, c.quantity)
		})
	}
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{`, "invalid_request"},
		{"missing product", `{"size":"M","quantity":1}`, "invalid_product_id"},
		{"blank product", `{"product_id":"  ","size":"M"}`, "invalid_product_id"},
		{"missing size", `{"product_id":"p1","quantity":1}`, "invalid_size"},
		{"unknown size", `{"product_id":"p1","size":"XXXL"}`, "invalid_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCartService{sizes: cart.KnownSizes("S", "M", "L")}
			rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodPost, "/api/cart/items", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.Empty(t, svc.calls)
		})
	}
}

func TestPendingRoutes(t *testing.T) {
	svc := &mockCartService{}
	router := newTestRouter(svc, &mockCheckoutService{})
	headers := map[string]string{SessionHeader: uuid.NewString()}

	rec := doRequest(t, router, http.MethodPost, "/api/cart/pending", `{"product_id":"p1","size":"L","quantity":"2"}`, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, call{"BeginAdd", headers[SessionHeader], "p1", "L", 2}, svc.lastCall())

	rec = doRequest(t, router, http.MethodPost, "/api/cart/pending/confirm", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ConfirmAdd", svc.lastCall().method)

	rec = doRequest(t, router, http.MethodDelete, "/api/cart/pending", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CancelPendingAdd", svc.lastCall().method)
}

func TestUpdateQuantity(t *testing.T) {
	svc := &mockCartService{}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodPut, "/api/cart/items/p1/XL", `{"quantity":"5"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	c := svc.lastCall()
	assert.Equal(t, "UpdateQuantity", c.method)
	assert.Equal(t, "p1", c.productID)
	assert.Equal(t, "XL", c.size)
	assert.Equal(t, 5, c.quantity)
}

func TestUpdateQuantity_InvalidBody(t *testing.T) {
	svc := &mockCartService{}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodPut, "/api/cart/items/p1/XL", `not json`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestRemoveLine(t *testing.T) {
	svc := &mockCartService{}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodDelete, "/api/cart/items/p1/S", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	c := svc.lastCall()
	assert.Equal(t, "RemoveLine", c.method)
	assert.Equal(t, "p1", c.productID)
	assert.Equal(t, "S", c.size)
}

func TestRemoveLine_UnknownSize(t *testing.T) {
	svc := &mockCartService{sizes: cart.KnownSizes("S", "M")}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodDelete, "/api/cart/items/p1/XXXL", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_size")
	assert.Empty(t, svc.calls)
}

func TestAddItem_SizeNotOfferedForProduct(t *testing.T) {
	svc := &mockCartService{err: fmt.Errorf("%w %q for product %s", cart.ErrUnknownSize, "S", "jersey-retro-1998")}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodPost, "/api/cart/items",
		`{"product_id":"jersey-retro-1998","size":"S"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "invalid_size", resp.Code)
	assert.Contains(t, resp.Error, "jersey-retro-1998")
}

func TestClearCart(t *testing.T) {
	svc := &mockCartService{}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodDelete, "/api/cart", "", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ClearCart", svc.lastCall().method)
}

func TestClearCart_Error(t *testing.T) {
	svc := &mockCartService{err: context.DeadlineExceeded}
	rec := doRequest(t, newTestRouter(svc, &mockCheckoutService{}), http.MethodDelete, "/api/cart", "", nil)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
