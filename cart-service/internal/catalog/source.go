package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrCatalogRejected = errors.New("catalog service reported failure")

// Source loads the full product list.
type Source interface {
	FetchProducts(ctx context.Context) ([]domain.Product, error)
}

type productDTO struct {
	ID         string   `json:"_id"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Images     []string `json:"image"`
	Bestseller bool     `json:"bestseller"`
	Sizes      []string `json:"sizes"`
}

type listResponse struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message,omitempty"`
	Products []productDTO `json:"products"`
}

// HTTPSource reads the listing served by product-service.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (s *HTTPSource) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/product/list", nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch catalog: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload listResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("%w: %s", ErrCatalogRejected, payload.Message)
	}

	products := make([]domain.Product, 0, len(payload.Products))
	for _, p := range payload.Products {
		if p.ID == "" {
			continue
		}
		price := p.Price
		if price < 0 {
			price = 0
		}
		products = append(products, domain.Product{
			ID:         p.ID,
			Name:       p.Name,
			Price:      price,
			Images:     p.Images,
			Bestseller: p.Bestseller,
			Sizes:      p.Sizes,
		})
	}
	return products, nil
}
