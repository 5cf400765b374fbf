package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/legacyxi/shopcart/product-service/internal/domain"
	"github.com/legacyxi/shopcart/product-service/internal/repository"
	"go.uber.org/zap"
)

// ProductReader is the read side of the product repository.
type ProductReader interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type ProductHandler struct {
	repo    ProductReader
	timeout time.Duration
	log     *zap.Logger
}

func NewProductHandler(repo ProductReader, timeout time.Duration, log *zap.Logger) *ProductHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductHandler{repo: repo, timeout: timeout, log: log}
}

type listResponse struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message,omitempty"`
	Products []*domain.Product `json:"products"`
}

type productResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Product *domain.Product `json:"product,omitempty"`
}

// GET /api/product/list
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.repo.GetAllProducts(ctx)
	if err != nil {
		h.log.Error("list products failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, listResponse{Success: false, Message: "failed to list products"})
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	respondJSON(w, http.StatusOK, listResponse{Success: true, Products: products})
}

// GET /api/product/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.repo.GetProduct(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, repository.ErrProductNotFound) {
		respondJSON(w, http.StatusNotFound, productResponse{Success: false, Message: "product not found"})
		return
	}
	if err != nil {
		h.log.Error("get product failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, productResponse{Success: false, Message: "failed to get product"})
		return
	}

	respondJSON(w, http.StatusOK, productResponse{Success: true, Product: product})
}

func NewRouter(h *ProductHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/product/list", h.ListProducts)
	r.Get("/api/product/{id}", h.GetProduct)
	return r
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}
