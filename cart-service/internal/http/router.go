package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	JWTSecret      []byte
}

// NewRouter wires the storefront cart API.
func NewRouter(cfg RouterConfig, carts *CartHandler, checkout *CheckoutHandler, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Get("/count", carts.GetCount)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{product_id}/{size}", carts.UpdateQuantity)
			r.Delete("/items/{product_id}/{size}", carts.RemoveLine)
			r.Post("/pending", carts.BeginAdd)
			r.Post("/pending/confirm", carts.ConfirmAdd)
			r.Delete("/pending", carts.CancelPendingAdd)
		})

		r.With(AuthMiddleware(cfg.JWTSecret)).Post("/checkout", checkout.Checkout)
	})

	return otelhttp.NewHandler(r, "cart-service")
}
