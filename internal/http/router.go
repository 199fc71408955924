package http

import (
	"net/http"
	"time"

	"github.com/fjod/marketplace/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Carts          CartService
	Orders         OrderService
	Wallet         WalletService
	Stock          StockService
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) chi.Router {
	cartHandler := NewCartHandler(cfg.Carts, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout)
	walletHandler := NewWalletHandler(cfg.Wallet, cfg.RequestTimeout)
	productHandler := NewProductHandler(cfg.Stock, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(MockAuthMiddleware)

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", cartHandler.CreateCart)
			r.Get("/pending", cartHandler.GetPendingCart)
			r.Get("/mine", cartHandler.ListCarts)
			r.Get("/transaction/{transactionId}", cartHandler.GetCartByTransaction)
			r.Get("/{id}", cartHandler.GetCart)
			r.Put("/{id}", cartHandler.UpdateCart)
			r.Delete("/{id}", cartHandler.DeleteCart)
			r.Patch("/{id}/validate", cartHandler.ValidateCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{id}", ordersHandler.GetOrder)
			r.Get("/transaction/{transactionId}", ordersHandler.ListByTransaction)
		})

		r.Route("/shops/{shopId}", func(r chi.Router) {
			r.Get("/orders", ordersHandler.ListByShop)
			r.Get("/sales", ordersHandler.SalesByMonth)
		})

		r.Get("/products/{id}/movements", productHandler.ListMovements)

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", walletHandler.Balance)
			r.Get("/transactions", walletHandler.ListTransactions)
			r.Post("/recharge", walletHandler.Recharge)
			r.Post("/rent", walletHandler.PayRent)
		})
	})

	return r
}
