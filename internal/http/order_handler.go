package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/marketplace/internal/domain"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Order, error)
	ListByShop(ctx context.Context, shopID string, page domain.Page) ([]*domain.Order, domain.Pagination, error)
	SalesByMonth(ctx context.Context, shopID string, year int) ([]domain.MonthlySales, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", order)
}

// GET /api/v1/orders/transaction/{transactionId}
func (h *OrdersHandler) ListByTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListByTransaction(ctx, chi.URLParam(r, "transactionId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondData(w, http.StatusOK, "", orders)
}

// GET /api/v1/shops/{shopId}/orders
func (h *OrdersHandler) ListByShop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, pagination, err := h.orders.ListByShop(ctx, chi.URLParam(r, "shopId"), parsePage(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondPage(w, orders, pagination)
}

// GET /api/v1/shops/{shopId}/sales?year=
func (h *OrdersHandler) SalesByMonth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	year := time.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "year must be an integer", map[string]string{"field": "year"})
			return
		}
		year = parsed
	}

	sales, err := h.orders.SalesByMonth(ctx, chi.URLParam(r, "shopId"), year)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", sales)
}
