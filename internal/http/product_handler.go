package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/marketplace/internal/domain"
	"github.com/go-chi/chi/v5"
)

type StockService interface {
	ListMovements(ctx context.Context, productID string) ([]*domain.StockMovement, error)
}

type ProductHandler struct {
	stock   StockService
	timeout time.Duration
}

func NewProductHandler(stock StockService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		stock:   stock,
		timeout: timeout,
	}
}

// GET /api/v1/products/{id}/movements
func (h *ProductHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	movements, err := h.stock.ListMovements(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if movements == nil {
		movements = []*domain.StockMovement{}
	}
	respondData(w, http.StatusOK, "", movements)
}
