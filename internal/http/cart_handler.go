package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/marketplace/internal/domain"
	"github.com/fjod/marketplace/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	CreateCart(ctx context.Context, buyerID string, items []domain.CartItem) (*domain.Cart, error)
	Checkout(ctx context.Context, buyerID string, items []domain.CartItem) (*service.CheckoutResult, error)
	ValidateCart(ctx context.Context, buyerID, cartID string) (*service.CheckoutResult, error)
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	GetCartByTransaction(ctx context.Context, transactionID string) (*domain.Cart, error)
	GetPendingCart(ctx context.Context, buyerID string) (*domain.Cart, error)
	ListCarts(ctx context.Context, buyerID string, page domain.Page) ([]*domain.Cart, domain.Pagination, error)
	UpdateCart(ctx context.Context, buyerID, cartID string, changes service.CartChanges) (*domain.Cart, error)
	DeleteCart(ctx context.Context, buyerID, cartID string) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type CreateCartRequestDTO struct {
	Items []domain.CartItem `json:"items"`
	State domain.CartState  `json:"state,omitempty"`
}

// UpdateCartRequestDTO is a partial update, absent fields are left as stored.
type UpdateCartRequestDTO struct {
	Items []domain.CartItem `json:"items,omitempty"`
	State domain.CartState  `json:"state,omitempty"`
}

// POST /api/v1/carts
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	var req CreateCartRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}

	switch req.State {
	case "", domain.CartStatePending:
		cart, err := h.carts.CreateCart(ctx, userID, req.Items)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondData(w, http.StatusCreated, "cart created", cart)
	case domain.CartStateValidated:
		result, err := h.carts.Checkout(ctx, userID, req.Items)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondData(w, http.StatusCreated, "cart validated", result)
	default:
		respondError(w, http.StatusBadRequest, "state must be PENDING or VALIDATED", map[string]string{"field": "state"})
	}
}

// PATCH /api/v1/carts/{id}/validate
func (h *CartHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	result, err := h.carts.ValidateCart(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "cart validated", result)
}

// GET /api/v1/carts/{id}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	cart, err := h.carts.GetCart(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if cart.BuyerID != userID {
		handleServiceError(w, r, service.ErrCartNotFound)
		return
	}
	respondData(w, http.StatusOK, "", cart)
}

// GET /api/v1/carts/transaction/{transactionId}
func (h *CartHandler) GetCartByTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	cart, err := h.carts.GetCartByTransaction(ctx, chi.URLParam(r, "transactionId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if cart.BuyerID != userID {
		handleServiceError(w, r, service.ErrCartNotFound)
		return
	}
	respondData(w, http.StatusOK, "", cart)
}

// GET /api/v1/carts/pending
func (h *CartHandler) GetPendingCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	cart, err := h.carts.GetPendingCart(ctx, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", cart)
}

// GET /api/v1/carts/mine
func (h *CartHandler) ListCarts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	carts, pagination, err := h.carts.ListCarts(ctx, userID, parsePage(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if carts == nil {
		carts = []*domain.Cart{}
	}
	respondPage(w, carts, pagination)
}

// PUT /api/v1/carts/{id}
func (h *CartHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	var req UpdateCartRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}

	cart, err := h.carts.UpdateCart(ctx, userID, chi.URLParam(r, "id"), service.CartChanges{
		Items: req.Items,
		State: req.State,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "cart updated", cart)
}

// DELETE /api/v1/carts/{id}
func (h *CartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	if err := h.carts.DeleteCart(ctx, userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "cart deleted", nil)
}
