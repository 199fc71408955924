package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/marketplace/internal/domain"
)

type WalletService interface {
	Balance(ctx context.Context, accountID string) (*domain.Account, error)
	ListTransactions(ctx context.Context, accountID string, page domain.Page) ([]*domain.Transaction, domain.Pagination, error)
	Recharge(ctx context.Context, accountID string, amount float64) (*domain.Transaction, error)
	PayRent(ctx context.Context, accountID, rentID, period string, amount float64) (*domain.Transaction, error)
}

type WalletHandler struct {
	wallet  WalletService
	timeout time.Duration
}

func NewWalletHandler(wallet WalletService, timeout time.Duration) *WalletHandler {
	return &WalletHandler{
		wallet:  wallet,
		timeout: timeout,
	}
}

type RechargeRequestDTO struct {
	Amount float64 `json:"amount"`
}

type PayRentRequestDTO struct {
	RentID string  `json:"rent_id"`
	Period string  `json:"period"`
	Amount float64 `json:"amount"`
}

// GET /api/v1/wallet
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	account, err := h.wallet.Balance(ctx, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", account)
}

// GET /api/v1/wallet/transactions
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	txs, pagination, err := h.wallet.ListTransactions(ctx, userID, parsePage(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	respondPage(w, txs, pagination)
}

// POST /api/v1/wallet/recharge
func (h *WalletHandler) Recharge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	var req RechargeRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}

	tx, err := h.wallet.Recharge(ctx, userID, req.Amount)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, "wallet recharged", tx)
}

// POST /api/v1/wallet/rent
func (h *WalletHandler) PayRent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", nil)
		return
	}

	var req PayRentRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}

	tx, err := h.wallet.PayRent(ctx, userID, req.RentID, req.Period, req.Amount)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, "rent paid", tx)
}
