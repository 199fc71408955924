package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/marketplace/internal/domain"
	"github.com/fjod/marketplace/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalance(t *testing.T) {
	mock := &WalletServiceMock{account: &domain.Account{ID: "u1", Balance: 42}}
	handler := NewWalletHandler(mock, 5*time.Second)
	recorder := httptest.NewRecorder()

	handler.Balance(recorder, newRequest(http.MethodGet, "/api/v1/wallet", "u1", nil, nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	env := decodeEnvelope(t, recorder.Body)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"balance":42`)
}

func TestRecharge(t *testing.T) {
	mock := &WalletServiceMock{tx: &domain.Transaction{ID: "TRX-00001", Kind: domain.TransactionKindRecharge, Amount: 30}}
	handler := NewWalletHandler(mock, 5*time.Second)
	recorder := httptest.NewRecorder()

	handler.Recharge(recorder, newRequest(http.MethodPost, "/api/v1/wallet/recharge", "u1", RechargeRequestDTO{Amount: 30}, nil))

	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, 30.0, mock.amount)
}

func TestRecharge_Invalid(t *testing.T) {
	mock := &WalletServiceMock{err: &service.ValidationError{Field: "amount", Reason: "must be positive"}}
	handler := NewWalletHandler(mock, 5*time.Second)
	recorder := httptest.NewRecorder()

	handler.Recharge(recorder, newRequest(http.MethodPost, "/", "u1", RechargeRequestDTO{Amount: -1}, nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPayRent_DuplicatePeriod(t *testing.T) {
	handler := NewWalletHandler(&WalletServiceMock{err: service.ErrDuplicatePeriod}, 5*time.Second)
	recorder := httptest.NewRecorder()

	body := PayRentRequestDTO{RentID: "rent-1", Period: "2026-03", Amount: 40}
	handler.PayRent(recorder, newRequest(http.MethodPost, "/", "u1", body, nil))

	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestListTransactions(t *testing.T) {
	mock := &WalletServiceMock{txs: []*domain.Transaction{{ID: "TRX-00002"}, {ID: "TRX-00001"}}}
	handler := NewWalletHandler(mock, 5*time.Second)
	recorder := httptest.NewRecorder()

	handler.ListTransactions(recorder, newRequest(http.MethodGet, "/api/v1/wallet/transactions", "u1", nil, nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	env := decodeEnvelope(t, recorder.Body)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(2), env.Pagination.Total)
}

func TestWallet_Unauthorized(t *testing.T) {
	handler := NewWalletHandler(&WalletServiceMock{}, 5*time.Second)
	recorder := httptest.NewRecorder()

	handler.Balance(recorder, newRequest(http.MethodGet, "/api/v1/wallet", "", nil, nil))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
