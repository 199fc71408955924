package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fjod/marketplace/internal/domain"
	"github.com/fjod/marketplace/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type CartServiceMock struct {
	m        sync.RWMutex
	cart     *domain.Cart
	carts    []*domain.Cart
	result   *service.CheckoutResult
	err      error
	lastCall string
	lastUser string
	lastPage domain.Page

	lastChanges service.CartChanges
}

func (c *CartServiceMock) record(call, user string) {
	c.m.Lock()
	defer c.m.Unlock()
	c.lastCall = call
	c.lastUser = user
}

func (c *CartServiceMock) CreateCart(_ context.Context, buyerID string, _ []domain.CartItem) (*domain.Cart, error) {
	c.record("CreateCart", buyerID)
	return c.cart, c.err
}

func (c *CartServiceMock) Checkout(_ context.Context, buyerID string, _ []domain.CartItem) (*service.CheckoutResult, error) {
	c.record("Checkout", buyerID)
	return c.result, c.err
}

func (c *CartServiceMock) ValidateCart(_ context.Context, buyerID, _ string) (*service.CheckoutResult, error) {
	c.record("ValidateCart", buyerID)
	return c.result, c.err
}

func (c *CartServiceMock) GetCart(context.Context, string) (*domain.Cart, error) {
	c.record("GetCart", "")
	return c.cart, c.err
}

func (c *CartServiceMock) GetCartByTransaction(context.Context, string) (*domain.Cart, error) {
	c.record("GetCartByTransaction", "")
	return c.cart, c.err
}

func (c *CartServiceMock) GetPendingCart(_ context.Context, buyerID string) (*domain.Cart, error) {
	c.record("GetPendingCart", buyerID)
	return c.cart, c.err
}

func (c *CartServiceMock) ListCarts(_ context.Context, buyerID string, page domain.Page) ([]*domain.Cart, domain.Pagination, error) {
	c.record("ListCarts", buyerID)
	c.m.Lock()
	c.lastPage = page
	c.m.Unlock()
	return c.carts, domain.NewPagination(page, int64(len(c.carts))), c.err
}

func (c *CartServiceMock) UpdateCart(_ context.Context, buyerID, _ string, changes service.CartChanges) (*domain.Cart, error) {
	c.record("UpdateCart", buyerID)
	c.m.Lock()
	c.lastChanges = changes
	c.m.Unlock()
	return c.cart, c.err
}

func (c *CartServiceMock) changes() service.CartChanges {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.lastChanges
}

func (c *CartServiceMock) DeleteCart(_ context.Context, buyerID, _ string) error {
	c.record("DeleteCart", buyerID)
	return c.err
}

func (c *CartServiceMock) called() (string, string) {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.lastCall, c.lastUser
}

type OrderServiceMock struct {
	m        sync.RWMutex
	order    *domain.Order
	orders   []*domain.Order
	sales    []domain.MonthlySales
	err      error
	lastYear int
}

func (o *OrderServiceMock) GetOrder(context.Context, string) (*domain.Order, error) {
	return o.order, o.err
}

func (o *OrderServiceMock) ListByTransaction(context.Context, string) ([]*domain.Order, error) {
	return o.orders, o.err
}

func (o *OrderServiceMock) ListByShop(_ context.Context, _ string, page domain.Page) ([]*domain.Order, domain.Pagination, error) {
	return o.orders, domain.NewPagination(page, int64(len(o.orders))), o.err
}

func (o *OrderServiceMock) SalesByMonth(_ context.Context, _ string, year int) ([]domain.MonthlySales, error) {
	o.m.Lock()
	o.lastYear = year
	o.m.Unlock()
	return o.sales, o.err
}

type WalletServiceMock struct {
	m       sync.RWMutex
	account *domain.Account
	tx      *domain.Transaction
	txs     []*domain.Transaction
	err     error
	amount  float64
}

func (s *WalletServiceMock) Balance(context.Context, string) (*domain.Account, error) {
	return s.account, s.err
}

func (s *WalletServiceMock) ListTransactions(_ context.Context, _ string, page domain.Page) ([]*domain.Transaction, domain.Pagination, error) {
	return s.txs, domain.NewPagination(page, int64(len(s.txs))), s.err
}

func (s *WalletServiceMock) Recharge(_ context.Context, _ string, amount float64) (*domain.Transaction, error) {
	s.m.Lock()
	s.amount = amount
	s.m.Unlock()
	return s.tx, s.err
}

func (s *WalletServiceMock) PayRent(_ context.Context, _, _, _ string, amount float64) (*domain.Transaction, error) {
	s.m.Lock()
	s.amount = amount
	s.m.Unlock()
	return s.tx, s.err
}

type StockServiceMock struct {
	movements []*domain.StockMovement
	err       error
}

func (s *StockServiceMock) ListMovements(context.Context, string) ([]*domain.StockMovement, error) {
	return s.movements, s.err
}

// envelope mirrors Response with raw data for assertions.
type envelope struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Data       json.RawMessage    `json:"data"`
	Pagination *domain.Pagination `json:"pagination"`
}

func decodeEnvelope(t *testing.T, body io.Reader) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

// newRequest builds an authenticated request carrying chi URL params.
func newRequest(method, target, userID string, body any, params map[string]string) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)

	ctx := req.Context()
	if userID != "" {
		ctx = WithUserID(ctx, userID)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}
