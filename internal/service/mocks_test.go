package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fjod/marketplace/internal/cache"
	"github.com/fjod/marketplace/internal/domain"
	"github.com/fjod/marketplace/internal/metrics"
	"github.com/fjod/marketplace/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

type mockAccounts struct {
	m         sync.RWMutex
	accounts  map[string]*domain.Account
	getErr    error
	debitErr  error
	creditErr error
}

func (m *mockAccounts) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccounts) Debit(_ context.Context, id string, amount float64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.debitErr != nil {
		return m.debitErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	if a.Balance < amount {
		return repository.ErrInsufficientBalance
	}
	a.Balance -= amount
	return nil
}

func (m *mockAccounts) Credit(_ context.Context, id string, amount float64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.creditErr != nil {
		return m.creditErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.Balance += amount
	return nil
}

func (m *mockAccounts) balance(id string) float64 {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.accounts[id].Balance
}

type mockProducts struct {
	m            sync.RWMutex
	products     map[string]*domain.Product
	decrementErr map[string]error
	incrementErr error
	// concurrentSale is taken from the product by another buyer right before the
	// first decrement.
	concurrentSale int
}

func (m *mockProducts) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProducts) DecrementStock(_ context.Context, id string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if err := m.decrementErr[id]; err != nil {
		return err
	}
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock -= m.concurrentSale
	m.concurrentSale = 0
	if p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (m *mockProducts) IncrementStock(_ context.Context, id string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.incrementErr != nil {
		return m.incrementErr
	}
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += quantity
	return nil
}

func (m *mockProducts) stock(id string) int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.products[id].Stock
}

func (m *mockProducts) remove(id string) {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.products, id)
}

type mockMovements struct {
	m         sync.RWMutex
	movements map[string]*domain.StockMovement
	createErr error
	deleteErr error
	listErr   error
}

func (m *mockMovements) CreateMovement(_ context.Context, movement *domain.StockMovement) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *movement
	m.movements[movement.ID] = &cp
	return nil
}

func (m *mockMovements) DeleteMovement(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.movements[id]; !ok {
		return repository.ErrMovementNotFound
	}
	delete(m.movements, id)
	return nil
}

func (m *mockMovements) ListMovements(_ context.Context, productID string) ([]*domain.StockMovement, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.StockMovement
	for _, mv := range m.movements {
		if mv.ProductID == productID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *mockMovements) count() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return len(m.movements)
}

type mockTransactions struct {
	m         sync.RWMutex
	txs       map[string]*domain.Transaction
	createErr error
	deleteErr error
}

func (m *mockTransactions) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if tx.Kind == domain.TransactionKindRent {
		for _, existing := range m.txs {
			if existing.Kind == domain.TransactionKindRent && existing.AccountID == tx.AccountID &&
				existing.RentID == tx.RentID && existing.Period == tx.Period {
				return repository.ErrDuplicatePeriod
			}
		}
	}
	cp := *tx
	m.txs[tx.ID] = &cp
	return nil
}

func (m *mockTransactions) DeleteTransaction(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.txs[id]; !ok {
		return repository.ErrTransactionNotFound
	}
	delete(m.txs, id)
	return nil
}

func (m *mockTransactions) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *mockTransactions) ListByAccount(_ context.Context, accountID string, page domain.Page) ([]*domain.Transaction, int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var all []*domain.Transaction
	for _, tx := range m.txs {
		if tx.AccountID == accountID {
			all = append(all, tx)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page), int64(len(all)), nil
}

func (m *mockTransactions) count() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return len(m.txs)
}

type mockOrders struct {
	m sync.RWMutex
	orders map[string]*domain.Order
	// failOnCreate makes the n-th CreateOrder call fail, 0 disables it
	failOnCreate int
	creates      int
	sales        []domain.MonthlySales
}

func (m *mockOrders) CreateOrder(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.creates++
	if m.failOnCreate > 0 && m.creates == m.failOnCreate {
		return fmt.Errorf("orders collection unavailable")
	}
	if order.TotalItems < 1 || order.TotalAmount < 0 {
		return repository.ErrInvalidOrder
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrders) DeleteOrder(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *mockOrders) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *mockOrders) ListByTransaction(_ context.Context, transactionID string) ([]*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.TransactionID == transactionID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockOrders) ListByShop(_ context.Context, shopID string, page domain.Page) ([]*domain.Order, int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var all []*domain.Order
	for _, o := range m.orders {
		if o.Shop.ID == shopID {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page), int64(len(all)), nil
}

func (m *mockOrders) SalesByMonth(context.Context, string, int) ([]domain.MonthlySales, error) {
	return m.sales, nil
}

func (m *mockOrders) count() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return len(m.orders)
}

type mockCarts struct {
	m         sync.RWMutex
	carts     map[string]*domain.Cart
	createErr error
}

func (m *mockCarts) CreateCart(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if cart.State == domain.CartStatePending {
		for _, c := range m.carts {
			if c.BuyerID == cart.BuyerID && c.State == domain.CartStatePending {
				return repository.ErrPendingCartExists
			}
		}
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = time.Now()
	}
	cp := *cart
	m.carts[cart.ID] = &cp
	return nil
}

func (m *mockCarts) GetCart(_ context.Context, id string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCarts) GetPendingCart(_ context.Context, buyerID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, c := range m.carts {
		if c.BuyerID == buyerID && c.State == domain.CartStatePending {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockCarts) ListByBuyer(_ context.Context, buyerID string, page domain.Page) ([]*domain.Cart, int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var all []*domain.Cart
	for _, c := range m.carts {
		if c.BuyerID == buyerID {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page), int64(len(all)), nil
}

func (m *mockCarts) UpdatePendingItems(_ context.Context, id string, items []domain.CartItem, total float64) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return repository.ErrCartNotFound
	}
	if c.State != domain.CartStatePending {
		return repository.ErrCartStateConflict
	}
	c.Items = items
	c.TotalAmount = total
	return nil
}

func (m *mockCarts) TransitionState(_ context.Context, id string, from, to domain.CartState) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return repository.ErrCartNotFound
	}
	if c.State != from {
		return repository.ErrCartStateConflict
	}
	c.State = to
	return nil
}

func (m *mockCarts) DeletePendingCart(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return repository.ErrCartNotFound
	}
	if c.State != domain.CartStatePending {
		return repository.ErrCartStateConflict
	}
	delete(m.carts, id)
	return nil
}

func (m *mockCarts) DeleteCart(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.carts[id]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, id)
	return nil
}

func (m *mockCarts) count() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return len(m.carts)
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func (m *mockCache) Get(_ context.Context, cartID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[cartID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[cart.ID] = cart
	return m.err
}

func (m *mockCache) Delete(_ context.Context, cartID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, cartID)
	return m.err
}

func (m *mockCache) has(cartID string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[cartID]
	return ok
}

type mockIDs struct {
	m        sync.Mutex
	counters map[string]int64
	err      error
}

func (m *mockIDs) Next(_ context.Context, prefix string) (string, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.counters[prefix]++
	return fmt.Sprintf("%s-%05d", prefix, m.counters[prefix]), nil
}

type mockPublisher struct {
	m      sync.RWMutex
	events []string
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, eventType, key string, _ any) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, eventType+":"+key)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published() []string {
	m.m.RLock()
	defer m.m.RUnlock()
	return append([]string(nil), m.events...)
}

func paginate[T any](all []T, page domain.Page) []T {
	start := int(page.Skip())
	if start >= len(all) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// fixture wires a CartService over in-memory ledgers.
type fixture struct {
	accounts     *mockAccounts
	products     *mockProducts
	movements    *mockMovements
	transactions *mockTransactions
	orders       *mockOrders
	carts        *mockCarts
	cache        *mockCache
	ids          *mockIDs
	events       *mockPublisher
	service      *CartService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithMetrics(t, nil)
}

// newInstrumentedFixture records checkout metrics on a private registry.
func newInstrumentedFixture(t *testing.T) (*fixture, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return newFixtureWithMetrics(t, m), m
}

func newFixtureWithMetrics(t *testing.T, m *metrics.Metrics) *fixture {
	t.Helper()
	f := &fixture{
		accounts:     &mockAccounts{accounts: map[string]*domain.Account{}},
		products:     &mockProducts{products: map[string]*domain.Product{}, decrementErr: map[string]error{}},
		movements:    &mockMovements{movements: map[string]*domain.StockMovement{}},
		transactions: &mockTransactions{txs: map[string]*domain.Transaction{}},
		orders:       &mockOrders{orders: map[string]*domain.Order{}},
		carts:        &mockCarts{carts: map[string]*domain.Cart{}},
		cache:        &mockCache{carts: map[string]*domain.Cart{}},
		ids:          &mockIDs{counters: map[string]int64{}},
		events:       &mockPublisher{},
	}
	f.service = NewCartService(Stores{
		Carts:        f.carts,
		Accounts:     f.accounts,
		Products:     f.products,
		Movements:    f.movements,
		Transactions: f.transactions,
		Orders:       f.orders,
	}, f.ids, f.cache, f.events, m)
	return f
}

func (f *fixture) addAccount(id string, balance float64) {
	f.accounts.accounts[id] = &domain.Account{ID: id, Name: "Buyer " + id, Role: domain.RoleBuyer, Balance: balance}
}

func (f *fixture) addProduct(id string, price float64, stock int, shopID string) {
	f.products.products[id] = &domain.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: price,
		Stock: stock,
		Shop:  domain.ShopRef{ID: shopID, Name: "Shop " + shopID},
	}
}

type ledgerSnapshot struct {
	balances     map[string]float64
	stocks       map[string]int
	movements    int
	transactions int
	orders       int
	carts        map[string]domain.CartState
}

func (f *fixture) snapshot() ledgerSnapshot {
	s := ledgerSnapshot{
		balances:     map[string]float64{},
		stocks:       map[string]int{},
		movements:    f.movements.count(),
		transactions: f.transactions.count(),
		orders:       f.orders.count(),
		carts:        map[string]domain.CartState{},
	}
	f.accounts.m.RLock()
	for id, a := range f.accounts.accounts {
		s.balances[id] = a.Balance
	}
	f.accounts.m.RUnlock()
	f.products.m.RLock()
	for id, p := range f.products.products {
		s.stocks[id] = p.Stock
	}
	f.products.m.RUnlock()
	f.carts.m.RLock()
	for id, c := range f.carts.carts {
		s.carts[id] = c.State
	}
	f.carts.m.RUnlock()
	return s
}

func line(productID string, price float64, qty int) domain.CartItem {
	return domain.CartItem{ProductID: productID, Name: "Product " + productID, Price: price, Quantity: qty}
}
