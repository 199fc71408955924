package repository

import (
	"context"
	"errors"

	"github.com/fjod/marketplace/internal/domain"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrMovementNotFound    = errors.New("stock movement not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicatePeriod     = errors.New("rent already paid for this period")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidOrder        = errors.New("invalid order totals")
	ErrCartNotFound        = errors.New("cart not found")
	ErrPendingCartExists   = errors.New("buyer already has a pending cart")
	ErrCartStateConflict   = errors.New("cart is not in the expected state")
)

// Consumers depend on these interfaces, not on the MongoDB implementations.

// AccountRepository is the wallet ledger.
type AccountRepository interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	// Debit fails with ErrInsufficientBalance instead of going below zero.
	Debit(ctx context.Context, id string, amount float64) error
	Credit(ctx context.Context, id string, amount float64) error
}

// ProductRepository is the stock side of the stock ledger.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	// DecrementStock fails with ErrInsufficientStock instead of going below zero.
	DecrementStock(ctx context.Context, id string, quantity int) error
	IncrementStock(ctx context.Context, id string, quantity int) error
}

type MovementRepository interface {
	CreateMovement(ctx context.Context, movement *domain.StockMovement) error
	DeleteMovement(ctx context.Context, id string) error
	ListMovements(ctx context.Context, productID string) ([]*domain.StockMovement, error)
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, page domain.Page) ([]*domain.Transaction, int64, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	DeleteOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Order, error)
	ListByShop(ctx context.Context, shopID string, page domain.Page) ([]*domain.Order, int64, error)
	SalesByMonth(ctx context.Context, shopID string, year int) ([]domain.MonthlySales, error)
}

type CartRepository interface {
	// CreateCart fails with ErrPendingCartExists when the buyer already owns a pending cart.
	CreateCart(ctx context.Context, cart *domain.Cart) error
	GetCart(ctx context.Context, id string) (*domain.Cart, error)
	GetPendingCart(ctx context.Context, buyerID string) (*domain.Cart, error)
	ListByBuyer(ctx context.Context, buyerID string, page domain.Page) ([]*domain.Cart, int64, error)
	// UpdatePendingItems only touches carts still in PENDING state.
	UpdatePendingItems(ctx context.Context, id string, items []domain.CartItem, total float64) error
	// TransitionState moves the cart from one state to another, ErrCartStateConflict if it is not in from.
	TransitionState(ctx context.Context, id string, from, to domain.CartState) error
	DeletePendingCart(ctx context.Context, id string) error
	// DeleteCart removes the cart whatever its state. Compensation only.
	DeleteCart(ctx context.Context, id string) error
}
