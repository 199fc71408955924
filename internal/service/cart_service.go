package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/marketplace/internal/cache"
	"github.com/fjod/marketplace/internal/domain"
	"github.com/fjod/marketplace/internal/logging"
	"github.com/fjod/marketplace/internal/metrics"
	"github.com/fjod/marketplace/internal/publisher"
	"github.com/fjod/marketplace/internal/repository"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("github.com/fjod/marketplace/internal/service")

type IDGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// Stores are the ledgers the cart lifecycle coordinates.
type Stores struct {
	Carts        repository.CartRepository
	Accounts     repository.AccountRepository
	Products     repository.ProductRepository
	Movements    repository.MovementRepository
	Transactions repository.TransactionRepository
	Orders       repository.OrderRepository
}

type CartService struct {
	carts        repository.CartRepository
	accounts     repository.AccountRepository
	products     repository.ProductRepository
	movements    repository.MovementRepository
	transactions repository.TransactionRepository
	orders       repository.OrderRepository
	ids          IDGenerator
	cache        cache.CartCache
	events       publisher.Publisher
	metrics      *metrics.Metrics
	sfg          singleflight.Group // Prevents cache stampede
}

func NewCartService(stores Stores, ids IDGenerator, cartCache cache.CartCache, events publisher.Publisher, m *metrics.Metrics) *CartService {
	if events == nil {
		events = publisher.NopPublisher{}
	}
	return &CartService{
		carts:        stores.Carts,
		accounts:     stores.Accounts,
		products:     stores.Products,
		movements:    stores.Movements,
		transactions: stores.Transactions,
		orders:       stores.Orders,
		ids:          ids,
		cache:        cartCache,
		events:       events,
		metrics:      m,
	}
}

// CreateCart stores a new PENDING cart. It has no effect on wallets, stock or orders.
func (s *CartService) CreateCart(ctx context.Context, buyerID string, items []domain.CartItem) (*domain.Cart, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := s.ensureNoPendingCart(ctx, buyerID); err != nil {
		return nil, err
	}

	id, err := s.ids.Next(ctx, domain.PrefixCart)
	if err != nil {
		return nil, err
	}

	cart := &domain.Cart{
		ID:          id,
		BuyerID:     buyerID,
		Items:       items,
		TotalAmount: domain.TotalAmount(items),
		State:       domain.CartStatePending,
	}

	if err := s.carts.CreateCart(ctx, cart); err != nil {
		if errors.Is(err, repository.ErrPendingCartExists) {
			// lost the race against a concurrent create for the same buyer
			return nil, s.pendingCartConflict(ctx, buyerID)
		}
		return nil, err
	}

	logging.FromContext(ctx).Info("cart created",
		zap.String("cart_id", cart.ID),
		zap.String("buyer_id", buyerID),
		zap.Float64("total", cart.TotalAmount))
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(cartID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, cartID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logging.FromContext(ctx).Warn("cache get error", zap.String("cart_id", cartID), zap.Error(err))
		}

		cart, err = s.carts.GetCart(ctx, cartID)
		if err != nil {
			return nil, mapCartError(err)
		}

		go func(c *domain.Cart) {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, c); errSet != nil {
				logging.FromContext(ctx).Warn("cache set error", zap.String("cart_id", c.ID), zap.Error(errSet))
			}
		}(cart)

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) GetCartByTransaction(ctx context.Context, transactionID string) (*domain.Cart, error) {
	tx, err := s.transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if tx.CartID == "" {
		return nil, ErrCartNotFound
	}
	return s.GetCart(ctx, tx.CartID)
}

func (s *CartService) GetPendingCart(ctx context.Context, buyerID string) (*domain.Cart, error) {
	cart, err := s.carts.GetPendingCart(ctx, buyerID)
	if err != nil {
		return nil, mapCartError(err)
	}
	return cart, nil
}

func (s *CartService) ListCarts(ctx context.Context, buyerID string, page domain.Page) ([]*domain.Cart, domain.Pagination, error) {
	carts, total, err := s.carts.ListByBuyer(ctx, buyerID, page)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return carts, domain.NewPagination(page, total), nil
}

// CartChanges is a partial edit of a PENDING cart. Nil Items keeps the stored lines,
// an empty State keeps the current state.
type CartChanges struct {
	Items []domain.CartItem
	State domain.CartState
}

// UpdateCart edits a PENDING cart. New items replace the stored ones and the total is
// recomputed. State VALIDATED then validates the cart with every checkout effect.
func (s *CartService) UpdateCart(ctx context.Context, buyerID, cartID string, changes CartChanges) (*domain.Cart, error) {
	if changes.Items != nil {
		if err := validateItems(changes.Items); err != nil {
			return nil, err
		}
	}
	if changes.State != "" && !changes.State.IsValid() {
		return nil, &ValidationError{Field: "state", Reason: "must be PENDING or VALIDATED"}
	}

	cart, err := s.ownedCart(ctx, buyerID, cartID)
	if err != nil {
		return nil, err
	}
	if !cart.IsPending() {
		return nil, ErrCartAlreadyValidated
	}

	if changes.Items != nil {
		total := domain.TotalAmount(changes.Items)
		if err := s.carts.UpdatePendingItems(ctx, cartID, changes.Items, total); err != nil {
			return nil, mapCartError(err)
		}
		s.invalidateCache(cartID)

		cart.Items = changes.Items
		cart.TotalAmount = total
		cart.UpdatedAt = time.Now()
	}

	if changes.State == domain.CartStateValidated {
		result, err := s.ValidateCart(ctx, buyerID, cartID)
		if err != nil {
			return nil, err
		}
		return result.Cart, nil
	}
	return cart, nil
}

// DeleteCart removes a PENDING cart. Validated carts are referenced by orders and
// transactions and cannot be deleted.
func (s *CartService) DeleteCart(ctx context.Context, buyerID, cartID string) error {
	cart, err := s.ownedCart(ctx, buyerID, cartID)
	if err != nil {
		return err
	}
	if !cart.IsPending() {
		return ErrCartAlreadyValidated
	}

	if err := s.carts.DeletePendingCart(ctx, cartID); err != nil {
		return mapCartError(err)
	}
	s.invalidateCache(cartID)

	logging.FromContext(ctx).Info("cart deleted", zap.String("cart_id", cartID))
	return nil
}

// ownedCart loads the cart from the store, hiding carts of other buyers.
func (s *CartService) ownedCart(ctx context.Context, buyerID, cartID string) (*domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, cartID)
	if err != nil {
		return nil, mapCartError(err)
	}
	if cart.BuyerID != buyerID {
		return nil, ErrCartNotFound
	}
	return cart, nil
}

func (s *CartService) ensureNoPendingCart(ctx context.Context, buyerID string) error {
	existing, err := s.carts.GetPendingCart(ctx, buyerID)
	if err == nil {
		return &DuplicatePendingCartError{CartID: existing.ID}
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return fmt.Errorf("failed to check pending cart: %w", err)
	}
	return nil
}

func (s *CartService) pendingCartConflict(ctx context.Context, buyerID string) error {
	existing, err := s.carts.GetPendingCart(ctx, buyerID)
	if err != nil {
		return ErrDuplicatePendingCart
	}
	return &DuplicatePendingCartError{CartID: existing.ID}
}

func (s *CartService) invalidateCache(cartID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, cartID); err != nil {
		zap.L().Warn("cache invalidate error", zap.String("cart_id", cartID), zap.Error(err))
	}
}

func validateItems(items []domain.CartItem) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "must contain at least one item"}
	}
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case item.ProductID == "":
			return &ValidationError{Field: field + ".product_id", Reason: "is required"}
		case item.Quantity < 1:
			return &ValidationError{Field: field + ".quantity", Reason: "must be at least 1"}
		case item.Price < 0:
			return &ValidationError{Field: field + ".price", Reason: "must not be negative"}
		}
	}
	return nil
}

func mapCartError(err error) error {
	switch {
	case errors.Is(err, repository.ErrCartNotFound):
		return ErrCartNotFound
	case errors.Is(err, repository.ErrCartStateConflict):
		return ErrCartAlreadyValidated
	default:
		return err
	}
}
