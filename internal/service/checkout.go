package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/marketplace/internal/domain"
	"github.com/fjod/marketplace/internal/logging"
	"github.com/fjod/marketplace/internal/metrics"
	"github.com/fjod/marketplace/internal/publisher"
	"github.com/fjod/marketplace/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	flowCreate   = "create"
	flowValidate = "validate"
)

// CheckoutResult is everything a successful checkout wrote.
type CheckoutResult struct {
	Cart        *domain.Cart        `json:"cart"`
	Transaction *domain.Transaction `json:"transaction"`
	Orders      []*domain.Order     `json:"orders"`
}

// writeStep is a cart write of the checkout together with its compensation.
type writeStep struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

type checkoutLine struct {
	item     domain.CartItem
	product  *domain.Product
	movement *domain.StockMovement
}

// checkoutPlan holds every record of the write phase with its id already issued,
// so nothing in the write phase or its rollback needs the id generator.
type checkoutPlan struct {
	cart   *domain.Cart
	tx     *domain.Transaction
	lines  []checkoutLine
	orders []*domain.Order
}

// Checkout creates a cart directly in VALIDATED state: the buyer is charged, stock is
// consumed and one order per shop is created. Either every effect is kept or, after
// a failure, every completed effect is undone before the error is returned.
func (s *CartService) Checkout(ctx context.Context, buyerID string, items []domain.CartItem) (*CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "CartService.Checkout")
	defer span.End()
	span.SetAttributes(attribute.String("buyer.id", buyerID), attribute.Int("cart.lines", len(items)))
	start := time.Now()

	if err := validateItems(items); err != nil {
		return nil, s.rejected(ctx, flowCreate, start, err)
	}
	if err := s.ensureNoPendingCart(ctx, buyerID); err != nil {
		return nil, s.rejected(ctx, flowCreate, start, err)
	}

	total := domain.TotalAmount(items)
	buyer, products, err := s.precheck(ctx, buyerID, items, total)
	if err != nil {
		return nil, s.rejected(ctx, flowCreate, start, err)
	}

	cartID, err := s.ids.Next(ctx, domain.PrefixCart)
	if err != nil {
		return nil, s.rejected(ctx, flowCreate, start, err)
	}
	cart := &domain.Cart{
		ID:          cartID,
		BuyerID:     buyerID,
		Items:       withShopSnapshots(items, products),
		TotalAmount: total,
		State:       domain.CartStateValidated,
	}

	plan, err := s.plan(ctx, buyer, cart, products)
	if err != nil {
		return nil, s.rejected(ctx, flowCreate, start, err)
	}

	return s.commit(ctx, flowCreate, start, plan, writeStep{
		name: "create_cart",
		do:   func(ctx context.Context) error { return s.carts.CreateCart(ctx, cart) },
		undo: func(ctx context.Context) error { return s.carts.DeleteCart(ctx, cart.ID) },
	})
}

// ValidateCart moves a PENDING cart to VALIDATED with the same effects as Checkout.
func (s *CartService) ValidateCart(ctx context.Context, buyerID, cartID string) (*CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "CartService.ValidateCart")
	defer span.End()
	span.SetAttributes(attribute.String("buyer.id", buyerID), attribute.String("cart.id", cartID))
	start := time.Now()

	cart, err := s.ownedCart(ctx, buyerID, cartID)
	if err != nil {
		return nil, s.rejected(ctx, flowValidate, start, err)
	}
	if !cart.IsPending() {
		return nil, s.rejected(ctx, flowValidate, start, ErrCartAlreadyValidated)
	}
	storedItems, storedTotal := cart.Items, cart.TotalAmount
	// the stored total may predate a price edit, recompute it from the lines
	cart.TotalAmount = domain.TotalAmount(cart.Items)

	buyer, products, err := s.precheck(ctx, buyerID, cart.Items, cart.TotalAmount)
	if err != nil {
		return nil, s.rejected(ctx, flowValidate, start, err)
	}
	cart.Items = withShopSnapshots(cart.Items, products)

	plan, err := s.plan(ctx, buyer, cart, products)
	if err != nil {
		return nil, s.rejected(ctx, flowValidate, start, err)
	}

	result, err := s.commit(ctx, flowValidate, start, plan,
		writeStep{
			name: "snapshot_items",
			do: func(ctx context.Context) error {
				return s.carts.UpdatePendingItems(ctx, cart.ID, cart.Items, cart.TotalAmount)
			},
			undo: func(ctx context.Context) error {
				return s.carts.UpdatePendingItems(ctx, cart.ID, storedItems, storedTotal)
			},
		},
		writeStep{
			name: "validate_cart",
			do: func(ctx context.Context) error {
				if err := s.carts.TransitionState(ctx, cart.ID, domain.CartStatePending, domain.CartStateValidated); err != nil {
					return err
				}
				cart.State = domain.CartStateValidated
				return nil
			},
			undo: func(ctx context.Context) error {
				return s.carts.TransitionState(ctx, cart.ID, domain.CartStateValidated, domain.CartStatePending)
			},
		})
	s.invalidateCache(cart.ID)
	return result, err
}

// precheck is read-only: it loads the buyer and every product and rejects the
// checkout before anything is written.
func (s *CartService) precheck(ctx context.Context, buyerID string, items []domain.CartItem, total float64) (*domain.Account, []*domain.Product, error) {
	buyer, err := s.accounts.GetAccount(ctx, buyerID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, fmt.Errorf("failed to load account: %w", err)
	}
	if buyer.Balance < total {
		return nil, nil, &InsufficientFundsError{AccountID: buyerID, Balance: buyer.Balance, Required: total}
	}

	products := make([]*domain.Product, len(items))
	loaded := make(map[string]*domain.Product, len(items))
	for i, item := range items {
		product, ok := loaded[item.ProductID]
		if !ok {
			product, err = s.products.GetProduct(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, repository.ErrProductNotFound) {
					return nil, nil, &ItemNotFoundError{ProductID: item.ProductID}
				}
				return nil, nil, fmt.Errorf("failed to load product: %w", err)
			}
			loaded[item.ProductID] = product
		}
		products[i] = product
	}

	// a product listed on several lines is checked against the sum of its lines
	requested := requestedByProduct(items)
	for i, item := range items {
		if product := products[i]; product.Stock < requested[item.ProductID] {
			return nil, nil, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Stock,
				Requested: requested[item.ProductID],
			}
		}
	}

	return buyer, products, nil
}

func requestedByProduct(items []domain.CartItem) map[string]int {
	requested := make(map[string]int, len(items))
	for _, item := range items {
		requested[item.ProductID] += item.Quantity
	}
	return requested
}

// plan issues every id the write phase needs and splits the lines into one order per shop,
// keeping shops in the order they first appear in the cart.
func (s *CartService) plan(ctx context.Context, buyer *domain.Account, cart *domain.Cart, products []*domain.Product) (*checkoutPlan, error) {
	txID, err := s.ids.Next(ctx, domain.PrefixTransaction)
	if err != nil {
		return nil, err
	}

	p := &checkoutPlan{
		cart: cart,
		tx: &domain.Transaction{
			ID:        txID,
			Kind:      domain.TransactionKindPurchase,
			Amount:    cart.TotalAmount,
			AccountID: buyer.ID,
			CartID:    cart.ID,
		},
		lines: make([]checkoutLine, len(cart.Items)),
	}

	byShop := make(map[string]*domain.Order)
	for i, item := range cart.Items {
		movementID, err := s.ids.Next(ctx, domain.PrefixMovement)
		if err != nil {
			return nil, err
		}
		product := products[i]
		p.lines[i] = checkoutLine{
			item:    item,
			product: product,
			movement: &domain.StockMovement{
				ID:        movementID,
				ProductID: product.ID,
				Quantity:  item.Quantity,
				Reason:    domain.MovementReasonSale,
			},
		}

		order, ok := byShop[product.Shop.ID]
		if !ok {
			order = &domain.Order{
				Buyer:         domain.PartyRef{ID: buyer.ID, Name: buyer.Name},
				Shop:          product.Shop,
				TransactionID: txID,
			}
			byShop[product.Shop.ID] = order
			p.orders = append(p.orders, order)
		}
		name := item.Name
		if name == "" {
			name = product.Name
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: product.ID,
			Name:      name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
		order.TotalAmount += item.Price * float64(item.Quantity)
		order.TotalItems++
	}

	for _, order := range p.orders {
		if order.ID, err = s.ids.Next(ctx, domain.PrefixOrder); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// commit runs the write phase. It is detached from the caller's cancellation: once the
// first write has happened the checkout either completes or is compensated.
func (s *CartService) commit(
	ctx context.Context,
	flow string,
	start time.Time,
	p *checkoutPlan,
	persist ...writeStep,
) (*CheckoutResult, error) {
	ctx = context.WithoutCancel(ctx)
	j := newJournal(flow, s.metrics)

	err := s.writeAll(ctx, j, p, persist)
	if err != nil {
		j.rollback(ctx)
		err = s.explainWriteError(ctx, p, err)
		s.metrics.ObserveCheckout(flow, metrics.OutcomeRolledBack, time.Since(start))
		s.markSpan(ctx, err)
		return nil, err
	}

	s.metrics.ObserveCheckout(flow, metrics.OutcomeSuccess, time.Since(start))
	logging.FromContext(ctx).Info("cart validated",
		zap.String("flow", flow),
		zap.String("cart_id", p.cart.ID),
		zap.String("transaction_id", p.tx.ID),
		zap.Int("orders", len(p.orders)),
		zap.Float64("total", p.cart.TotalAmount))

	result := &CheckoutResult{Cart: p.cart, Transaction: p.tx, Orders: p.orders}
	go s.publishValidated(logging.FromContext(ctx), result)
	return result, nil
}

func (s *CartService) writeAll(
	ctx context.Context,
	j *journal,
	p *checkoutPlan,
	persist []writeStep,
) error {
	for _, step := range persist {
		if err := j.run(ctx, step.name, step.do, step.undo); err != nil {
			return err
		}
	}

	err := j.run(ctx, "append_transaction",
		func(ctx context.Context) error { return s.transactions.CreateTransaction(ctx, p.tx) },
		func(ctx context.Context) error { return s.transactions.DeleteTransaction(ctx, p.tx.ID) })
	if err != nil {
		return err
	}

	err = j.run(ctx, "debit_wallet",
		func(ctx context.Context) error { return s.accounts.Debit(ctx, p.tx.AccountID, p.tx.Amount) },
		func(ctx context.Context) error { return s.accounts.Credit(ctx, p.tx.AccountID, p.tx.Amount) })
	if err != nil {
		return err
	}

	for _, line := range p.lines {
		movement := line.movement
		err = j.run(ctx, "record_movement",
			func(ctx context.Context) error { return s.movements.CreateMovement(ctx, movement) },
			func(ctx context.Context) error { return s.movements.DeleteMovement(ctx, movement.ID) })
		if err != nil {
			return err
		}

		err = j.run(ctx, "decrement_stock",
			func(ctx context.Context) error {
				return s.products.DecrementStock(ctx, movement.ProductID, movement.Quantity)
			},
			func(ctx context.Context) error {
				return s.products.IncrementStock(ctx, movement.ProductID, movement.Quantity)
			})
		if err != nil {
			return err
		}
	}

	for _, order := range p.orders {
		err = j.run(ctx, "create_order",
			func(ctx context.Context) error { return s.orders.CreateOrder(ctx, order) },
			func(ctx context.Context) error { return s.orders.DeleteOrder(ctx, order.ID) })
		if err != nil {
			return err
		}
	}

	return nil
}

// explainWriteError turns a storage refusal from the write phase into the business
// error the caller would have got from the precheck. It runs after the rollback, so
// re-read quantities reflect the restored state.
func (s *CartService) explainWriteError(ctx context.Context, p *checkoutPlan, err error) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientBalance):
		fundsErr := &InsufficientFundsError{AccountID: p.tx.AccountID, Required: p.tx.Amount}
		if account, errGet := s.accounts.GetAccount(ctx, p.tx.AccountID); errGet == nil {
			fundsErr.Balance = account.Balance
		}
		return fundsErr
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repository.ErrInsufficientStock):
		requested := requestedByProduct(p.cart.Items)
		for _, line := range p.lines {
			product, errGet := s.products.GetProduct(ctx, line.product.ID)
			if errGet != nil || product.Stock >= requested[line.product.ID] {
				continue
			}
			return &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Stock,
				Requested: requested[line.product.ID],
			}
		}
		return ErrInsufficientStock
	case errors.Is(err, repository.ErrProductNotFound):
		for _, line := range p.lines {
			if _, errGet := s.products.GetProduct(ctx, line.product.ID); errors.Is(errGet, repository.ErrProductNotFound) {
				return &ItemNotFoundError{ProductID: line.product.ID}
			}
		}
		return ErrItemNotFound
	case errors.Is(err, repository.ErrPendingCartExists):
		return s.pendingCartConflict(ctx, p.cart.BuyerID)
	case errors.Is(err, repository.ErrCartStateConflict):
		return ErrCartAlreadyValidated
	case errors.Is(err, repository.ErrCartNotFound):
		return ErrCartNotFound
	default:
		return fmt.Errorf("checkout failed: %w", err)
	}
}

// rejected records a checkout that stopped before its first write. Business refusals
// and infrastructure failures are counted under different outcomes.
func (s *CartService) rejected(ctx context.Context, flow string, start time.Time, err error) error {
	logger := logging.FromContext(ctx)
	if isBusinessError(err) {
		s.metrics.ObserveCheckout(flow, metrics.OutcomeRejected, time.Since(start))
		logger.Info("checkout rejected", zap.String("flow", flow), zap.Error(err))
	} else {
		s.metrics.ObserveCheckout(flow, metrics.OutcomeError, time.Since(start))
		logger.Error("checkout failed", zap.String("flow", flow), zap.Error(err))
	}
	s.markSpan(ctx, err)
	return err
}

func (s *CartService) markSpan(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (s *CartService) publishValidated(logger *zap.Logger, result *CheckoutResult) {
	orderIDs := make([]string, len(result.Orders))
	for i, o := range result.Orders {
		orderIDs[i] = o.ID
	}
	payload := map[string]any{
		"cart_id":        result.Cart.ID,
		"buyer_id":       result.Cart.BuyerID,
		"transaction_id": result.Transaction.ID,
		"total_amount":   result.Transaction.Amount,
		"order_ids":      orderIDs,
	}

	err := s.events.Publish(context.Background(), publisher.EventCartValidated, result.Cart.ID, payload)
	if err != nil {
		logger.Warn("failed to publish checkout event", zap.String("cart_id", result.Cart.ID), zap.Error(err))
	}
}

// withShopSnapshots stamps every line with the shop of its product, the same shop
// its order is created for. A snapshot sent by the client is replaced.
func withShopSnapshots(items []domain.CartItem, products []*domain.Product) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	for i, item := range items {
		shop := products[i].Shop
		item.Shop = &shop
		out[i] = item
	}
	return out
}
