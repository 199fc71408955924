package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrDuplicatePendingCart = errors.New("buyer already has a pending cart")
	ErrAccountNotFound      = errors.New("account not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrCartNotFound         = errors.New("cart not found")
	ErrCartAlreadyValidated = errors.New("cart already validated")
	ErrDuplicatePeriod      = errors.New("rent already paid for this period")
	ErrOrderNotFound        = errors.New("order not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type DuplicatePendingCartError struct {
	CartID string
}

func (e *DuplicatePendingCartError) Error() string {
	return fmt.Sprintf("buyer already has a pending cart %s", e.CartID)
}

func (e *DuplicatePendingCartError) Unwrap() error { return ErrDuplicatePendingCart }

type ItemNotFoundError struct {
	ProductID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ItemNotFoundError) Unwrap() error { return ErrItemNotFound }

type InsufficientFundsError struct {
	AccountID string
	Balance   float64
	Required  float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %.2f, required %.2f", e.Balance, e.Required)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): available %d, requested %d",
		e.Name, e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

var businessErrors = []error{
	ErrValidation,
	ErrDuplicatePendingCart,
	ErrAccountNotFound,
	ErrItemNotFound,
	ErrInsufficientFunds,
	ErrInsufficientStock,
	ErrCartNotFound,
	ErrCartAlreadyValidated,
	ErrDuplicatePeriod,
	ErrOrderNotFound,
	ErrTransactionNotFound,
}

// isBusinessError reports whether err is a refusal of the request rather than a
// failure of the service or its stores.
func isBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
