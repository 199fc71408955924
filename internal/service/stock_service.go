package service

import (
	"context"
	"errors"

	"github.com/fjod/marketplace/internal/domain"
	"github.com/fjod/marketplace/internal/repository"
)

// StockService reads the stock ledger of a product.
type StockService struct {
	products  repository.ProductRepository
	movements repository.MovementRepository
}

func NewStockService(products repository.ProductRepository, movements repository.MovementRepository) *StockService {
	return &StockService{products: products, movements: movements}
}

// ListMovements returns the movements of a product oldest first. An unknown product is
// ErrItemNotFound, a product that never moved has an empty history.
func (s *StockService) ListMovements(ctx context.Context, productID string) ([]*domain.StockMovement, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, &ItemNotFoundError{ProductID: productID}
		}
		return nil, err
	}
	return s.movements.ListMovements(ctx, productID)
}
