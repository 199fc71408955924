package service

import (
	"context"
	"errors"

	"github.com/fjod/marketplace/internal/domain"
	"github.com/fjod/marketplace/internal/repository"
)

type OrderService struct {
	orders repository.OrderRepository
}

func NewOrderService(orders repository.OrderRepository) *OrderService {
	return &OrderService{orders: orders}
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Order, error) {
	return s.orders.ListByTransaction(ctx, transactionID)
}

func (s *OrderService) ListByShop(ctx context.Context, shopID string, page domain.Page) ([]*domain.Order, domain.Pagination, error) {
	orders, total, err := s.orders.ListByShop(ctx, shopID, page)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return orders, domain.NewPagination(page, total), nil
}

// SalesByMonth returns twelve rows, January first, months without orders are zero.
func (s *OrderService) SalesByMonth(ctx context.Context, shopID string, year int) ([]domain.MonthlySales, error) {
	if year < 1970 || year > 9999 {
		return nil, &ValidationError{Field: "year", Reason: "is out of range"}
	}

	rows, err := s.orders.SalesByMonth(ctx, shopID, year)
	if err != nil {
		return nil, err
	}

	months := make([]domain.MonthlySales, 12)
	for i := range months {
		months[i].Month = i + 1
	}
	for _, row := range rows {
		if row.Month >= 1 && row.Month <= 12 {
			months[row.Month-1] = row
		}
	}
	return months, nil
}
