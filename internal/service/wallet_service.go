package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/marketplace/internal/domain"
	"github.com/fjod/marketplace/internal/logging"
	"github.com/fjod/marketplace/internal/metrics"
	"github.com/fjod/marketplace/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const periodLayout = "2006-01"

// WalletService records money entering and leaving an account. Every movement is a
// ledger entry plus a wallet update, the entry is removed if the update fails.
type WalletService struct {
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
	ids          IDGenerator
	metrics      *metrics.Metrics
}

func NewWalletService(accounts repository.AccountRepository, transactions repository.TransactionRepository, ids IDGenerator, m *metrics.Metrics) *WalletService {
	return &WalletService{
		accounts:     accounts,
		transactions: transactions,
		ids:          ids,
		metrics:      m,
	}
}

func (s *WalletService) Balance(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, accountID string, page domain.Page) ([]*domain.Transaction, domain.Pagination, error) {
	txs, total, err := s.transactions.ListByAccount(ctx, accountID, page)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return txs, domain.NewPagination(page, total), nil
}

func (s *WalletService) Recharge(ctx context.Context, accountID string, amount float64) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "WalletService.Recharge")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID), attribute.Float64("amount", amount))

	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if _, err := s.Balance(ctx, accountID); err != nil {
		return nil, err
	}

	tx, err := s.newTransaction(ctx, domain.TransactionKindRecharge, accountID, amount)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	j := newJournal("recharge", s.metrics)
	err = j.run(ctx, "append_transaction",
		func(ctx context.Context) error { return s.transactions.CreateTransaction(ctx, tx) },
		func(ctx context.Context) error { return s.transactions.DeleteTransaction(ctx, tx.ID) })
	if err == nil {
		err = j.run(ctx, "credit_wallet",
			func(ctx context.Context) error { return s.accounts.Credit(ctx, accountID, amount) },
			func(ctx context.Context) error { return s.accounts.Debit(ctx, accountID, amount) })
	}
	if err != nil {
		j.rollback(ctx)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("recharge failed: %w", err)
	}

	logging.FromContext(ctx).Info("wallet recharged",
		zap.String("account_id", accountID),
		zap.String("transaction_id", tx.ID),
		zap.Float64("amount", amount))
	return tx, nil
}

// PayRent charges one billing period of a rent. A period can be paid only once per
// account and rent.
func (s *WalletService) PayRent(ctx context.Context, accountID, rentID, period string, amount float64) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "WalletService.PayRent")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID), attribute.String("rent.id", rentID))

	switch {
	case rentID == "":
		return nil, &ValidationError{Field: "rent_id", Reason: "is required"}
	case amount < 0:
		return nil, &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if _, err := time.Parse(periodLayout, period); err != nil {
		return nil, &ValidationError{Field: "period", Reason: "must be formatted as YYYY-MM"}
	}

	account, err := s.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Balance < amount {
		return nil, &InsufficientFundsError{AccountID: accountID, Balance: account.Balance, Required: amount}
	}

	tx, err := s.newTransaction(ctx, domain.TransactionKindRent, accountID, amount)
	if err != nil {
		return nil, err
	}
	tx.RentID = rentID
	tx.Period = period

	ctx = context.WithoutCancel(ctx)
	j := newJournal("rent", s.metrics)
	err = j.run(ctx, "append_transaction",
		func(ctx context.Context) error { return s.transactions.CreateTransaction(ctx, tx) },
		func(ctx context.Context) error { return s.transactions.DeleteTransaction(ctx, tx.ID) })
	if err == nil {
		err = j.run(ctx, "debit_wallet",
			func(ctx context.Context) error { return s.accounts.Debit(ctx, accountID, amount) },
			func(ctx context.Context) error { return s.accounts.Credit(ctx, accountID, amount) })
	}
	if err != nil {
		j.rollback(ctx)
		switch {
		case errors.Is(err, repository.ErrDuplicatePeriod):
			return nil, ErrDuplicatePeriod
		case errors.Is(err, repository.ErrInsufficientBalance):
			fundsErr := &InsufficientFundsError{AccountID: accountID, Required: amount}
			if current, errGet := s.accounts.GetAccount(ctx, accountID); errGet == nil {
				fundsErr.Balance = current.Balance
			}
			return nil, fundsErr
		case errors.Is(err, repository.ErrAccountNotFound):
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("rent payment failed: %w", err)
	}

	logging.FromContext(ctx).Info("rent paid",
		zap.String("account_id", accountID),
		zap.String("rent_id", rentID),
		zap.String("period", period),
		zap.String("transaction_id", tx.ID))
	return tx, nil
}

func (s *WalletService) newTransaction(ctx context.Context, kind domain.TransactionKind, accountID string, amount float64) (*domain.Transaction, error) {
	id, err := s.ids.Next(ctx, domain.PrefixTransaction)
	if err != nil {
		return nil, err
	}
	return &domain.Transaction{
		ID:        id,
		Kind:      kind,
		Amount:    amount,
		AccountID: accountID,
	}, nil
}
