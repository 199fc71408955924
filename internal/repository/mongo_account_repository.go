package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/marketplace/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoAccountRepository struct {
	collection *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) AccountRepository {
	return &mongoAccountRepository{
		collection: db.Collection("accounts"),
	}
}

func (m *mongoAccountRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

func (m *mongoAccountRepository) Debit(ctx context.Context, id string, amount float64) error {
	filter := bson.M{
		"_id":     id,
		"balance": bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"balance": -amount},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}

	if result.MatchedCount == 0 {
		return m.missOrShortfall(ctx, id)
	}
	return nil
}

func (m *mongoAccountRepository) Credit(ctx context.Context, id string, amount float64) error {
	update := bson.M{
		"$inc": bson.M{"balance": amount},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// missOrShortfall tells apart a missing account from a balance that is too low.
func (m *mongoAccountRepository) missOrShortfall(ctx context.Context, id string) error {
	n, err := m.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return ErrInsufficientBalance
}

func (m *mongoAccountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	if _, err := m.collection.InsertOne(ctx, account); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}
