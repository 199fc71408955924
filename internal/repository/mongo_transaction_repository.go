package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/marketplace/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoTransactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) TransactionRepository {
	return &mongoTransactionRepository{
		collection: db.Collection("transactions"),
	}
}

func (m *mongoTransactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	_, err := m.collection.InsertOne(ctx, tx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) && tx.Kind == domain.TransactionKindRent {
			return ErrDuplicatePeriod
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (m *mongoTransactionRepository) DeleteTransaction(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (m *mongoTransactionRepository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &tx, nil
}

func (m *mongoTransactionRepository) ListByAccount(ctx context.Context, accountID string, page domain.Page) ([]*domain.Transaction, int64, error) {
	filter := bson.M{"account_id": accountID}

	total, err := m.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]*domain.Transaction, 0)
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txs, total, nil
}

func (m *mongoTransactionRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// one RENT payment per account, rent and billing period
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "rent_id", Value: 1},
				{Key: "period", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"kind": domain.TransactionKindRent}),
		},
		{
			Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}
	return nil
}
