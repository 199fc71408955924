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

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoCartRepository) CreateCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	_, err := m.collection.InsertOne(ctx, cart)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) && cart.State == domain.CartStatePending {
			return ErrPendingCartExists
		}
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

func (m *mongoCartRepository) GetCart(ctx context.Context, id string) (*domain.Cart, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *mongoCartRepository) GetPendingCart(ctx context.Context, buyerID string) (*domain.Cart, error) {
	return m.findOne(ctx, bson.M{"buyer_id": buyerID, "state": domain.CartStatePending})
}

func (m *mongoCartRepository) findOne(ctx context.Context, filter bson.M) (*domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *mongoCartRepository) ListByBuyer(ctx context.Context, buyerID string, page domain.Page) ([]*domain.Cart, int64, error) {
	filter := bson.M{"buyer_id": buyerID}

	total, err := m.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count carts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list carts: %w", err)
	}

	carts := make([]*domain.Cart, 0)
	if err := cursor.All(ctx, &carts); err != nil {
		return nil, 0, fmt.Errorf("failed to decode carts: %w", err)
	}
	return carts, total, nil
}

func (m *mongoCartRepository) UpdatePendingItems(ctx context.Context, id string, items []domain.CartItem, total float64) error {
	filter := bson.M{"_id": id, "state": domain.CartStatePending}
	update := bson.M{
		"$set": bson.M{
			"items":        items,
			"total_amount": total,
			"updated_at":   time.Now(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update cart items: %w", err)
	}

	if result.MatchedCount == 0 {
		return m.missOrConflict(ctx, id)
	}
	return nil
}

func (m *mongoCartRepository) TransitionState(ctx context.Context, id string, from, to domain.CartState) error {
	filter := bson.M{"_id": id, "state": from}
	update := bson.M{
		"$set": bson.M{
			"state":      to,
			"updated_at": time.Now(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrPendingCartExists
		}
		return fmt.Errorf("failed to change cart state: %w", err)
	}

	if result.MatchedCount == 0 {
		return m.missOrConflict(ctx, id)
	}
	return nil
}

func (m *mongoCartRepository) DeletePendingCart(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id, "state": domain.CartStatePending})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return m.missOrConflict(ctx, id)
	}
	return nil
}

func (m *mongoCartRepository) DeleteCart(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoCartRepository) missOrConflict(ctx context.Context, id string) error {
	n, err := m.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check cart: %w", err)
	}
	if n == 0 {
		return ErrCartNotFound
	}
	return ErrCartStateConflict
}

func (m *mongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// at most one PENDING cart per buyer
			Keys: bson.D{{Key: "buyer_id", Value: 1}},
			Options: options.Index().
				SetName("buyer_pending_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"state": domain.CartStatePending}),
		},
		{
			Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}
