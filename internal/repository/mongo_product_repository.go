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

type mongoProductRepository struct {
	collection *mongo.Collection
}

func NewProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepository{
		collection: db.Collection("products"),
	}
}

func (m *mongoProductRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

func (m *mongoProductRepository) DecrementStock(ctx context.Context, id string, quantity int) error {
	filter := bson.M{
		"_id":   id,
		"stock": bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{"stock": -quantity},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	if result.MatchedCount == 0 {
		n, errCount := m.collection.CountDocuments(ctx, bson.M{"_id": id})
		if errCount != nil {
			return fmt.Errorf("failed to check product: %w", errCount)
		}
		if n == 0 {
			return ErrProductNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

func (m *mongoProductRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	update := bson.M{
		"$inc": bson.M{"stock": quantity},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoProductRepository) CreateProduct(ctx context.Context, product *domain.Product) error {
	product.UpdatedAt = time.Now()
	if _, err := m.collection.InsertOne(ctx, product); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

type mongoMovementRepository struct {
	collection *mongo.Collection
}

func NewMovementRepository(db *mongo.Database) MovementRepository {
	return &mongoMovementRepository{
		collection: db.Collection("stock_movements"),
	}
}

func (m *mongoMovementRepository) CreateMovement(ctx context.Context, movement *domain.StockMovement) error {
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now()
	}

	if _, err := m.collection.InsertOne(ctx, movement); err != nil {
		return fmt.Errorf("failed to create stock movement: %w", err)
	}
	return nil
}

func (m *mongoMovementRepository) DeleteMovement(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete stock movement: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrMovementNotFound
	}
	return nil
}

func (m *mongoMovementRepository) ListMovements(ctx context.Context, productID string) ([]*domain.StockMovement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := m.collection.Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}

	movements := make([]*domain.StockMovement, 0)
	if err := cursor.All(ctx, &movements); err != nil {
		return nil, fmt.Errorf("failed to decode stock movements: %w", err)
	}
	return movements, nil
}

func (m *mongoMovementRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create stock movement indexes: %w", err)
	}
	return nil
}
