package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CounterRepository keeps one document per prefix in the counters collection.
type CounterRepository struct {
	collection *mongo.Collection
}

type counterDoc struct {
	Prefix string `bson:"_id"`
	Seq    int64  `bson:"seq"`
}

func NewCounterRepository(db *mongo.Database) *CounterRepository {
	return &CounterRepository{
		collection: db.Collection("counters"),
	}
}

// Increment is an atomic increment-and-read, the counter is created on first use.
func (r *CounterRepository) Increment(ctx context.Context, prefix string) (int64, error) {
	filter := bson.M{"_id": prefix}
	update := bson.M{"$inc": bson.M{"seq": 1}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	return doc.Seq, nil
}

// Reset sets the counter to value. Used by data seeding only.
func (r *CounterRepository) Reset(ctx context.Context, prefix string, value int64) error {
	filter := bson.M{"_id": prefix}
	update := bson.M{"$set": bson.M{"seq": value}}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to reset counter: %w", err)
	}
	return nil
}
