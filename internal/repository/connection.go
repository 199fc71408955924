package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// Repositories bundles every collection-backed store of the marketplace database.
type Repositories struct {
	Counters     *CounterRepository
	Accounts     AccountRepository
	Products     ProductRepository
	Movements    MovementRepository
	Transactions TransactionRepository
	Orders       OrderRepository
	Carts        CartRepository
}

func NewRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Counters:     NewCounterRepository(db),
		Accounts:     NewAccountRepository(db),
		Products:     NewProductRepository(db),
		Movements:    NewMovementRepository(db),
		Transactions: NewTransactionRepository(db),
		Orders:       NewOrderRepository(db),
		Carts:        NewCartRepository(db),
	}
}

type indexer interface {
	CreateIndexes(ctx context.Context) error
}

// CreateIndexes creates the indexes every collection relies on, including the
// uniqueness constraints behind ErrPendingCartExists and ErrDuplicatePeriod.
func (r *Repositories) CreateIndexes(ctx context.Context) error {
	for _, repo := range []any{r.Movements, r.Transactions, r.Orders, r.Carts} {
		idx, ok := repo.(indexer)
		if !ok {
			continue
		}
		if err := idx.CreateIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
