package domain

import "time"

type MovementReason string

const (
	MovementReasonSale     MovementReason = "SALE"
	MovementReasonPurchase MovementReason = "PURCHASE"
)

type Product struct {
	ID         string         `bson:"_id" json:"id"`
	Name       string         `bson:"name" json:"name"`
	Price      float64        `bson:"price" json:"price"`
	Stock      int            `bson:"stock" json:"stock"`
	Shop       ShopRef        `bson:"shop" json:"shop"`
	Attributes map[string]any `bson:"attributes,omitempty" json:"attributes,omitempty"`
	UpdatedAt  time.Time      `bson:"updated_at" json:"updated_at"`
}

// StockMovement is an audit row for a change of a product's available quantity.
type StockMovement struct {
	ID        string         `bson:"_id" json:"id"`
	ProductID string         `bson:"product_id" json:"product_id"`
	Quantity  int            `bson:"quantity" json:"quantity"`
	Reason    MovementReason `bson:"reason" json:"reason"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}
