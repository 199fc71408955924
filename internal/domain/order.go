package domain

import "time"

type PartyRef struct {
	ID   string `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

type OrderItem struct {
	ProductID string  `bson:"product_id" json:"product_id"`
	Name      string  `bson:"name" json:"name"`
	Price     float64 `bson:"price" json:"price"`
	Quantity  int     `bson:"quantity" json:"quantity"`
}

// Order is the per-shop record of what was sold out of a validated cart.
// Items are a frozen copy taken at checkout time.
type Order struct {
	ID            string      `bson:"_id" json:"id"`
	Buyer         PartyRef    `bson:"buyer" json:"buyer"`
	Shop          ShopRef     `bson:"shop" json:"shop"`
	TransactionID string      `bson:"transaction_id" json:"transaction_id"`
	Items         []OrderItem `bson:"items" json:"items"`
	TotalAmount   float64     `bson:"total_amount" json:"total_amount"`
	TotalItems    int         `bson:"total_items" json:"total_items"`
	CreatedAt     time.Time   `bson:"created_at" json:"created_at"`
}

type MonthlySales struct {
	Month       int     `bson:"_id" json:"month"`
	TotalAmount float64 `bson:"total_amount" json:"total_amount"`
	Orders      int     `bson:"orders" json:"orders"`
	Items       int     `bson:"items" json:"items"`
}
