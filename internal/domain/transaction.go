package domain

import "time"

type TransactionKind string

const (
	TransactionKindPurchase TransactionKind = "PURCHASE"
	TransactionKindRecharge TransactionKind = "RECHARGE"
	TransactionKindRent     TransactionKind = "RENT"
)

// Transaction is an append-only ledger entry for a money movement.
// CartID is set for purchases coming from a checkout, RentID and Period for rent payments.
type Transaction struct {
	ID        string          `bson:"_id" json:"id"`
	Kind      TransactionKind `bson:"kind" json:"kind"`
	Amount    float64         `bson:"amount" json:"amount"`
	AccountID string          `bson:"account_id" json:"account_id"`
	CartID    string          `bson:"cart_id,omitempty" json:"cart_id,omitempty"`
	RentID    string          `bson:"rent_id,omitempty" json:"rent_id,omitempty"`
	Period    string          `bson:"period,omitempty" json:"period,omitempty"`
	CreatedAt time.Time       `bson:"created_at" json:"created_at"`
}
