package domain

import "time"

type CartState string

const (
	CartStatePending   CartState = "PENDING"
	CartStateValidated CartState = "VALIDATED"
)

func (s CartState) IsValid() bool {
	return s == CartStatePending || s == CartStateValidated
}

// String representation (for logging)
func (s CartState) String() string {
	return string(s)
}

type ShopRef struct {
	ID   string `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

type CartItem struct {
	ProductID string   `bson:"product_id" json:"product_id"`
	Name      string   `bson:"name" json:"name"`
	Price     float64  `bson:"price" json:"price"`
	Quantity  int      `bson:"quantity" json:"quantity"`
	Shop      *ShopRef `bson:"shop,omitempty" json:"shop,omitempty"`
}

type Cart struct {
	ID          string     `bson:"_id" json:"id"`
	BuyerID     string     `bson:"buyer_id" json:"buyer_id"`
	Items       []CartItem `bson:"items" json:"items"`
	TotalAmount float64    `bson:"total_amount" json:"total_amount"`
	State       CartState  `bson:"state" json:"state"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// TotalAmount is the sum of price * quantity over all lines.
func TotalAmount(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

func (c *Cart) IsPending() bool {
	return c.State == CartStatePending
}
