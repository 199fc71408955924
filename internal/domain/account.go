package domain

import "time"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleShopOwner Role = "SHOP_OWNER"
	RoleBuyer     Role = "BUYER"
)

type Account struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Role      Role      `bson:"role" json:"role"`
	Balance   float64   `bson:"balance" json:"balance"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
