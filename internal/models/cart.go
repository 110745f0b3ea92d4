package models

import "time"

// CartItem is one product reference in a user's cart. The composite primary
// key (user_id, product_id) is the dedupe guard: two concurrent adds for the
// same pair cannot both insert, the second hits the key constraint instead
// of relying on a read-then-write check.
type CartItem struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	ProductID string    `json:"product_id" gorm:"primaryKey;type:varchar(36)"`
	Quantity  int       `json:"quantity" validate:"gte=1"`
	UpdatedAt time.Time `json:"updated_at"`
}
