package models

import "time"

// Entitlement is one row of the entitlement ledger: user may access product.
// The composite primary key makes grants naturally idempotent; re-granting
// an already-owned product is a no-op insert.
type Entitlement struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	ProductID string    `json:"product_id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
}
