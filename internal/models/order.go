package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Order lifecycle. An order starts as "created" and moves to exactly one
// terminal state: "paid" (signature verified, entitlements granted) or
// "failed" (verification or reconciliation error). There is no path back
// from "failed".
const (
	OrderStatusCreated = "created"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

// OrderItem is a line item snapshotted at order-creation time. Name and
// price are copied from the product so later catalog edits cannot change
// what the customer was charged for.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// OrderItems is the JSON-serialized line-item snapshot column.
type OrderItems []OrderItem

func (o OrderItems) Value() (driver.Value, error) {
	if o == nil {
		o = OrderItems{}
	}
	return json.Marshal(o)
}

func (o *OrderItems) Scan(value interface{}) error {
	return scanJSON(value, o)
}

// ProductIDs returns the product ids referenced by the snapshot.
func (o OrderItems) ProductIDs() []string {
	ids := make([]string, 0, len(o))
	for _, item := range o {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Order is a local purchase record tied to a payment-gateway order.
// RazorpayPaymentID is only set once a verification attempt succeeded.
type Order struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID            string     `json:"user_id" gorm:"index;type:varchar(36)"`
	Items             OrderItems `json:"items" gorm:"type:text"`
	Total             float64    `json:"total"`
	RazorpayOrderID   string     `json:"razorpay_order_id" gorm:"type:varchar(64)"`
	RazorpayPaymentID string     `json:"razorpay_payment_id,omitempty" gorm:"type:varchar(64)"`
	Status            string     `json:"status" gorm:"type:varchar(16);index"`
	CreatedAt         time.Time  `json:"created_at"`
}
