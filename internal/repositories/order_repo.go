package repositories

import (
	"digistore/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id string) (*models.Order, error)
	GetByUserAndID(userID, id string) (*models.Order, error)
	ListByUser(userID string) ([]models.Order, error)
	// MarkPaid flips status from "created" to "paid" and records the gateway
	// payment id. It reports false without error when the order was already
	// settled, so duplicate confirmations can be detected.
	MarkPaid(id, paymentID string) (bool, error)
	MarkFailed(id string) error
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
	SumTotalByStatus(status string) (float64, error)
}
