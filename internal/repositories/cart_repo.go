package repositories

import (
	"digistore/internal/models"
)

// CartRepository defines the interface for cart data access. Each user has
// at most one live cart, modeled as the set of cart_items rows keyed by
// (user_id, product_id).
type CartRepository interface {
	GetItems(userID string) ([]models.CartItem, error)
	AddItem(item *models.CartItem) error
	RemoveItem(userID, productID string) error
	Clear(userID string) error
}
