package repositories

import (
	"errors"
	"fmt"

	"digistore/internal/models"

	"gorm.io/gorm"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{
		db: db,
	}
}

// GetItems returns the user's cart items. An empty cart is an empty slice,
// not an error.
func (r *GORMCartRepository) GetItems(userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get cart for user %s: %w", userID, err)
	}
	return items, nil
}

// AddItem inserts a cart row. The composite primary key rejects a second
// insert for the same (user, product) pair; that surfaces as ErrDuplicate
// rather than silently merging quantities.
func (r *GORMCartRepository) AddItem(item *models.CartItem) error {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if err := r.db.Create(item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("product %s already in cart: %w", item.ProductID, ErrDuplicate)
		}
		return fmt.Errorf("failed to add item to cart: %w", err)
	}
	return nil
}

// RemoveItem deletes a single product from the user's cart.
func (r *GORMCartRepository) RemoveItem(userID, productID string) error {
	res := r.db.Delete(&models.CartItem{}, "user_id = ? AND product_id = ?", userID, productID)
	if res.Error != nil {
		return fmt.Errorf("failed to remove item from cart: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s not in cart: %w", productID, ErrNotFound)
	}
	return nil
}

// Clear removes every item from the user's cart. Clearing an already-empty
// cart succeeds.
func (r *GORMCartRepository) Clear(userID string) error {
	if err := r.db.Delete(&models.CartItem{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("failed to clear cart for user %s: %w", userID, err)
	}
	return nil
}
