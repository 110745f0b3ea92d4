package services

import (
	"errors"
	"fmt"

	"digistore/internal/models"
	"digistore/internal/repositories"
)

// CartEntry is a cart item joined with its product details for display.
type CartEntry struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// CartService handles business logic for the per-user server-side cart.
// Federated users keep their cart client-side; nothing here applies to them.
type CartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(carts repositories.CartRepository, products repositories.ProductRepository) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
	}
}

// Get returns the user's cart with product details resolved. Items whose
// product has been removed from the catalog are dropped from the view.
func (s *CartService) Get(userID string) ([]CartEntry, error) {
	items, err := s.carts.GetItems(userID)
	if err != nil {
		return nil, err
	}
	entries := make([]CartEntry, 0, len(items))
	for _, item := range items {
		product, err := s.products.GetByID(item.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, CartEntry{Product: *product, Quantity: item.Quantity})
	}
	return entries, nil
}

// Add puts a product into the user's cart. The product must exist, and a
// product already present is rejected rather than merged.
func (s *CartService) Add(userID, productID string, quantity int) error {
	if _, err := s.products.GetByID(productID); err != nil {
		return err
	}
	if quantity < 1 {
		quantity = 1
	}
	err := s.carts.AddItem(&models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return ErrDuplicateCartItem
		}
		return fmt.Errorf("failed to add product %s to cart: %w", productID, err)
	}
	return nil
}

// Remove deletes one product from the user's cart.
func (s *CartService) Remove(userID, productID string) error {
	return s.carts.RemoveItem(userID, productID)
}

// Clear empties the user's cart.
func (s *CartService) Clear(userID string) error {
	return s.carts.Clear(userID)
}
