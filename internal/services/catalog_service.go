package services

import (
	"digistore/internal/models"
	"digistore/internal/repositories"
)

// CatalogService handles business logic for the product catalog and the
// read side of the entitlement ledger.
type CatalogService struct {
	products     repositories.ProductRepository
	entitlements repositories.EntitlementRepository
	users        repositories.UserRepository
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(products repositories.ProductRepository, entitlements repositories.EntitlementRepository, users repositories.UserRepository) *CatalogService {
	return &CatalogService{
		products:     products,
		entitlements: entitlements,
		users:        users,
	}
}

// List retrieves products, optionally filtered by category.
func (s *CatalogService) List(category string) ([]models.Product, error) {
	return s.products.GetAll(category)
}

// Get retrieves a single product by its ID.
func (s *CatalogService) Get(id string) (*models.Product, error) {
	return s.products.GetByID(id)
}

// Create adds a new product to the catalog.
func (s *CatalogService) Create(product *models.Product) error {
	return s.products.Create(product)
}

// Update persists changes to an existing product.
func (s *CatalogService) Update(product *models.Product) error {
	return s.products.Update(product)
}

// Delete removes a product from the catalog.
func (s *CatalogService) Delete(id string) error {
	return s.products.Delete(id)
}

// DistributeToAllUsers grants a product to every user, skipping those who
// already hold it. The product must exist.
func (s *CatalogService) DistributeToAllUsers(productID string) (int64, error) {
	if _, err := s.products.GetByID(productID); err != nil {
		return 0, err
	}
	return s.entitlements.GrantToAllUsers(productID)
}

// ListPurchased returns the products the user is entitled to. Ledger
// entries whose product was deleted are silently dropped.
func (s *CatalogService) ListPurchased(userID string) ([]models.Product, error) {
	ids, err := s.entitlements.ListProductIDs(userID)
	if err != nil {
		return nil, err
	}
	return s.products.GetByIDs(ids)
}

// ListPurchasedByClerkID returns the purchased products for a federated
// user. An unknown clerk id yields an empty list, not an error.
func (s *CatalogService) ListPurchasedByClerkID(clerkID string) ([]models.Product, error) {
	user, err := s.users.GetByClerkID(clerkID)
	if err != nil {
		return []models.Product{}, nil
	}
	return s.ListPurchased(user.ID)
}
