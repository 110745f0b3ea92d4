package repositories

import (
	"digistore/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByClerkID(clerkID string) (*models.User, error)
	Update(user *models.User) error
	CountByRole(role string) (int64, error)
}
