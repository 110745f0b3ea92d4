package repositories

import (
	"fmt"
	"time"

	"digistore/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMEntitlementRepository is a GORM implementation of EntitlementRepository.
type GORMEntitlementRepository struct {
	db *gorm.DB
}

// NewGORMEntitlementRepository creates a new instance of GORMEntitlementRepository.
func NewGORMEntitlementRepository(db *gorm.DB) *GORMEntitlementRepository {
	return &GORMEntitlementRepository{
		db: db,
	}
}

// GrantAll inserts one ledger row per product id with ON CONFLICT DO
// NOTHING, so the union is idempotent at the database rather than relying
// on a read-then-write check in application code.
func (r *GORMEntitlementRepository) GrantAll(userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	rows := make([]models.Entitlement, 0, len(productIDs))
	now := time.Now()
	for _, productID := range productIDs {
		rows = append(rows, models.Entitlement{
			UserID:    userID,
			ProductID: productID,
			CreatedAt: now,
		})
	}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to grant entitlements to user %s: %w", userID, err)
	}
	return nil
}

// ListProductIDs returns the product ids the user is entitled to.
func (r *GORMEntitlementRepository) ListProductIDs(userID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.Entitlement{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list entitlements for user %s: %w", userID, err)
	}
	return ids, nil
}

// GrantToAllUsers inserts the product into every user's ledger, skipping
// users that already hold it.
func (r *GORMEntitlementRepository) GrantToAllUsers(productID string) (int64, error) {
	res := r.db.Exec(
		`INSERT INTO entitlements (user_id, product_id, created_at)
		 SELECT id, ?, ? FROM users
		 WHERE id NOT IN (SELECT user_id FROM entitlements WHERE product_id = ?)`,
		productID, time.Now(), productID,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to grant product %s to all users: %w", productID, res.Error)
	}
	return res.RowsAffected, nil
}
