package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"digistore/internal/models"

	"github.com/redis/go-redis/v9"
)

const productKeyPrefix = "product:"

// CachedProductRepository decorates a ProductRepository with a read-through
// Redis cache for single-product lookups, the hot path during order pricing.
// Cache failures degrade to the underlying repository, never to an error.
type CachedProductRepository struct {
	inner  ProductRepository
	client *redis.Client
	ttl    time.Duration
}

// NewCachedProductRepository wraps repo with a Redis cache.
func NewCachedProductRepository(repo ProductRepository, client *redis.Client, ttl time.Duration) *CachedProductRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProductRepository{
		inner:  repo,
		client: client,
		ttl:    ttl,
	}
}

// GetByID serves from cache when possible, falling back to the repository.
func (r *CachedProductRepository) GetByID(id string) (*models.Product, error) {
	ctx := context.Background()
	key := productKeyPrefix + id

	data, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var product models.Product
		if err := json.Unmarshal(data, &product); err == nil {
			return &product, nil
		}
		// Corrupt entry, drop it and refetch.
		r.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("product cache get %s: %v", id, err)
	}

	product, err := r.inner.GetByID(id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(product); err == nil {
		if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			log.Printf("product cache set %s: %v", id, err)
		}
	}
	return product, nil
}

// GetAll passes through; list reads are not cached.
func (r *CachedProductRepository) GetAll(category string) ([]models.Product, error) {
	return r.inner.GetAll(category)
}

// GetByIDs passes through.
func (r *CachedProductRepository) GetByIDs(ids []string) ([]models.Product, error) {
	return r.inner.GetByIDs(ids)
}

// Create writes through and leaves the cache cold until the first read.
func (r *CachedProductRepository) Create(product *models.Product) error {
	return r.inner.Create(product)
}

// Update writes through and invalidates the cached entry.
func (r *CachedProductRepository) Update(product *models.Product) error {
	if err := r.inner.Update(product); err != nil {
		return err
	}
	r.invalidate(product.ID)
	return nil
}

// Delete writes through and invalidates the cached entry.
func (r *CachedProductRepository) Delete(id string) error {
	if err := r.inner.Delete(id); err != nil {
		return err
	}
	r.invalidate(id)
	return nil
}

// Count passes through.
func (r *CachedProductRepository) Count() (int64, error) {
	return r.inner.Count()
}

func (r *CachedProductRepository) invalidate(id string) {
	if err := r.client.Del(context.Background(), productKeyPrefix+id).Err(); err != nil {
		log.Printf("product cache invalidate %s: %v", id, err)
	}
}
