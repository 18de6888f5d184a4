package cache

import (
	"context"
	"encoding/json"
	"time"

	"storefront/categorizer/internal/client"
	"storefront/categorizer/internal/domain"

	log "github.com/sirupsen/logrus"
)

// TenantClient keeps each tenant's category list for a short TTL and drops it
// whenever a category is created through it.
type TenantClient struct {
	next  client.TenantClient
	cache *Cache
	ttl   time.Duration
}

func NewTenantClient(next client.TenantClient, cache *Cache, ttl time.Duration) *TenantClient {
	return &TenantClient{next: next, cache: cache, ttl: ttl}
}

func categoriesKey(tenantID string) string {
	return "tenant:categories:" + tenantID
}

func (c *TenantClient) ListCategories(ctx context.Context, tenantID string) ([]domain.TenantCategory, error) {
	key := categoriesKey(tenantID)
	if data, ok := c.cache.Get(key); ok {
		var categories []domain.TenantCategory
		if err := json.Unmarshal(data, &categories); err == nil {
			return categories, nil
		}
		c.cache.Delete(key)
	}

	categories, err := c.next.ListCategories(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(categories); err != nil {
		log.Warnf("⚠️ Failed to encode categories of tenant %s for cache: %v", tenantID, err)
	} else {
		c.cache.Set(key, data, c.ttl)
	}

	return categories, nil
}

func (c *TenantClient) CreateCategory(ctx context.Context, tenantID string, category domain.NewCategory) (domain.TenantCategory, error) {
	created, err := c.next.CreateCategory(ctx, tenantID, category)
	if err != nil {
		return created, err
	}

	c.Invalidate(tenantID)
	return created, nil
}

func (c *TenantClient) AssignItemCategory(ctx context.Context, tenantID, itemID, categoryID string) error {
	return c.next.AssignItemCategory(ctx, tenantID, itemID, categoryID)
}

// Invalidate drops the cached category list of tenantID.
func (c *TenantClient) Invalidate(tenantID string) {
	c.cache.Delete(categoriesKey(tenantID))
}

func (c *TenantClient) Close() error {
	return c.next.Close()
}
