package cache

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"storefront/categorizer/internal/client"
	"storefront/categorizer/internal/domain"

	log "github.com/sirupsen/logrus"
)

// TaxonomyClient caches browse listings. The taxonomy is read-only, so a listing per
// parent path stays valid for the configured TTL. Search is passed through.
type TaxonomyClient struct {
	next  client.TaxonomyClient
	cache *Cache
	ttl   time.Duration
}

func NewTaxonomyClient(next client.TaxonomyClient, cache *Cache, ttl time.Duration) *TaxonomyClient {
	return &TaxonomyClient{next: next, cache: cache, ttl: ttl}
}

func browseKey(parentPath []string) string {
	return "taxonomy:browse:" + domain.JoinPath(parentPath)
}

func (c *TaxonomyClient) Search(ctx context.Context, query string, limit int) (iter.Seq[domain.TaxonomyNode], error) {
	return c.next.Search(ctx, query, limit)
}

func (c *TaxonomyClient) Browse(ctx context.Context, parentPath []string) ([]domain.TaxonomyNode, error) {
	key := browseKey(parentPath)
	if data, ok := c.cache.Get(key); ok {
		var nodes []domain.TaxonomyNode
		if err := json.Unmarshal(data, &nodes); err == nil {
			return nodes, nil
		}
		c.cache.Delete(key)
	}

	nodes, err := c.next.Browse(ctx, parentPath)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(nodes); err != nil {
		log.Warnf("⚠️ Failed to encode browse listing for cache: %v", err)
	} else {
		c.cache.Set(key, data, c.ttl)
	}

	return nodes, nil
}

func (c *TaxonomyClient) Close() error {
	return c.next.Close()
}
