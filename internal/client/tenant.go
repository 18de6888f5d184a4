package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"storefront/categorizer/internal/config"
	"storefront/categorizer/internal/domain"
	"storefront/categorizer/internal/proxy"

	log "github.com/sirupsen/logrus"
)

// TenantClient talks to the tenant-scoped category and item endpoints.
type TenantClient interface {
	ListCategories(ctx context.Context, tenantID string) ([]domain.TenantCategory, error)
	CreateCategory(ctx context.Context, tenantID string, category domain.NewCategory) (domain.TenantCategory, error)
	AssignItemCategory(ctx context.Context, tenantID, itemID, categoryID string) error
	Close() error
}

type tenantClient struct {
	*restClient
}

func NewTenantClient(cfg config.APIConfig, proxySupplier proxy.ProxySupplier) TenantClient {
	return &tenantClient{
		restClient: newRESTClient(cfg, proxySupplier),
	}
}

func categoriesPath(tenantID string) string {
	return fmt.Sprintf("/tenants/%s/categories", url.PathEscape(tenantID))
}

func (c *tenantClient) ListCategories(ctx context.Context, tenantID string) ([]domain.TenantCategory, error) {
	body, err := c.do(ctx, http.MethodGet, categoriesPath(tenantID), nil, nil)
	if err != nil {
		return nil, domain.NewError(domain.LookupFailure, userMessage(err), err)
	}

	categories, err := unwrapData[[]domain.TenantCategory](body)
	if err != nil {
		return nil, domain.NewError(domain.LookupFailure, "tenant categories response is unreadable", err)
	}

	log.Debugf("Loaded %d categories for tenant %s", len(categories), tenantID)
	return categories, nil
}

func (c *tenantClient) CreateCategory(ctx context.Context, tenantID string, category domain.NewCategory) (domain.TenantCategory, error) {
	body, err := c.do(ctx, http.MethodPost, categoriesPath(tenantID), nil, category)
	if err != nil {
		return domain.TenantCategory{}, domain.NewError(domain.CreationConflict, userMessage(err), err)
	}

	created, err := unwrapData[domain.TenantCategory](body)
	if err != nil {
		return domain.TenantCategory{}, domain.NewError(domain.CreationConflict, "category creation response is unreadable", err)
	}
	if created.ID == "" {
		return domain.TenantCategory{}, domain.NewError(domain.CreationConflict, "category creation response has no id", nil)
	}

	log.Infof("✅ Created category %s (%q) for tenant %s", created.ID, created.Name, tenantID)
	return created, nil
}

func (c *tenantClient) AssignItemCategory(ctx context.Context, tenantID, itemID, categoryID string) error {
	path := fmt.Sprintf("/tenants/%s/items/%s/category", url.PathEscape(tenantID), url.PathEscape(itemID))
	payload := map[string]string{"tenantCategoryId": categoryID}

	if _, err := c.do(ctx, http.MethodPatch, path, nil, payload); err != nil {
		return domain.NewError(domain.AssignmentFailure, userMessage(err), err)
	}

	log.Infof("✅ Assigned category %s to item %s (tenant %s)", categoryID, itemID, tenantID)
	return nil
}

// unwrapData decodes either {"data": T} or a bare T.
func unwrapData[T any](body []byte) (T, error) {
	var zero T

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return zero, errors.New("empty response body")
	}

	if trimmed[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
			trimmed = env.Data
		}
	}

	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return zero, err
	}
	return v, nil
}
