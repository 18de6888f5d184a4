package client

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"storefront/categorizer/internal/config"
	"storefront/categorizer/internal/domain"
	"storefront/categorizer/internal/proxy"

	log "github.com/sirupsen/logrus"
)

// MinQueryLength is the shortest trimmed query the search endpoint accepts.
const MinQueryLength = config.MinSearchQueryLength

type TaxonomyClient interface {
	// Search returns backend-ranked matches as a lazy sequence that can be ranged over once.
	Search(ctx context.Context, query string, limit int) (iter.Seq[domain.TaxonomyNode], error)
	// Browse returns the immediate children of parentPath; nil or empty means the root.
	Browse(ctx context.Context, parentPath []string) ([]domain.TaxonomyNode, error)
	Close() error
}

type taxonomyClient struct {
	*restClient
	prefix string
}

func NewTaxonomyClient(cfg config.APIConfig, proxySupplier proxy.ProxySupplier) TaxonomyClient {
	return &taxonomyClient{
		restClient: newRESTClient(cfg, proxySupplier),
		prefix:     strings.TrimRight(cfg.TaxonomyPrefix, "/"),
	}
}

func (c *taxonomyClient) Search(ctx context.Context, query string, limit int) (iter.Seq[domain.TaxonomyNode], error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return nil, domain.NewError(domain.ValidationFailure,
			fmt.Sprintf("search needs at least %d characters", MinQueryLength), nil)
	}

	params := map[string]string{"q": query}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	body, err := c.do(ctx, http.MethodGet, c.prefix+"/search", params, nil)
	if err != nil {
		return nil, domain.NewError(domain.LookupFailure, userMessage(err), err)
	}

	raw, err := decodeTaxonomy(body)
	if err != nil {
		return nil, domain.NewError(domain.LookupFailure, "taxonomy search returned an unreadable response", err)
	}

	log.Debugf("Taxonomy search %q returned %d nodes", query, len(raw))
	return searchSequence(raw), nil
}

// searchSequence normalizes nodes as they are consumed. Top-level nodes may come
// without a path; their path is their own name.
func searchSequence(raw []rawNode) iter.Seq[domain.TaxonomyNode] {
	var consumed atomic.Bool
	return func(yield func(domain.TaxonomyNode) bool) {
		if consumed.Swap(true) {
			return
		}
		for _, r := range raw {
			node, err := r.normalize()
			if err != nil {
				log.Debugf("Skipping taxonomy search result: %v", err)
				continue
			}
			if len(node.Path) == 0 {
				node.Path = []string{node.Name}
			}
			if !yield(node) {
				return
			}
		}
	}
}

func (c *taxonomyClient) Browse(ctx context.Context, parentPath []string) ([]domain.TaxonomyNode, error) {
	var params map[string]string
	if len(parentPath) > 0 {
		params = map[string]string{"parent": domain.JoinPath(parentPath)}
	}

	body, err := c.do(ctx, http.MethodGet, c.prefix+"/browse", params, nil)
	if err != nil {
		return nil, domain.NewError(domain.LookupFailure, userMessage(err), err)
	}

	raw, err := decodeTaxonomy(body)
	if err != nil {
		return nil, domain.NewError(domain.LookupFailure, "taxonomy browse failed", err)
	}

	nodes := make([]domain.TaxonomyNode, 0, len(raw))
	for _, r := range raw {
		node, err := r.normalize()
		if err != nil {
			log.Debugf("Skipping taxonomy browse result: %v", err)
			continue
		}

		expected := domain.ChildPath(parentPath, node.Name)
		switch {
		case len(node.Path) == 0:
			node.Path = expected
		case !domain.SamePath(node.Path, expected):
			err := fmt.Errorf("node %s has path %q, expected %q", node.ID, domain.JoinPath(node.Path), domain.JoinPath(expected))
			return nil, domain.NewError(domain.LookupFailure, "taxonomy browse returned nodes outside the requested level", err)
		}

		nodes = append(nodes, node)
	}

	log.Debugf("Taxonomy browse %q returned %d nodes", domain.JoinPath(parentPath), len(nodes))
	return nodes, nil
}
