package assignment

import (
	"slices"
	"time"

	"storefront/categorizer/internal/domain"
)

// RootLabel is the first breadcrumb entry, standing for the taxonomy root.
const RootLabel = "Root"

// View is a point-in-time read model of a controller.
type View struct {
	SessionID string `json:"sessionId"`
	TenantID  string `json:"tenantId"`
	ItemID    string `json:"itemId"`
	Closed    bool   `json:"closed"`

	Mode       domain.Mode `json:"mode"`
	Query      string      `json:"query"`
	BrowsePath []string    `json:"browsePath"`
	Breadcrumb string      `json:"breadcrumb"`

	SearchResults []domain.TaxonomyNode `json:"searchResults"`
	Searching     bool                  `json:"searching"`
	SearchError   string                `json:"searchError,omitempty"`

	BrowseNodes []domain.TaxonomyNode `json:"browseNodes"`
	Browsing    bool                  `json:"browsing"`
	BrowseError string                `json:"browseError,omitempty"`

	SelectedTaxonomyNode     *domain.TaxonomyNode    `json:"selectedTaxonomyNode,omitempty"`
	SelectedTenantCategoryID string                  `json:"selectedTenantCategoryId,omitempty"`
	Candidates               []domain.TenantCategory `json:"candidates,omitempty"`
	Suggestion               string                  `json:"suggestion,omitempty"`
	Error                    string                  `json:"error,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Breadcrumb renders path below the root label, e.g. "Root > Animals & Pet Supplies".
func Breadcrumb(path []string) string {
	return domain.JoinPath(append([]string{RootLabel}, path...))
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		SessionID:                c.sessionID,
		TenantID:                 c.tenantID,
		ItemID:                   c.itemID,
		Closed:                   c.closed,
		Mode:                     c.sel.Mode,
		Query:                    c.sel.Query,
		BrowsePath:               slices.Clone(c.sel.BrowsePath),
		Breadcrumb:               Breadcrumb(c.sel.BrowsePath),
		SearchResults:            slices.Clone(c.searchResults),
		Searching:                c.searching,
		SearchError:              c.searchErr,
		BrowseNodes:              slices.Clone(c.browseNodes),
		Browsing:                 c.browsing,
		BrowseError:              c.browseErr,
		SelectedTenantCategoryID: c.sel.SelectedTenantCategoryID,
		Candidates:               slices.Clone(c.candidates),
		Suggestion:               c.suggestion,
		Error:                    c.formErr,
		UpdatedAt:                c.updatedAt,
	}
	if v.BrowsePath == nil {
		v.BrowsePath = []string{}
	}
	if c.sel.SelectedTaxonomyNode != nil {
		node := *c.sel.SelectedTaxonomyNode
		v.SelectedTaxonomyNode = &node
	}
	return v
}

// Snapshot returns the persistable part of the controller state.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	sel := c.sel
	sel.BrowsePath = slices.Clone(c.sel.BrowsePath)
	if c.sel.SelectedTaxonomyNode != nil {
		node := *c.sel.SelectedTaxonomyNode
		sel.SelectedTaxonomyNode = &node
	}

	return domain.Snapshot{
		SessionID:         c.sessionID,
		TenantID:          c.tenantID,
		ItemID:            c.itemID,
		Selection:         sel,
		Candidates:        slices.Clone(c.candidates),
		Suggestion:        c.suggestion,
		CreatedCategoryID: c.createdID,
		CreatedAt:         c.createdAt,
		UpdatedAt:         c.updatedAt,
	}
}
