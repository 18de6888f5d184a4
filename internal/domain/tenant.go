package domain

// TenantCategory is a store-owned classification record.
type TenantCategory struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Slug             string  `json:"slug"`
	GoogleCategoryID *string `json:"googleCategoryId,omitempty"` // Set when the category is mapped to a taxonomy node
	ParentID         *string `json:"parentId,omitempty"`
}

// IsMappedTo reports whether the category references the given taxonomy node.
func (c TenantCategory) IsMappedTo(nodeID string) bool {
	return c.GoogleCategoryID != nil && *c.GoogleCategoryID == nodeID
}

// NewCategory is the body of a tenant category creation request.
type NewCategory struct {
	Name             string `json:"name"`
	GoogleCategoryID string `json:"googleCategoryId,omitempty"`
}
