package event

import "time"

const TypeCategoryCreated = "CategoryCreated"

// CategoryCreated is emitted after a tenant confirmed creation of a category from a taxonomy node.
type CategoryCreated struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	CategoryID       string    `json:"category_id"`
	Name             string    `json:"name"`
	GoogleCategoryID string    `json:"google_category_id"`
	TaxonomyPath     []string  `json:"taxonomy_path"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func (e *CategoryCreated) EventType() string {
	return TypeCategoryCreated
}

func (e *CategoryCreated) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}
