package event

import "time"

const TypeCategoryAssigned = "CategoryAssigned"

// CategoryAssigned is emitted after a tenant category was applied to an item.
type CategoryAssigned struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	TenantID         string    `json:"tenant_id"`
	ItemID           string    `json:"item_id"`
	CategoryID       string    `json:"category_id"`
	GoogleCategoryID string    `json:"google_category_id,omitempty"` // Empty when no taxonomy node was picked
	Created          bool      `json:"created"`                      // Category was created in this session
	OccurredAt       time.Time `json:"occurred_at"`
}

func (e *CategoryAssigned) EventType() string {
	return TypeCategoryAssigned
}

func (e *CategoryAssigned) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}
