package domain

import (
	"fmt"
	"time"
)

type Mode string

func (m Mode) String() string {
	return string(m)
}

const (
	ModeSearch Mode = "search"
	ModeBrowse Mode = "browse"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSearch, ModeBrowse:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Selection is the in-progress choice of one assignment dialog.
// SelectedTaxonomyNode and SelectedTenantCategoryID are independent: a node without a
// matching tenant category has no category id until creation is confirmed.
type Selection struct {
	Mode                     Mode          `json:"mode"`
	Query                    string        `json:"query"`
	BrowsePath               []string      `json:"browsePath"`
	SelectedTaxonomyNode     *TaxonomyNode `json:"selectedTaxonomyNode,omitempty"`
	SelectedTenantCategoryID string        `json:"selectedTenantCategoryId,omitempty"`
}

// Snapshot is the persisted form of an assignment session.
type Snapshot struct {
	SessionID         string           `json:"sessionId"`
	TenantID          string           `json:"tenantId"`
	ItemID            string           `json:"itemId"`
	Selection         Selection        `json:"selection"`
	Candidates        []TenantCategory `json:"candidates,omitempty"`
	Suggestion        string           `json:"suggestion,omitempty"`
	CreatedCategoryID string           `json:"createdCategoryId,omitempty"` // Category created in this session
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}
