package assignment

import "storefront/categorizer/internal/domain"

type ResolutionKind int

const (
	NoMatch ResolutionKind = iota
	SingleMatch
	MultipleMatches
)

func (k ResolutionKind) String() string {
	switch k {
	case SingleMatch:
		return "single"
	case MultipleMatches:
		return "multiple"
	default:
		return "none"
	}
}

func (k ResolutionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Resolution is the outcome of matching a taxonomy node against the tenant's categories.
type Resolution struct {
	Matches []domain.TenantCategory `json:"matches"`
}

func (r Resolution) Kind() ResolutionKind {
	switch len(r.Matches) {
	case 0:
		return NoMatch
	case 1:
		return SingleMatch
	default:
		return MultipleMatches
	}
}

// Category returns the match when there is exactly one.
func (r Resolution) Category() (domain.TenantCategory, bool) {
	if len(r.Matches) != 1 {
		return domain.TenantCategory{}, false
	}
	return r.Matches[0], true
}

// ResolveExistingCategory scans an already-loaded category list for categories mapped
// to nodeID. Duplicate mappings are all returned, in list order.
func ResolveExistingCategory(nodeID string, categories []domain.TenantCategory) Resolution {
	var matches []domain.TenantCategory
	for _, c := range categories {
		if c.IsMappedTo(nodeID) {
			matches = append(matches, c)
		}
	}
	return Resolution{Matches: matches}
}
