package assignment

import (
	"testing"

	"storefront/categorizer/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestResolveExistingCategory(t *testing.T) {
	categories := []domain.TenantCategory{
		{ID: "cat-1", Name: "Misc"},
		{ID: "cat-9", Name: "Garden", GoogleCategoryID: strPtr("5904")},
		{ID: "cat-10", Name: "Phones", GoogleCategoryID: strPtr("267")},
		{ID: "cat-11", Name: "Mobile", GoogleCategoryID: strPtr("267")},
	}

	tests := []struct {
		name    string
		nodeID  string
		kind    ResolutionKind
		matches []string
	}{
		{"no mapping", "166", NoMatch, nil},
		{"single mapping", "5904", SingleMatch, []string{"cat-9"}},
		{"duplicate mappings", "267", MultipleMatches, []string{"cat-10", "cat-11"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveExistingCategory(tt.nodeID, categories)
			assert.Equal(t, tt.kind, res.Kind())

			var ids []string
			for _, m := range res.Matches {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.matches, ids)
		})
	}
}

func TestResolutionCategory(t *testing.T) {
	_, ok := ResolveExistingCategory("1", nil).Category()
	assert.False(t, ok)

	c, ok := ResolveExistingCategory("5904", []domain.TenantCategory{{ID: "cat-9", GoogleCategoryID: strPtr("5904")}}).Category()
	assert.True(t, ok)
	assert.Equal(t, "cat-9", c.ID)
}

func TestResolutionKindText(t *testing.T) {
	text, err := MultipleMatches.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "multiple", string(text))
	assert.Equal(t, "none", NoMatch.String())
}
