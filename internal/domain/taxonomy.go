package domain

import "strings"

// PathSeparator joins taxonomy path segments, matching the Google product taxonomy text format.
const PathSeparator = " > "

// TaxonomyNode is one node of the external, read-only taxonomy tree.
type TaxonomyNode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Path        []string `json:"path"`                  // Root to this node, inclusive
	HasChildren bool     `json:"hasChildren,omitempty"` // Browse results only
}

// Breadcrumb renders the node path as "A > B > C".
func (n TaxonomyNode) Breadcrumb() string {
	return JoinPath(n.Path)
}

// JoinPath renders a path using PathSeparator.
func JoinPath(path []string) string {
	return strings.Join(path, PathSeparator)
}

// SplitPath is the inverse of JoinPath. Blank segments are dropped.
func SplitPath(s string) []string {
	parts := strings.Split(s, PathSeparator)
	path := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			path = append(path, p)
		}
	}
	return path
}

// ChildPath returns parent extended by name without aliasing parent's backing array.
func ChildPath(parent []string, name string) []string {
	path := make([]string, 0, len(parent)+1)
	path = append(path, parent...)
	return append(path, name)
}

// SamePath reports whether a and b are element-wise equal.
func SamePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
