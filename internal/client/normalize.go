package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront/categorizer/internal/domain"
)

// The taxonomy endpoints have answered with several shapes over time:
//
//	{"results": [...]}
//	{"success": true, "categories": [...]}
//	[...]
//
// with ids as strings or numbers and paths as arrays or "A > B" strings.
// Everything is funnelled through decodeTaxonomy and rawNode.normalize.

type rawNode struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	Path        json.RawMessage `json:"path"`
	FullPath    string          `json:"fullPath"`
	HasChildren *bool           `json:"hasChildren"`
	HasChildSC  *bool           `json:"has_children"`
}

type taxonomyEnvelope struct {
	Success    *bool     `json:"success"`
	Error      string    `json:"error"`
	Results    []rawNode `json:"results"`
	Categories []rawNode `json:"categories"`
}

var errUnsuccessful = errors.New("backend reported an unsuccessful lookup")

// decodeTaxonomy returns the raw node list of any tolerated response shape.
func decodeTaxonomy(body []byte) ([]rawNode, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}

	if trimmed[0] == '[' {
		var nodes []rawNode
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return nil, fmt.Errorf("failed to decode taxonomy list: %w", err)
		}
		return nodes, nil
	}

	var env taxonomyEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("failed to decode taxonomy response: %w", err)
	}

	if env.Success != nil && !*env.Success {
		if env.Error != "" {
			return nil, fmt.Errorf("%w: %s", errUnsuccessful, env.Error)
		}
		return nil, errUnsuccessful
	}

	if env.Results != nil {
		return env.Results, nil
	}
	return env.Categories, nil
}

// normalize converts r into the canonical node. A missing path is left nil for the
// caller to derive; a node without id or name is rejected.
func (r rawNode) normalize() (domain.TaxonomyNode, error) {
	id, err := rawID(r.ID)
	if err != nil {
		return domain.TaxonomyNode{}, err
	}

	name := strings.TrimSpace(r.Name)
	if id == "" || name == "" {
		return domain.TaxonomyNode{}, fmt.Errorf("taxonomy node %q has no id or name", id)
	}

	path, err := rawPath(r.Path)
	if err != nil {
		return domain.TaxonomyNode{}, fmt.Errorf("taxonomy node %s: %w", id, err)
	}
	if path == nil && r.FullPath != "" {
		path = domain.SplitPath(r.FullPath)
	}

	node := domain.TaxonomyNode{
		ID:   id,
		Name: name,
		Path: path,
	}
	switch {
	case r.HasChildren != nil:
		node.HasChildren = *r.HasChildren
	case r.HasChildSC != nil:
		node.HasChildren = *r.HasChildSC
	}

	return node, nil
}

func rawID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("unsupported id %s", string(raw))
}

func rawPath(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var segments []string
	if err := json.Unmarshal(raw, &segments); err == nil {
		return segments, nil
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return domain.SplitPath(joined), nil
	}

	return nil, fmt.Errorf("unsupported path %s", string(raw))
}
