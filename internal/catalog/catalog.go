// Package catalog stores the distributor's SKU list and answers semantic
// similarity queries against it for the matching stage.
package catalog

import (
	"context"
	"fmt"
	"strings"
)

// SKU is one catalog entry.
type SKU struct {
	ID       string  `json:"sku_id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Specs    string  `json:"specs"`
	BaseCost float64 `json:"base_cost"`
	Unit     string  `json:"unit"`
}

// Candidate is a SKU returned from a similarity search.
type Candidate struct {
	SKU
	Similarity float64 `json:"similarity_score"`
}

// Searcher answers similarity queries over the catalog.
type Searcher interface {
	// Search returns the topK most similar SKUs to query, ordered by
	// descending similarity. category, when non-empty, restricts the
	// candidate set to that category.
	Search(ctx context.Context, query string, topK int, category string) ([]Candidate, error)
}

// SearchableText renders a SKU into the descriptive string that gets
// embedded. Specs of the form "key: value, key: value" are expanded into
// labeled fragments; anything else is kept verbatim.
func SearchableText(s SKU) string {
	parts := []string{
		"Product Name: " + s.Name,
		"Category: " + s.Category,
	}

	expanded := false
	if strings.Contains(s.Specs, ":") {
		expanded = true
		for _, frag := range strings.Split(s.Specs, ",") {
			key, value, ok := strings.Cut(frag, ":")
			if !ok {
				expanded = false
				break
			}
			key = strings.TrimSpace(key)
			if key != "" {
				key = strings.ToUpper(key[:1]) + key[1:]
			}
			parts = append(parts, fmt.Sprintf("%s: %s", key, strings.TrimSpace(value)))
		}
	}
	if !expanded {
		parts = parts[:2]
		parts = append(parts, "Specifications: "+s.Specs)
	}

	parts = append(parts, "Packaging Unit: "+s.Unit)
	return strings.Join(parts, ", ")
}
