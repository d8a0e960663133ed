// Package search applies category and text filters to a cached catalog.
// Filtering is a pure function of (catalog, filters); nothing here
// mutates the cache or talks to the network.
package search

import (
	"strings"

	"github.com/snapetech/iptv-portal/internal/catalog"
)

// CategoryAll selects every category.
const CategoryAll = "all"

// Filter returns the entries matching the category and query filters.
//
// Category matches by display name, not id: every category_id whose
// mapped name equals category is included (distinct ids can share a
// name). Query is a case-insensitive substring match on the entry name.
// Source order is preserved and the result size is not capped; display
// truncation is the caller's concern.
func Filter(c *catalog.Cache, category, query string) []catalog.Entry {
	entries := c.Entries

	if category != "" && category != CategoryAll {
		ids := idsForName(c.Categories, category)
		kept := make([]catalog.Entry, 0, len(entries))
		for _, e := range entries {
			if ids[e.CategoryID] {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	if query != "" {
		q := strings.ToLower(query)
		kept := make([]catalog.Entry, 0, len(entries))
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Name), q) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	return entries
}

func idsForName(categories map[string]string, name string) map[string]bool {
	ids := make(map[string]bool)
	for id, n := range categories {
		if n == name {
			ids[id] = true
		}
	}
	return ids
}
