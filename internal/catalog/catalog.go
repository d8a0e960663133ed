// Package catalog lazily fetches and memoizes the three provider content
// catalogs (live, vod, series) with their category maps.
package catalog

import (
	"strconv"
	"strings"
	"time"
)

// Kind selects one of the provider's content catalogs.
type Kind string

const (
	Live   Kind = "live"
	Vod    Kind = "vod"
	Series Kind = "series"
)

// Kinds lists all catalog kinds in display order.
func Kinds() []Kind { return []Kind{Live, Vod, Series} }

// ParseKind maps a user-supplied kind string; ok is false for anything
// outside the three catalogs.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Live:
		return Live, true
	case Vod:
		return Vod, true
	case Series:
		return Series, true
	}
	return "", false
}

// streamsAction and categoriesAction are the player_api action values per
// kind. Series uses get_series, not get_series_streams.
func (k Kind) streamsAction() string {
	if k == Series {
		return "get_series"
	}
	return "get_" + string(k) + "_streams"
}

func (k Kind) categoriesAction() string {
	return "get_" + string(k) + "_categories"
}

// Entry is one catalog row: a channel, movie, or show.
type Entry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"category_id"`
	IconURL    string `json:"icon_url,omitempty"`
	// ChannelNumber is set for live entries only.
	ChannelNumber int `json:"channel_number,omitempty"`
}

// Cache is one fetched catalog. Entries and Categories are populated
// together or both empty; a half-fetched catalog is never visible.
// Err records why an empty cache is empty ("no data" and "fetch failed"
// must stay distinguishable). Entries are immutable once fetched.
type Cache struct {
	Kind       Kind
	Entries    []Entry
	Categories map[string]string // category_id → category_name
	FetchedAt  time.Time
	Err        error // CatalogFetchFailed cause, nil on a clean fetch
}

// CategoryNames returns the distinct category names sorted order-free;
// duplicates collapse (two ids may share a display name).
func (c *Cache) CategoryNames() []string {
	seen := make(map[string]bool, len(c.Categories))
	out := make([]string, 0, len(c.Categories))
	for _, name := range c.Categories {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// anyToStr renders the string-or-number ids player_api mixes freely.
func anyToStr(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	}
	return ""
}

func anyToInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(x))
		return n
	}
	return 0
}
