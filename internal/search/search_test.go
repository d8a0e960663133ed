package search

import (
	"reflect"
	"testing"

	"github.com/snapetech/iptv-portal/internal/catalog"
)

func sampleCache() *catalog.Cache {
	return &catalog.Cache{
		Kind: catalog.Live,
		Entries: []catalog.Entry{
			{ID: "1", Name: "BBC One HD", CategoryID: "10"},
			{ID: "2", Name: "Sky Sports", CategoryID: "20"},
			{ID: "3", Name: "BBC Two", CategoryID: "11"},
			{ID: "4", Name: "ESPN", CategoryID: "20"},
		},
		Categories: map[string]string{
			"10": "UK",
			"11": "UK", // same display name, different id
			"20": "Sports",
		},
	}
}

func names(entries []catalog.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// filter(catalog, "all", "") is the identity.
func TestFilter_identity(t *testing.T) {
	c := sampleCache()
	got := Filter(c, CategoryAll, "")
	if !reflect.DeepEqual(got, c.Entries) {
		t.Errorf("identity broken: %v", names(got))
	}
	got = Filter(c, "", "")
	if !reflect.DeepEqual(got, c.Entries) {
		t.Errorf("empty category not identity: %v", names(got))
	}
}

func TestFilter_categoryNameSpansIDs(t *testing.T) {
	got := Filter(sampleCache(), "UK", "")
	want := []string{"BBC One HD", "BBC Two"}
	if !reflect.DeepEqual(names(got), want) {
		t.Errorf("UK filter: %v, want %v", names(got), want)
	}
}

func TestFilter_queryCaseInsensitiveSubstring(t *testing.T) {
	got := Filter(sampleCache(), CategoryAll, "bbc")
	if !reflect.DeepEqual(names(got), []string{"BBC One HD", "BBC Two"}) {
		t.Errorf("query bbc: %v", names(got))
	}
	got = Filter(sampleCache(), CategoryAll, "SPORTS")
	if !reflect.DeepEqual(names(got), []string{"Sky Sports"}) {
		t.Errorf("query SPORTS: %v", names(got))
	}
}

func TestFilter_categoryAndQueryCombine(t *testing.T) {
	got := Filter(sampleCache(), "UK", "two")
	if !reflect.DeepEqual(names(got), []string{"BBC Two"}) {
		t.Errorf("combined: %v", names(got))
	}
}

func TestFilter_orderPreserved(t *testing.T) {
	got := Filter(sampleCache(), "Sports", "")
	if !reflect.DeepEqual(names(got), []string{"Sky Sports", "ESPN"}) {
		t.Errorf("order: %v", names(got))
	}
}

// Filtering an already-filtered result with the same filters is a no-op.
func TestFilter_idempotent(t *testing.T) {
	c := sampleCache()
	once := Filter(c, "UK", "bbc")
	again := Filter(&catalog.Cache{Kind: c.Kind, Entries: once, Categories: c.Categories}, "UK", "bbc")
	if !reflect.DeepEqual(once, again) {
		t.Errorf("not idempotent: %v vs %v", names(once), names(again))
	}
}

func TestFilter_emptyCatalog(t *testing.T) {
	c := &catalog.Cache{Kind: catalog.Vod, Categories: map[string]string{}}
	if got := Filter(c, CategoryAll, "anything"); len(got) != 0 {
		t.Errorf("empty catalog: %v", got)
	}
}

func TestFilter_unknownCategoryMatchesNothing(t *testing.T) {
	if got := Filter(sampleCache(), "Nope", ""); len(got) != 0 {
		t.Errorf("unknown category: %v", names(got))
	}
}
