package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/snapetech/iptv-portal/internal/errs"
	"github.com/snapetech/iptv-portal/internal/provider"
)

func testBinding(srvURL string) *provider.Binding {
	return &provider.Binding{
		APIBase:         srvURL + "/player_api.php?username=u&password=p",
		AccountUsername: "u",
		AccountPassword: "p",
	}
}

func liveServer(t *testing.T, fetches *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("action") {
		case "get_live_streams":
			w.Write([]byte(`[
				{"stream_id": 10, "num": 1, "name": "BBC One", "category_id": "5", "stream_icon": "http://x/bbc.png"},
				{"stream_id": "11", "num": "2", "name": "ITV", "category_id": 6}
			]`))
		case "get_live_categories":
			w.Write([]byte(`[
				{"category_id": "5", "category_name": "UK"},
				{"category_id": 6, "category_name": "UK"}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestGet_fetchesAndDecodes(t *testing.T) {
	var fetches atomic.Int32
	srv := liveServer(t, &fetches)
	defer srv.Close()

	s := NewStore(testBinding(srv.URL), srv.Client(), "ua", 100, nil)
	c := s.Get(context.Background(), Live)
	if c.Err != nil {
		t.Fatal(c.Err)
	}
	if len(c.Entries) != 2 {
		t.Fatalf("entries: %d", len(c.Entries))
	}
	e := c.Entries[0]
	if e.ID != "10" || e.Name != "BBC One" || e.CategoryID != "5" || e.ChannelNumber != 1 {
		t.Errorf("entry[0]: %+v", e)
	}
	if c.Entries[1].ID != "11" || c.Entries[1].CategoryID != "6" || c.Entries[1].ChannelNumber != 2 {
		t.Errorf("entry[1]: %+v", c.Entries[1])
	}
	if c.Categories["5"] != "UK" || c.Categories["6"] != "UK" {
		t.Errorf("categories: %v", c.Categories)
	}
	if names := c.CategoryNames(); len(names) != 1 || names[0] != "UK" {
		t.Errorf("CategoryNames: %v (shared display name must collapse)", names)
	}
}

func TestGet_memoizedUntilReset(t *testing.T) {
	var fetches atomic.Int32
	srv := liveServer(t, &fetches)
	defer srv.Close()

	s := NewStore(testBinding(srv.URL), srv.Client(), "ua", 100, nil)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		s.Get(ctx, Live)
	}
	if n := fetches.Load(); n != 2 { // streams + categories, once
		t.Errorf("upstream calls: %d, want 2", n)
	}

	s.Reset(Live)
	s.Get(ctx, Live)
	if n := fetches.Load(); n != 4 {
		t.Errorf("upstream calls after reset: %d, want 4", n)
	}

	s.ResetAll()
	s.Get(ctx, Live)
	if n := fetches.Load(); n != 6 {
		t.Errorf("upstream calls after ResetAll: %d, want 6", n)
	}
}

func TestGet_failureDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewStore(testBinding(srv.URL), srv.Client(), "ua", 100, nil)
	c := s.Get(context.Background(), Vod)
	if len(c.Entries) != 0 || len(c.Categories) != 0 {
		t.Errorf("expected empty cache, got %d entries / %d categories", len(c.Entries), len(c.Categories))
	}
	if errs.KindOf(c.Err) != errs.CatalogFetchFailed {
		t.Errorf("Err = %v", c.Err)
	}
}

func TestGet_halfFailureIsAllOrNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "get_vod_streams" {
			w.Write([]byte(`[{"stream_id": 1, "name": "A Movie", "category_id": "9"}]`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError) // categories fail
	}))
	defer srv.Close()

	s := NewStore(testBinding(srv.URL), srv.Client(), "ua", 100, nil)
	c := s.Get(context.Background(), Vod)
	if len(c.Entries) != 0 {
		t.Errorf("partial cache visible: %d entries", len(c.Entries))
	}
	if c.Err == nil {
		t.Error("expected recorded failure")
	}
}

func TestKindActions(t *testing.T) {
	if Series.streamsAction() != "get_series" {
		t.Errorf("series action: %s", Series.streamsAction())
	}
	if Vod.streamsAction() != "get_vod_streams" || Live.categoriesAction() != "get_live_categories" {
		t.Error("action names drifted")
	}
}

func TestParseKind(t *testing.T) {
	for s, want := range map[string]Kind{"live": Live, "VOD": Vod, " series ": Series} {
		if k, ok := ParseKind(s); !ok || k != want {
			t.Errorf("ParseKind(%q) = %q, %v", s, k, ok)
		}
	}
	if _, ok := ParseKind("radio"); ok {
		t.Error("ParseKind should reject unknown kinds")
	}
}
