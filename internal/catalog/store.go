package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/snapetech/iptv-portal/internal/errs"
	"github.com/snapetech/iptv-portal/internal/metrics"
	"github.com/snapetech/iptv-portal/internal/provider"
)

// Store memoizes catalogs for one provider binding. A kind is fetched at
// most once until Reset; switching kinds and back reuses the cached copy.
// The store dies with the binding (logout or rebind discards it).
type Store struct {
	binding   *provider.Binding
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	log       *zap.Logger

	mu     sync.Mutex
	caches map[Kind]*Cache
}

// NewStore builds a store for binding. ratePerSec paces upstream fetches
// so kind flapping cannot hammer a slow reseller backend.
func NewStore(binding *provider.Binding, httpc *http.Client, userAgent string, ratePerSec float64, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		binding:   binding,
		client:    httpc,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), 2),
		log:       log,
		caches:    make(map[Kind]*Cache),
	}
}

// Get returns the cached catalog for kind, fetching it on first use.
// Fetch failure degrades to an empty cache with Err set; browsing keeps
// working with "nothing found" rather than crashing.
func (s *Store) Get(ctx context.Context, kind Kind) *Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.caches[kind]; ok {
		metrics.CatalogCacheHits.WithLabelValues(string(kind)).Inc()
		return c
	}
	c := s.fetch(ctx, kind)
	s.caches[kind] = c
	return c
}

// Reset drops the cached catalog for kind so the next Get refetches.
func (s *Store) Reset(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.caches, kind)
}

// ResetAll drops every cached catalog (logout / provider change).
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caches = make(map[Kind]*Cache)
}

// fetch issues the streams and categories calls concurrently; both must
// land before the cache entry is usable. Any failure on either side
// yields an empty cache with the failure recorded.
func (s *Store) fetch(ctx context.Context, kind Kind) *Cache {
	if err := s.limiter.Wait(ctx); err != nil {
		return s.failed(kind, err)
	}

	var (
		wg      sync.WaitGroup
		entries []Entry
		cats    map[string]string
		entErr  error
		catErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		entries, entErr = s.fetchEntries(ctx, kind)
	}()
	go func() {
		defer wg.Done()
		cats, catErr = s.fetchCategories(ctx, kind)
	}()
	wg.Wait()

	if entErr != nil || catErr != nil {
		err := entErr
		if err == nil {
			err = catErr
		}
		return s.failed(kind, err)
	}

	metrics.CatalogFetches.WithLabelValues(string(kind), "ok").Inc()
	s.log.Info("catalog fetched",
		zap.String("kind", string(kind)),
		zap.Int("entries", len(entries)),
		zap.Int("categories", len(cats)))
	return &Cache{Kind: kind, Entries: entries, Categories: cats, FetchedAt: time.Now()}
}

func (s *Store) failed(kind Kind, err error) *Cache {
	metrics.CatalogFetches.WithLabelValues(string(kind), "error").Inc()
	s.log.Warn("catalog fetch failed", zap.String("kind", string(kind)), zap.Error(err))
	return &Cache{
		Kind:       kind,
		Entries:    nil,
		Categories: map[string]string{},
		FetchedAt:  time.Now(),
		Err:        errs.Wrap(errs.CatalogFetchFailed, err),
	}
}

func (s *Store) get(ctx context.Context, action string) ([]byte, error) {
	url := s.binding.APIBase + "&action=" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", action, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *Store) fetchEntries(ctx context.Context, kind Kind) ([]Entry, error) {
	body, err := s.get(ctx, kind.streamsAction())
	if err != nil {
		return nil, err
	}
	var rows []struct {
		StreamID   any    `json:"stream_id"`
		SeriesID   any    `json:"series_id"`
		Num        any    `json:"num"`
		Name       string `json:"name"`
		CategoryID any    `json:"category_id"`
		StreamIcon string `json:"stream_icon"`
		Cover      string `json:"cover"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%s: parse: %w", kind.streamsAction(), err)
	}
	entries := make([]Entry, 0, len(rows))
	for i, r := range rows {
		id := anyToStr(r.StreamID)
		if id == "" {
			id = anyToStr(r.SeriesID)
		}
		if id == "" {
			// provider rows without any id are unusable; synthesize from position
			id = fmt.Sprintf("row-%d", i+1)
		}
		e := Entry{
			ID:         id,
			Name:       r.Name,
			CategoryID: anyToStr(r.CategoryID),
			IconURL:    r.StreamIcon,
		}
		if e.IconURL == "" {
			e.IconURL = r.Cover
		}
		if kind == Live {
			e.ChannelNumber = anyToInt(r.Num)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) fetchCategories(ctx context.Context, kind Kind) (map[string]string, error) {
	body, err := s.get(ctx, kind.categoriesAction())
	if err != nil {
		return nil, err
	}
	var rows []struct {
		CategoryID   any    `json:"category_id"`
		CategoryName string `json:"category_name"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%s: parse: %w", kind.categoriesAction(), err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		if id := anyToStr(r.CategoryID); id != "" {
			out[id] = r.CategoryName
		}
	}
	return out, nil
}
