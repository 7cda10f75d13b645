package store

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ShayCichocki/proposer/pkg/models"
)

// DefaultCacheTTL is how long a fetched report stays cached.
const DefaultCacheTTL = 10 * time.Minute

// CachedStore is a read-through cache over a ReportStore.
// Reports are immutable, so a cached entry never goes stale; the TTL only
// bounds memory.
type CachedStore struct {
	next  ReportStore
	cache *gocache.Cache
	ttl   time.Duration
}

var _ ReportStore = (*CachedStore)(nil)

// NewCachedStore wraps next with an in-memory cache.
func NewCachedStore(next ReportStore, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		next:  next,
		cache: gocache.New(ttl, 3*ttl),
		ttl:   ttl,
	}
}

// Save stores the report and primes the cache with it.
func (c *CachedStore) Save(ctx context.Context, requestID, brief, body string) (*models.Report, error) {
	r, err := c.next.Save(ctx, requestID, brief, body)
	if err != nil {
		return nil, err
	}
	c.cache.Set(r.ID, *r, c.ttl)
	return r, nil
}

// List always reads through; listings change with every save.
func (c *CachedStore) List(ctx context.Context, opts ListOptions) ([]models.Report, error) {
	return c.next.List(ctx, opts)
}

// Get returns the cached report or loads it from the underlying store.
func (c *CachedStore) Get(ctx context.Context, id string) (*models.Report, error) {
	if v, found := c.cache.Get(id); found {
		if r, ok := v.(models.Report); ok {
			slog.Debug("report cache hit", "report_id", id)
			return &r, nil
		}
		slog.Error("wrong type in report cache", "report_id", id)
	}

	r, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(id, *r, c.ttl)
	return r, nil
}

// Len returns the number of cached reports.
func (c *CachedStore) Len() int {
	return c.cache.ItemCount()
}
