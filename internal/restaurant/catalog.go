package restaurant

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/domain"
)

// API is the part of the backend the restaurant context reads.
type API interface {
	GetComplete(ctx context.Context, id int) (domain.RestaurantSnapshot, error)
	ValidateAccess(ctx context.Context, restaurantID, branch int, table string) (backend.Validation, error)
}

type cachedSnapshot struct {
	snapshot  domain.RestaurantSnapshot
	expiresAt time.Time
}

// Catalog caches combined restaurant snapshots so every device at a restaurant shares one fetch.
type Catalog struct {
	api    API
	cache  *lru.Cache
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewCatalog(api API, ttl time.Duration, size int, logger *zap.Logger) (*Catalog, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("init snapshot cache: %w", err)
	}
	return &Catalog{
		api:    api,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
		locks:  make(map[int]*sync.Mutex),
	}, nil
}

func (c *Catalog) cached(id int) (domain.RestaurantSnapshot, bool) {
	v, ok := c.cache.Get(id)
	if !ok {
		return domain.RestaurantSnapshot{}, false
	}
	entry := v.(cachedSnapshot)
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		c.cache.Remove(id)
		return domain.RestaurantSnapshot{}, false
	}
	return entry.snapshot, true
}

func (c *Catalog) lockFor(id int) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

// Snapshot returns restaurant metadata and menu, loading it at most once per expiry per id.
func (c *Catalog) Snapshot(ctx context.Context, id int) (domain.RestaurantSnapshot, error) {
	if snap, ok := c.cached(id); ok {
		return snap, nil
	}

	l := c.lockFor(id)
	l.Lock()
	defer l.Unlock()

	if snap, ok := c.cached(id); ok {
		return snap, nil
	}
	snap, err := c.api.GetComplete(ctx, id)
	if err != nil {
		if backend.IsStatus(err, 404) {
			return domain.RestaurantSnapshot{}, fmt.Errorf("restaurant %d: %w", id, domain.ErrNotFound)
		}
		return domain.RestaurantSnapshot{}, fmt.Errorf("load restaurant %d: %w", id, err)
	}
	c.cache.Add(id, cachedSnapshot{snapshot: snap, expiresAt: c.now().Add(c.ttl)})
	c.logger.Debug("restaurant: snapshot loaded", zap.Int("restaurant_id", id), zap.Int("sections", len(snap.Menu)))
	return snap, nil
}

// Invalidate drops a cached snapshot.
func (c *Catalog) Invalidate(id int) {
	c.cache.Remove(id)
}
