// Package restaurant holds the restaurant/table context of a device: the
// current restaurant snapshot, table access validation and opening hours.
package restaurant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/domain"
)

// ErrSuperseded is returned by SetRestaurant when a later call replaced the requested id.
var ErrSuperseded = errors.New("restaurant: superseded by a newer selection")

// RecomputeInterval is how often cached open state is refreshed.
const RecomputeInterval = 60 * time.Second

// Validation error kinds.
const (
	KindRestaurantNotFound = "restaurant_not_found"
	KindBranchNotFound     = "branch_not_found"
	KindTableNotFound      = "table_not_found"
	KindInvalidParams      = "invalid_params"
	KindNetwork            = "network"
)

// Validation is the outcome of ValidateAccess. Callers render ErrorKind instead of falling back.
type Validation struct {
	Valid     bool   `json:"valid"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Context is the restaurant state of one device.
type Context struct {
	catalog *Catalog
	loc     *time.Location
	now     func() time.Time

	mu         sync.RWMutex
	generation uint64
	current    int
	snapshot   *domain.RestaurantSnapshot
	open       bool
}

// SetRestaurant loads the combined snapshot for id. The last call wins: a response for
// an id that was replaced while in flight is dropped and ErrSuperseded is returned.
func (c *Context) SetRestaurant(ctx context.Context, id int) (domain.RestaurantSnapshot, error) {
	c.mu.Lock()
	if c.current == id && c.snapshot != nil {
		snap := *c.snapshot
		c.mu.Unlock()
		return snap, nil
	}
	c.generation++
	gen := c.generation
	c.current = id
	c.mu.Unlock()

	snap, err := c.catalog.Snapshot(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return domain.RestaurantSnapshot{}, ErrSuperseded
	}
	if err != nil {
		c.snapshot = nil
		return domain.RestaurantSnapshot{}, err
	}
	c.snapshot = &snap
	c.open = IsOpenAt(snap.Restaurant.OpeningHours, c.loc, c.now())
	return snap, nil
}

// Snapshot returns the loaded snapshot, if any.
func (c *Context) Snapshot() (domain.RestaurantSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return domain.RestaurantSnapshot{}, false
	}
	return *c.snapshot, true
}

func (c *Context) RestaurantID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// IsOpen is the cached value, refreshed by Recompute.
func (c *Context) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot != nil && c.open
}

// IsOpenNow re-reads the wall clock. Gated actions must use this, not IsOpen.
func (c *Context) IsOpenNow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return false
	}
	c.open = IsOpenAt(c.snapshot.Restaurant.OpeningHours, c.loc, c.now())
	return c.open
}

// Recompute refreshes the cached open state without reloading the snapshot.
func (c *Context) Recompute() {
	c.IsOpenNow()
}

// Registry hands out one Context per device and keeps their open state fresh.
type Registry struct {
	catalog *Catalog
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
	cache   *lru.Cache

	mu sync.Mutex
}

func NewRegistry(catalog *Catalog, loc *time.Location, size int, logger *zap.Logger) (*Registry, error) {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Registry{catalog: catalog, loc: loc, now: time.Now, logger: logger, cache: cache}, nil
}

// For returns the context of a device, creating it on first use.
func (r *Registry) For(device string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(device); ok {
		return v.(*Context)
	}
	c := &Context{catalog: r.catalog, loc: r.loc, now: r.now}
	r.cache.Add(device, c)
	return c
}

// Drop forgets a device context.
func (r *Registry) Drop(device string) {
	r.cache.Remove(device)
}

// Run recomputes every live context on a ticker until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = RecomputeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keys := r.cache.Keys()
			for _, k := range keys {
				if v, ok := r.cache.Peek(k); ok {
					v.(*Context).Recompute()
				}
			}
			r.logger.Debug("restaurant: open state recomputed", zap.Int("contexts", len(keys)))
		}
	}
}

// ValidateAccess checks a restaurant/branch/table triple against the backend.
func (r *Registry) ValidateAccess(ctx context.Context, restaurantID, branch int, table string) Validation {
	if restaurantID <= 0 || branch <= 0 || strings.TrimSpace(table) == "" {
		return Validation{ErrorKind: KindInvalidParams}
	}
	res, err := r.catalog.api.ValidateAccess(ctx, restaurantID, branch, table)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			if kind := kindOf(apiErr.Type, apiErr.Message); kind != "" {
				return Validation{ErrorKind: kind}
			}
			if apiErr.Status == 404 {
				return Validation{ErrorKind: KindRestaurantNotFound}
			}
			if apiErr.Status == 400 {
				return Validation{ErrorKind: KindInvalidParams}
			}
		}
		r.logger.Warn("restaurant: validate access", zap.Int("restaurant_id", restaurantID), zap.Error(err))
		return Validation{ErrorKind: KindNetwork}
	}
	if !res.Valid {
		kind := kindOf(res.Error, res.Error)
		if kind == "" {
			kind = KindTableNotFound
		}
		return Validation{ErrorKind: kind}
	}
	return Validation{Valid: true}
}

func kindOf(values ...string) string {
	for _, v := range values {
		v = strings.ToLower(v)
		switch {
		case strings.Contains(v, "restaurant"):
			return KindRestaurantNotFound
		case strings.Contains(v, "branch"):
			return KindBranchNotFound
		case strings.Contains(v, "table"):
			return KindTableNotFound
		case strings.Contains(v, "invalid"):
			return KindInvalidParams
		}
	}
	return ""
}
