package cart

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// Registry hands out one Engine per scope so every surface of a device shares it.
type Registry struct {
	mu     sync.Mutex
	cache  *lru.Cache
	logger *zap.Logger
}

func NewRegistry(size int, logger *zap.Logger) (*Registry, error) {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("init cart registry: %w", err)
	}
	return &Registry{cache: cache, logger: logger}, nil
}

// For returns the engine for key, creating it with api on first use.
func (r *Registry) For(key Key, api API) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(key); ok {
		return v.(*Engine)
	}
	e := NewEngine(api, key, r.logger)
	r.cache.Add(key, e)
	return e
}

// Forget drops every engine of an owner, e.g. after the guest identity was migrated.
func (r *Registry) Forget(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.cache.Keys() {
		if key, ok := k.(Key); ok && key.Owner == owner {
			r.cache.Remove(k)
		}
	}
}
