// Package orderstatus shows a placed order with per-dish status. Initial load and
// manual refresh are tracked separately, and failures stay inline on the view.
package orderstatus

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"xquisito-tap/internal/domain"
)

type API interface {
	GetTapOrder(ctx context.Context, tapOrderID string) (domain.TapOrder, error)
}

// View is what the confirmation screen renders. Order keeps the last good fetch
// even when Err is set.
type View struct {
	Order      *domain.TapOrder `json:"order,omitempty"`
	Summary    *Summary         `json:"summary,omitempty"`
	Loading    bool             `json:"loading"`
	Refreshing bool             `json:"refreshing"`
	Err        error            `json:"-"`
	Error      string           `json:"error,omitempty"`
	FetchedAt  time.Time        `json:"fetchedAt,omitempty"`
}

type entry struct {
	mu   sync.Mutex
	view View
}

// viewKey scopes a view to the device that opened it. The device's credentials
// fetched the order, so its view is never served to another device.
type viewKey struct {
	device  string
	orderID string
}

// Viewer keeps the latest view per device and order so a concurrent reader sees the in-flight flags.
type Viewer struct {
	views  *lru.Cache
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

func NewViewer(size int, logger *zap.Logger) (*Viewer, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("init order views: %w", err)
	}
	return &Viewer{views: cache, logger: logger, now: time.Now}, nil
}

func (v *Viewer) entry(device, orderID string) *entry {
	k := viewKey{device: device, orderID: orderID}
	v.mu.Lock()
	defer v.mu.Unlock()
	if e, ok := v.views.Get(k); ok {
		return e.(*entry)
	}
	e := &entry{}
	v.views.Add(k, e)
	return e
}

// Current returns the stored view without any network call.
func (v *Viewer) Current(device, orderID string) View {
	e := v.entry(device, orderID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// Fetch is the initial load. A view that already holds an order is returned as is.
func (v *Viewer) Fetch(ctx context.Context, api API, device, orderID string) View {
	e := v.entry(device, orderID)
	e.mu.Lock()
	if e.view.Order != nil || e.view.Loading || e.view.Refreshing {
		view := e.view
		e.mu.Unlock()
		return view
	}
	e.view.Loading = true
	e.mu.Unlock()
	return v.load(ctx, api, device, orderID, e)
}

// Refresh re-fetches on demand. The previous order stays visible meanwhile.
func (v *Viewer) Refresh(ctx context.Context, api API, device, orderID string) View {
	e := v.entry(device, orderID)
	e.mu.Lock()
	if e.view.Loading || e.view.Refreshing {
		view := e.view
		e.mu.Unlock()
		return view
	}
	if e.view.Order == nil {
		e.view.Loading = true
	} else {
		e.view.Refreshing = true
	}
	e.mu.Unlock()
	return v.load(ctx, api, device, orderID, e)
}

func (v *Viewer) load(ctx context.Context, api API, device, orderID string, e *entry) View {
	order, err := api.GetTapOrder(ctx, orderID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Loading = false
	e.view.Refreshing = false
	if err != nil {
		v.logger.Warn("orderstatus: fetch failed", zap.String("device", device), zap.String("order_id", orderID), zap.Error(err))
		e.view.Err = err
		e.view.Error = err.Error()
		return e.view
	}
	s := Summarize(order)
	e.view.Order = &order
	e.view.Summary = &s
	e.view.Err = nil
	e.view.Error = ""
	e.view.FetchedAt = v.now()
	return e.view
}
