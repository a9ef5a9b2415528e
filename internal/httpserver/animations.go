package httpserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"

	"xquisito-tap/internal/checkout"
	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/navigation"
)

// animationEntry is the processing affordance of one device plus where it navigates to.
type animationEntry struct {
	anim *checkout.Animation

	mu         sync.Mutex
	navigateTo string
}

type animations struct {
	minDisplay time.Duration
	cache      *lru.Cache
	mu         sync.Mutex
}

func newAnimations(size int, minDisplay time.Duration) (*animations, error) {
	if size <= 0 {
		size = 4096
	}
	if minDisplay <= 0 {
		minDisplay = 2 * time.Second
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("init animation registry: %w", err)
	}
	return &animations{minDisplay: minDisplay, cache: cache}, nil
}

// start replaces the device's affordance with a fresh one for the scope.
func (a *animations) start(device string, scope domain.Scope) *checkout.Animation {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.cache.Get(device); ok {
		v.(*animationEntry).anim.Cancel()
	}
	e := &animationEntry{}
	e.anim = checkout.NewAnimation(a.minDisplay, func(orderID string) {
		e.mu.Lock()
		e.navigateTo = navigation.Scoped(scope, "/order-confirmation/"+orderID)
		e.mu.Unlock()
	})
	a.cache.Add(device, e)
	return e.anim
}

func (a *animations) get(device string) (*animationEntry, bool) {
	v, ok := a.cache.Get(device)
	if !ok {
		return nil, false
	}
	return v.(*animationEntry), true
}

func (a *animations) drop(device string) {
	if e, ok := a.get(device); ok {
		e.anim.Cancel()
	}
	a.cache.Remove(device)
}

type animationResponse struct {
	State      checkout.AnimationState `json:"state"`
	OrderID    string                  `json:"orderId,omitempty"`
	NavigateTo string                  `json:"navigateTo,omitempty"`
}

func (h *handlers) getAnimation(c *gin.Context) {
	e, ok := h.animations.get(deviceFrom(c))
	if !ok {
		respond(c, http.StatusOK, animationResponse{State: checkout.AnimationIdle})
		return
	}
	e.mu.Lock()
	to := e.navigateTo
	e.mu.Unlock()
	respond(c, http.StatusOK, animationResponse{State: e.anim.State(), OrderID: e.anim.OrderID(), NavigateTo: to})
}

// cancelAnimation is called when the confirmation view unmounts.
func (h *handlers) cancelAnimation(c *gin.Context) {
	h.animations.drop(deviceFrom(c))
	c.Status(http.StatusNoContent)
}
