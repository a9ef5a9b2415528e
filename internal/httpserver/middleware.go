package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/restaurant"
	"xquisito-tap/internal/session"
)

const (
	headerDeviceID     = "X-Device-ID"
	cookieDevice       = "tap_device"
	deviceCookieMaxAge = 365 * 24 * 60 * 60

	deviceCtxKey   = "device"
	scopeCtxKey    = "scope"
	snapshotCtxKey = "snapshot"
)

// deviceMiddleware identifies the browser. A missing id is minted and returned as a cookie.
func deviceMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		device := strings.TrimSpace(c.GetHeader(headerDeviceID))
		if device == "" {
			if v, err := c.Cookie(cookieDevice); err == nil {
				device = strings.TrimSpace(v)
			}
		}
		if device == "" {
			device = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieDevice, device, deviceCookieMaxAge, "/", "", secure, true)
		}
		c.Header(headerDeviceID, device)
		c.Set(deviceCtxKey, device)
		c.Next()
	}
}

func deviceFrom(c *gin.Context) string {
	return c.GetString(deviceCtxKey)
}

func (h *handlers) session(c *gin.Context) *session.Session {
	return h.deps.Sessions.Open(deviceFrom(c))
}

// api returns the backend bound to the device's credentials.
func (h *handlers) api(c *gin.Context) Backend {
	return h.deps.Dial(h.session(c))
}

// scopeCache remembers scopes that passed access validation for a while.
type scopeCache struct {
	ttl   time.Duration
	now   func() time.Time
	cache *lru.Cache
	mu    sync.Mutex
}

func newScopeCache(ttl time.Duration) (*scopeCache, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cache, err := lru.New(4096)
	if err != nil {
		return nil, err
	}
	return &scopeCache{ttl: ttl, now: time.Now, cache: cache}, nil
}

func (s *scopeCache) valid(scope domain.Scope) bool {
	v, ok := s.cache.Get(scope.Key())
	if !ok {
		return false
	}
	if s.now().After(v.(time.Time)) {
		s.cache.Remove(scope.Key())
		return false
	}
	return true
}

func (s *scopeCache) remember(scope domain.Scope) {
	s.cache.Add(scope.Key(), s.now().Add(s.ttl))
}

// scopeMiddleware resolves /:restaurantId/:branchNumber plus the table (query or stored),
// validates table access and loads the restaurant snapshot for the device.
// Invalid access is answered with the validation kind; nothing falls back silently.
func (h *handlers) scopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid, errR := strconv.Atoi(c.Param("restaurantId"))
		branch, errB := strconv.Atoi(c.Param("branchNumber"))
		if errR != nil || errB != nil || rid <= 0 || branch <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success":    false,
				"validation": restaurant.Validation{ErrorKind: restaurant.KindInvalidParams},
				"error":      errorBody{Type: restaurant.KindInvalidParams, Message: "restaurant and branch must be positive integers"},
			})
			return
		}

		ctx := c.Request.Context()
		sess := h.session(c)
		table := strings.TrimSpace(c.Query("table"))
		if table == "" {
			id, err := sess.Identity(ctx)
			if err != nil {
				writeError(c, h.logger, err)
				return
			}
			table = id.TableNumber
		}
		scope := domain.Scope{RestaurantID: rid, BranchNumber: branch, TableNumber: table}

		if table != "" && !h.scopes.valid(scope) {
			v := h.deps.Restaurants.ValidateAccess(ctx, rid, branch, table)
			if !v.Valid {
				status := http.StatusNotFound
				switch v.ErrorKind {
				case restaurant.KindInvalidParams:
					status = http.StatusBadRequest
				case restaurant.KindNetwork:
					status = http.StatusBadGateway
				}
				c.AbortWithStatusJSON(status, gin.H{
					"success":    false,
					"validation": v,
					"error":      errorBody{Type: v.ErrorKind, Message: domain.ErrInvalidAccess.Error()},
				})
				return
			}
			h.scopes.remember(scope)
		}

		if err := sess.SetScope(ctx, rid, branch); err != nil {
			writeError(c, h.logger, err)
			return
		}
		snap, err := h.deps.Restaurants.For(deviceFrom(c)).SetRestaurant(ctx, rid)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
					"success":    false,
					"validation": restaurant.Validation{ErrorKind: restaurant.KindRestaurantNotFound},
					"error":      errorBody{Type: restaurant.KindRestaurantNotFound, Message: err.Error()},
				})
				return
			}
			writeError(c, h.logger, err)
			return
		}

		c.Set(scopeCtxKey, scope)
		c.Set(snapshotCtxKey, snap)
		c.Next()
	}
}

func scopeFrom(c *gin.Context) domain.Scope {
	v, _ := c.Get(scopeCtxKey)
	scope, _ := v.(domain.Scope)
	return scope
}

func snapshotFrom(c *gin.Context) domain.RestaurantSnapshot {
	v, _ := c.Get(snapshotCtxKey)
	snap, _ := v.(domain.RestaurantSnapshot)
	return snap
}
