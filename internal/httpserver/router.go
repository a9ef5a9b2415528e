package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/cart"
	"xquisito-tap/internal/checkout"
	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/orderstatus"
	"xquisito-tap/internal/pricing"
	"xquisito-tap/internal/receipt"
	"xquisito-tap/internal/restaurant"
	"xquisito-tap/internal/session"
)

// Backend is everything the handlers call on behalf of one device.
type Backend interface {
	session.API
	cart.API
	checkout.API
	orderstatus.API

	ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	AddPaymentMethod(ctx context.Context, cardToken string) (domain.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id string) error
	SetDefaultPaymentMethod(ctx context.Context, id string) error

	CreateReview(ctx context.Context, in backend.Review) (backend.Review, error)
	MenuItemStats(ctx context.Context, menuItemID int) (backend.ReviewStats, error)
	MyReview(ctx context.Context, menuItemID int, identifier string) (backend.Review, error)
	UpdateReview(ctx context.Context, id int, rating int, comment string) (backend.Review, error)
	DeleteReview(ctx context.Context, id int) error
}

// Deps groups the components the router wires.
type Deps struct {
	Sessions    *session.Service
	Dial        func(src backend.CredentialSource) Backend
	Restaurants *restaurant.Registry
	Carts       *cart.Registry
	Checkout    *checkout.Orchestrator
	Receipts    *receipt.Store
	Orders      *orderstatus.Viewer
	Calculator  *pricing.Calculator
	Schedule    pricing.Schedule

	CORSOrigins       []string
	Ready             []ReadinessCheck
	AnimationDisplay  time.Duration
	ScopeValidityTTL  time.Duration
	SecureCookies     bool
	AnimationRegistry int
}

func (d Deps) validate() error {
	switch {
	case d.Sessions == nil:
		return errors.New("httpserver: Sessions is required")
	case d.Dial == nil:
		return errors.New("httpserver: Dial is required")
	case d.Restaurants == nil:
		return errors.New("httpserver: Restaurants is required")
	case d.Carts == nil:
		return errors.New("httpserver: Carts is required")
	case d.Checkout == nil:
		return errors.New("httpserver: Checkout is required")
	case d.Receipts == nil:
		return errors.New("httpserver: Receipts is required")
	case d.Orders == nil:
		return errors.New("httpserver: Orders is required")
	case d.Calculator == nil:
		return errors.New("httpserver: Calculator is required")
	}
	return nil
}

type handlers struct {
	deps       Deps
	logger     *zap.Logger
	animations *animations
	scopes     *scopeCache
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	anims, err := newAnimations(deps.AnimationRegistry, deps.AnimationDisplay)
	if err != nil {
		return nil, err
	}
	scopes, err := newScopeCache(deps.ScopeValidityTTL)
	if err != nil {
		return nil, err
	}
	h := &handlers{deps: deps, logger: logger, animations: anims, scopes: scopes}

	deps.Sessions.OnTeardown(func(device string) {
		deps.Restaurants.Drop(device)
		deps.Receipts.DropSession(device)
		anims.drop(device)
	})
	// Moved lines live under the user now; both owners must re-read the server cart.
	deps.Sessions.OnCartMigrated(func(_, guestID, userID string) {
		deps.Carts.Forget(guestID)
		deps.Carts.Forget(userID)
	})

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(accessLog(logger), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", headerDeviceID},
			ExposeHeaders:    []string{headerDeviceID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))

	api := router.Group("/", deviceMiddleware(deps.SecureCookies))
	api.GET("/session", h.getSession)
	api.POST("/session/resolve", h.resolveSession)
	api.POST("/auth/otp/send", h.sendOTP)
	api.POST("/auth/otp/verify", h.verifyOTP)
	api.POST("/auth/social", h.signInSocial)
	api.PUT("/auth/profile", h.completeProfile)
	api.POST("/auth/logout", h.logout)

	api.GET("/payment-methods", h.listPaymentMethods)
	api.POST("/payment-methods", h.addPaymentMethod)
	api.DELETE("/payment-methods/:id", h.deletePaymentMethod)
	api.PUT("/payment-methods/:id/default", h.setDefaultPaymentMethod)

	api.GET("/checkout/progress", h.getProgress)
	api.DELETE("/checkout/progress", h.discardProgress)
	api.GET("/checkout/animation", h.getAnimation)
	api.DELETE("/checkout/animation", h.cancelAnimation)

	api.GET("/orders/:orderId", h.getOrder)
	api.GET("/receipts/:orderId", h.getReceipt)

	api.POST("/reviews", h.createReview)
	api.GET("/reviews/menu-item/:id/stats", h.reviewStats)
	api.GET("/reviews/menu-item/:id/mine", h.myReview)
	api.PATCH("/reviews/:id", h.updateReview)
	api.DELETE("/reviews/:id", h.deleteReview)

	scoped := api.Group("/:restaurantId/:branchNumber", h.scopeMiddleware())
	scoped.GET("/menu", h.getMenu)
	scoped.GET("/cart", h.getCart)
	scoped.POST("/cart/items", h.addCartItem)
	scoped.PATCH("/cart/items/:menuItemId", h.updateCartItem)
	scoped.DELETE("/cart/items/:menuItemId", h.removeCartItem)
	scoped.DELETE("/cart", h.clearCart)
	scoped.POST("/pricing/quote", h.quote)
	scoped.POST("/checkout", h.checkout)

	return router, nil
}

// accessLog writes one structured line per request.
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if device, ok := c.Get(deviceCtxKey); ok {
			fields = append(fields, zap.String("device", device.(string)))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("http: request", fields...)
	}
}
