package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"xquisito-tap/internal/cart"
	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/pricing"
)

type menuResponse struct {
	Restaurant domain.Restaurant    `json:"restaurant"`
	Menu       []domain.MenuSection `json:"menu"`
	IsOpen     bool                 `json:"isOpen"`
}

type cartLine struct {
	domain.CartItem
	Signature string  `json:"signature"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

type cartResponse struct {
	Items      []cartLine `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice float64    `json:"total_price"`
	Loading    bool       `json:"loading"`
}

type addItemRequest struct {
	MenuItemID  int                        `json:"menuItemId" binding:"required"`
	Selections  map[string]json.RawMessage `json:"selections"`
	OperationID string                     `json:"operationId"`
}

type updateItemRequest struct {
	Quantity    int    `json:"quantity"`
	Signature   string `json:"signature"`
	OperationID string `json:"operationId"`
}

func toCartResponse(c domain.Cart, loading bool) cartResponse {
	out := cartResponse{Items: make([]cartLine, 0, len(c.Items)), TotalItems: c.TotalItems, TotalPrice: pricing.Round2(c.TotalPrice), Loading: loading}
	for _, it := range c.Items {
		out.Items = append(out.Items, cartLine{
			CartItem:  it,
			Signature: domain.Signature(it.CustomFields),
			UnitPrice: pricing.Round2(it.UnitPrice()),
			LineTotal: pricing.Round2(it.LineTotal()),
		})
	}
	return out
}

func (h *handlers) getMenu(c *gin.Context) {
	snap := snapshotFrom(c)
	rc := h.deps.Restaurants.For(deviceFrom(c))
	respond(c, http.StatusOK, menuResponse{Restaurant: snap.Restaurant, Menu: snap.Menu, IsOpen: rc.IsOpenNow()})
}

// identity returns the device identity, entering guest mode at the scope's table if none exists yet.
func (h *handlers) identity(c *gin.Context) (domain.Identity, error) {
	ctx := c.Request.Context()
	sess := h.session(c)
	id, err := sess.Identity(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	if !id.IsZero() {
		return id, nil
	}
	scope := scopeFrom(c)
	if scope.TableNumber == "" {
		return domain.Identity{}, fmt.Errorf("%w: a table number is required", domain.ErrValidation)
	}
	return sess.SetGuest(ctx, scope.TableNumber)
}

// engine returns the loaded cart engine of the device's identity and scope.
func (h *handlers) engine(c *gin.Context) (*cart.Engine, domain.Identity, error) {
	id, err := h.identity(c)
	if err != nil {
		return nil, domain.Identity{}, err
	}
	scope := scopeFrom(c)
	e := h.deps.Carts.For(cart.Key{Device: deviceFrom(c), Owner: id.Owner(), RestaurantID: scope.RestaurantID, BranchNumber: scope.BranchNumber}, h.api(c))
	if _, err := e.Load(c.Request.Context()); err != nil {
		return nil, id, err
	}
	return e, id, nil
}

func withOperation(c *gin.Context, id string) context.Context {
	if id == "" {
		id = c.GetHeader("Idempotency-Key")
	}
	return cart.WithOperationID(c.Request.Context(), id)
}

func (h *handlers) getCart(c *gin.Context) {
	e, _, err := h.engine(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	cur := e.Snapshot()
	if c.Query("refresh") == "1" {
		if cur, err = e.Refresh(c.Request.Context()); err != nil {
			writeError(c, h.logger, err)
			return
		}
	}
	respond(c, http.StatusOK, toCartResponse(cur, e.Loading()))
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if !h.deps.Restaurants.For(deviceFrom(c)).IsOpenNow() {
		writeError(c, h.logger, domain.ErrRestaurantClosed)
		return
	}
	item, ok := snapshotFrom(c).FindItem(req.MenuItemID)
	if !ok {
		writeError(c, h.logger, fmt.Errorf("menu item %d: %w", req.MenuItemID, domain.ErrNotFound))
		return
	}
	selections, err := cart.DecodeSelections(item, req.Selections)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	fields, extra, err := cart.ResolveSelections(item, selections)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	e, _, err := h.engine(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out, err := e.AddItem(withOperation(c, req.OperationID), item, fields, extra)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, toCartResponse(out, e.Loading()))
}

func menuItemParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("menuItemId"))
	if err != nil || id <= 0 {
		abortWith(c, http.StatusBadRequest, "validation", "menu item id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *handlers) updateCartItem(c *gin.Context) {
	menuItemID, ok := menuItemParam(c)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	e, _, err := h.engine(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out, err := e.UpdateQuantity(withOperation(c, req.OperationID), menuItemID, req.Signature, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, toCartResponse(out, e.Loading()))
}

func (h *handlers) removeCartItem(c *gin.Context) {
	menuItemID, ok := menuItemParam(c)
	if !ok {
		return
	}
	e, _, err := h.engine(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out, err := e.RemoveItem(withOperation(c, c.Query("operationId")), menuItemID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, toCartResponse(out, e.Loading()))
}

func (h *handlers) clearCart(c *gin.Context) {
	e, _, err := h.engine(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out, err := e.Clear(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, toCartResponse(out, e.Loading()))
}
