// Package cart keeps a device's cart in step with the server-side cart of its
// (identity, restaurant, branch) scope.
//
// Every mutation is applied optimistically, sent to the server and followed by a
// refresh. Mutations on one line serialize; unrelated lines proceed in parallel.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/domain"
)

// ErrDuplicateSubmission is returned when the same logical operation is already in flight.
var ErrDuplicateSubmission = errors.New("cart: operation already in progress")

// API is the cart part of the backend, already bound to the owner's credentials.
type API interface {
	GetCart(ctx context.Context, restaurantID, branch int) (domain.Cart, error)
	AddToCart(ctx context.Context, in backend.AddToCartInput) (domain.CartItem, error)
	UpdateCartItem(ctx context.Context, cartItemID string, quantity int) error
	RemoveCartItem(ctx context.Context, cartItemID string) error
	ClearCart(ctx context.Context, restaurantID, branch int) error
}

// Key scopes one engine. Engines are never shared across devices: each one is bound
// to the credentials of the device that created it.
type Key struct {
	Device       string
	Owner        string
	RestaurantID int
	BranchNumber int
}

func (k Key) String() string {
	return k.Device + ":" + k.Owner + "@" + strconv.Itoa(k.RestaurantID) + "/" + strconv.Itoa(k.BranchNumber)
}

type opIDKey struct{}

// WithOperationID tags ctx with a client-supplied id for duplicate suppression.
func WithOperationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, opIDKey{}, id)
}

func operationID(ctx context.Context) string {
	id, _ := ctx.Value(opIDKey{}).(string)
	return id
}

type Engine struct {
	api    API
	key    Key
	logger *zap.Logger

	mu       sync.Mutex
	cart     domain.Cart
	loaded   bool
	lines    map[string]*sync.Mutex
	inflight map[string]struct{}
	pending  int
}

func NewEngine(api API, key Key, logger *zap.Logger) *Engine {
	return &Engine{
		api:      api,
		key:      key,
		logger:   logger.With(zap.String("cart", key.String())),
		lines:    make(map[string]*sync.Mutex),
		inflight: make(map[string]struct{}),
	}
}

func (e *Engine) Key() Key { return e.key }

// acquire marks the operation in flight and takes the line lock.
func (e *Engine) acquire(ctx context.Context, op, line string) (func(), error) {
	var token string
	if id := operationID(ctx); id != "" {
		token = op + ":" + line + ":" + id
	} else if op == "clear" {
		token = op
	}

	e.mu.Lock()
	if token != "" {
		if _, busy := e.inflight[token]; busy {
			e.mu.Unlock()
			return nil, ErrDuplicateSubmission
		}
		e.inflight[token] = struct{}{}
	}
	l, ok := e.lines[line]
	if !ok {
		l = &sync.Mutex{}
		e.lines[line] = l
	}
	e.pending++
	e.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		e.mu.Lock()
		if token != "" {
			delete(e.inflight, token)
		}
		e.pending--
		e.mu.Unlock()
	}, nil
}

// Loading reports whether any mutation is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending > 0
}

// Snapshot returns a copy of the current cart.
func (e *Engine) Snapshot() domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Clone()
}

func (e *Engine) Totals() (items int, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.TotalItems, e.cart.TotalPrice
}

// Load fetches the cart once; later calls return the held copy.
func (e *Engine) Load(ctx context.Context) (domain.Cart, error) {
	e.mu.Lock()
	loaded := e.loaded
	e.mu.Unlock()
	if loaded {
		return e.Snapshot(), nil
	}
	return e.Refresh(ctx)
}

// Refresh replaces local state with the server cart. Server totals win.
func (e *Engine) Refresh(ctx context.Context) (domain.Cart, error) {
	c, err := e.api.GetCart(ctx, e.key.RestaurantID, e.key.BranchNumber)
	if err != nil {
		return e.Snapshot(), fmt.Errorf("refresh cart: %w", err)
	}
	if c.TotalItems == 0 && len(c.Items) > 0 {
		c.Recompute()
	}
	e.mu.Lock()
	e.cart = c
	e.loaded = true
	out := e.cart.Clone()
	e.mu.Unlock()
	return out, nil
}

// settle always refreshes after a server call; a server error is returned after the
// refresh has rolled the optimistic change back.
func (e *Engine) settle(ctx context.Context, op string, serverErr error) (domain.Cart, error) {
	c, refreshErr := e.Refresh(ctx)
	if serverErr != nil {
		e.logger.Warn("cart: "+op+" failed", zap.Error(serverErr))
		if refreshErr != nil {
			e.logger.Error("cart: rollback refresh failed", zap.Error(refreshErr))
		}
		return c, fmt.Errorf("%s: %w", op, serverErr)
	}
	return c, refreshErr
}

// AddItem adds one unit. A line with the same item and selections is incremented;
// different selections open a new line.
func (e *Engine) AddItem(ctx context.Context, item domain.MenuItem, fields []domain.SelectedField, extraPrice float64) (domain.Cart, error) {
	line := domain.LineKey(item.ID, domain.Signature(fields))
	release, err := e.acquire(ctx, "add", line)
	if err != nil {
		return e.Snapshot(), err
	}
	defer release()

	e.mu.Lock()
	idx := e.cart.Find(line)
	var cartItemID string
	newQty := 1
	if idx >= 0 {
		e.cart.Items[idx].Quantity++
		newQty = e.cart.Items[idx].Quantity
		cartItemID = e.cart.Items[idx].CartItemID
	} else {
		e.cart.Items = append(e.cart.Items, domain.CartItem{
			MenuItemID:   item.ID,
			Name:         item.Name,
			Description:  item.Description,
			Images:       item.Images,
			BasePrice:    item.BasePrice(),
			Quantity:     1,
			CustomFields: fields,
			ExtraPrice:   extraPrice,
		})
	}
	e.cart.Recompute()
	e.mu.Unlock()

	if cartItemID != "" {
		err = e.api.UpdateCartItem(ctx, cartItemID, newQty)
	} else {
		_, err = e.api.AddToCart(ctx, backend.AddToCartInput{
			RestaurantID: e.key.RestaurantID,
			BranchNumber: e.key.BranchNumber,
			MenuItemID:   item.ID,
			Quantity:     1,
			CustomFields: fields,
			ExtraPrice:   extraPrice,
		})
	}
	return e.settle(ctx, "add item", err)
}

// UpdateQuantity sets the quantity of the line identified by item and selection
// signature. Zero or less removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, menuItemID int, signature string, quantity int) (domain.Cart, error) {
	line := domain.LineKey(menuItemID, signature)
	release, err := e.acquire(ctx, "update", line)
	if err != nil {
		return e.Snapshot(), err
	}
	defer release()

	e.mu.Lock()
	idx := e.cart.Find(line)
	if idx < 0 {
		e.mu.Unlock()
		return e.Snapshot(), fmt.Errorf("cart line %s: %w", line, domain.ErrNotFound)
	}
	cartItemID := e.cart.Items[idx].CartItemID
	if quantity <= 0 {
		e.cart.Items = append(e.cart.Items[:idx], e.cart.Items[idx+1:]...)
	} else {
		e.cart.Items[idx].Quantity = quantity
	}
	e.cart.Recompute()
	e.mu.Unlock()

	if quantity <= 0 {
		err = e.api.RemoveCartItem(ctx, cartItemID)
	} else {
		err = e.api.UpdateCartItem(ctx, cartItemID, quantity)
	}
	return e.settle(ctx, "update quantity", err)
}

// RemoveItem removes the first line of a menu item, whatever its quantity.
func (e *Engine) RemoveItem(ctx context.Context, menuItemID int) (domain.Cart, error) {
	e.mu.Lock()
	line := ""
	for _, it := range e.cart.Items {
		if it.MenuItemID == menuItemID {
			line = it.LineKey()
			break
		}
	}
	e.mu.Unlock()
	if line == "" {
		return e.Snapshot(), fmt.Errorf("menu item %d: %w", menuItemID, domain.ErrNotFound)
	}

	release, err := e.acquire(ctx, "remove", line)
	if err != nil {
		return e.Snapshot(), err
	}
	defer release()

	e.mu.Lock()
	idx := e.cart.Find(line)
	if idx < 0 {
		e.mu.Unlock()
		return e.Snapshot(), fmt.Errorf("menu item %d: %w", menuItemID, domain.ErrNotFound)
	}
	cartItemID := e.cart.Items[idx].CartItemID
	e.cart.Items = append(e.cart.Items[:idx], e.cart.Items[idx+1:]...)
	e.cart.Recompute()
	e.mu.Unlock()

	return e.settle(ctx, "remove item", e.api.RemoveCartItem(ctx, cartItemID))
}

// Clear empties the scope's cart.
func (e *Engine) Clear(ctx context.Context) (domain.Cart, error) {
	release, err := e.acquire(ctx, "clear", "*")
	if err != nil {
		return e.Snapshot(), err
	}
	defer release()

	e.mu.Lock()
	e.cart = domain.Cart{}
	e.mu.Unlock()

	return e.settle(ctx, "clear cart", e.api.ClearCart(ctx, e.key.RestaurantID, e.key.BranchNumber))
}
