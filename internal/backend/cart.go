package backend

import (
	"context"
	"net/url"
	"strconv"

	"xquisito-tap/internal/domain"
)

// AddToCartInput adds one unit of a line, or increments it server-side.
type AddToCartInput struct {
	RestaurantID int                    `json:"restaurant_id"`
	BranchNumber int                    `json:"branch_number"`
	MenuItemID   int                    `json:"menu_item_id"`
	Quantity     int                    `json:"quantity"`
	CustomFields []domain.SelectedField `json:"custom_fields"`
	ExtraPrice   float64                `json:"extra_price"`
}

// MigrationReport tells how many guest records were moved to the user.
type MigrationReport struct {
	Migrated int `json:"migrated"`
}

type migrateInput struct {
	GuestID string `json:"guest_id"`
	UserID  string `json:"user_id"`
}

func cartQuery(restaurantID, branch int) url.Values {
	q := url.Values{}
	q.Set("restaurant_id", strconv.Itoa(restaurantID))
	q.Set("branch_number", strconv.Itoa(branch))
	return q
}

func (r *Requester) GetCart(ctx context.Context, restaurantID, branch int) (domain.Cart, error) {
	var out domain.Cart
	err := r.get(ctx, "/cart", cartQuery(restaurantID, branch), &out)
	return out, err
}

func (r *Requester) AddToCart(ctx context.Context, in AddToCartInput) (domain.CartItem, error) {
	var out domain.CartItem
	err := r.post(ctx, "/cart", in, &out)
	return out, err
}

func (r *Requester) UpdateCartItem(ctx context.Context, cartItemID string, quantity int) error {
	return r.patch(ctx, "/cart/items/"+url.PathEscape(cartItemID), map[string]int{"quantity": quantity}, nil)
}

func (r *Requester) RemoveCartItem(ctx context.Context, cartItemID string) error {
	return r.delete(ctx, "/cart/items/"+url.PathEscape(cartItemID), nil)
}

func (r *Requester) ClearCart(ctx context.Context, restaurantID, branch int) error {
	return r.delete(ctx, "/cart?"+cartQuery(restaurantID, branch).Encode(), nil)
}

// MigrateCart moves guest cart lines to the user. Repeating it after success moves nothing.
func (r *Requester) MigrateCart(ctx context.Context, guestID, userID string) (MigrationReport, error) {
	var out MigrationReport
	err := r.post(ctx, "/cart/migrate", migrateInput{GuestID: guestID, UserID: userID}, &out)
	return out, err
}
