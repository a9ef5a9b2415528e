package backend

import (
	"context"
	"fmt"
	"net/url"

	"xquisito-tap/internal/domain"
)

// DishOrderCreated is the response of creating one dish order.
type DishOrderCreated struct {
	DishOrderID string `json:"dish_order_id"`
	TapOrderID  string `json:"tap_order_id"`
}

// CreateDishOrder creates one line; the backend opens the parent tap order on the first line of a table.
func (r *Requester) CreateDishOrder(ctx context.Context, scope domain.Scope, line domain.DishOrderLine) (DishOrderCreated, error) {
	var out DishOrderCreated
	path := fmt.Sprintf("/tap-orders/restaurant/%d/branch/%d/table/%s/dishes",
		scope.RestaurantID, scope.BranchNumber, url.PathEscape(scope.TableNumber))
	err := r.post(ctx, path, line, &out)
	return out, err
}

func (r *Requester) UpdateTapOrderPaymentStatus(ctx context.Context, tapOrderID string, status domain.PaymentStatus) error {
	return r.patch(ctx, "/tap-orders/"+url.PathEscape(tapOrderID)+"/payment-status",
		map[string]domain.PaymentStatus{"payment_status": status}, nil)
}

func (r *Requester) UpdateTapOrderStatus(ctx context.Context, tapOrderID string, status domain.OrderStatus) error {
	return r.patch(ctx, "/tap-orders/"+url.PathEscape(tapOrderID)+"/status",
		map[string]domain.OrderStatus{"order_status": status}, nil)
}

func (r *Requester) GetTapOrder(ctx context.Context, tapOrderID string) (domain.TapOrder, error) {
	var out domain.TapOrder
	err := r.get(ctx, "/tap-orders/"+url.PathEscape(tapOrderID), nil, &out)
	return out, err
}

func (r *Requester) MarkDishPaid(ctx context.Context, dishOrderID string) error {
	return r.post(ctx, "/dish-orders/"+url.PathEscape(dishOrderID)+"/mark-paid", nil, nil)
}
