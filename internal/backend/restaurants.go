package backend

import (
	"context"
	"fmt"

	"xquisito-tap/internal/domain"
)

// Validation is the result of checking a restaurant/branch/table triple.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (r *Requester) GetRestaurant(ctx context.Context, id int) (domain.Restaurant, error) {
	var out domain.Restaurant
	err := r.get(ctx, fmt.Sprintf("/restaurants/%d", id), nil, &out)
	return out, err
}

func (r *Requester) GetMenu(ctx context.Context, id int) ([]domain.MenuSection, error) {
	var out []domain.MenuSection
	err := r.get(ctx, fmt.Sprintf("/restaurants/%d/menu", id), nil, &out)
	return out, err
}

// GetComplete fetches restaurant metadata and the full menu in one call.
func (r *Requester) GetComplete(ctx context.Context, id int) (domain.RestaurantSnapshot, error) {
	var out domain.RestaurantSnapshot
	err := r.get(ctx, fmt.Sprintf("/restaurants/%d/complete", id), nil, &out)
	return out, err
}

func (r *Requester) ValidateAccess(ctx context.Context, restaurantID, branch int, table string) (Validation, error) {
	var out Validation
	err := r.get(ctx, fmt.Sprintf("/restaurants/%d/%d/%s/validate", restaurantID, branch, table), nil, &out)
	return out, err
}
