package backend

import (
	"context"
	"fmt"
	"net/url"
)

type Review struct {
	ID         int    `json:"id,omitempty"`
	MenuItemID int    `json:"menu_item_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	GuestID    string `json:"guest_id,omitempty"`
}

type ReviewStats struct {
	MenuItemID    int         `json:"menu_item_id"`
	AverageRating float64     `json:"average_rating"`
	TotalReviews  int         `json:"total_reviews"`
	Distribution  map[int]int `json:"rating_distribution,omitempty"`
}

func (r *Requester) CreateReview(ctx context.Context, in Review) (Review, error) {
	var out Review
	err := r.post(ctx, "/restaurants/reviews", in, &out)
	return out, err
}

func (r *Requester) MenuItemStats(ctx context.Context, menuItemID int) (ReviewStats, error) {
	var out ReviewStats
	err := r.get(ctx, fmt.Sprintf("/restaurants/reviews/menu-item/%d/stats", menuItemID), nil, &out)
	return out, err
}

// MyReview returns the review the identifier (user or guest id) left on a menu item.
func (r *Requester) MyReview(ctx context.Context, menuItemID int, identifier string) (Review, error) {
	var out Review
	err := r.get(ctx, fmt.Sprintf("/restaurants/reviews/menu-item/%d/my-review/%s", menuItemID, url.PathEscape(identifier)), nil, &out)
	return out, err
}

func (r *Requester) UpdateReview(ctx context.Context, id int, rating int, comment string) (Review, error) {
	var out Review
	body := map[string]any{"rating": rating, "comment": comment}
	err := r.patch(ctx, fmt.Sprintf("/restaurants/reviews/%d", id), body, &out)
	return out, err
}

func (r *Requester) DeleteReview(ctx context.Context, id int) error {
	return r.delete(ctx, fmt.Sprintf("/restaurants/reviews/%d", id), nil)
}
