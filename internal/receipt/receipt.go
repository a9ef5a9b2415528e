// Package receipt keeps the confirmation snapshot of a finished checkout so the
// confirmation page can be rebuilt after a reload without a network call.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/pricing"
	"xquisito-tap/internal/storage"
)

type Line struct {
	Name         string                 `json:"name"`
	Quantity     int                    `json:"quantity"`
	UnitPrice    float64                `json:"unitPrice"`
	ExtraPrice   float64                `json:"extraPrice"`
	Total        float64                `json:"total"`
	CustomFields []domain.SelectedField `json:"customFields,omitempty"`
	Images       []string               `json:"images,omitempty"`
}

type Receipt struct {
	OrderID        string            `json:"orderId"`
	DishOrderIDs   []string          `json:"dishOrderIds"`
	RestaurantID   int               `json:"restaurantId"`
	RestaurantName string            `json:"restaurantName,omitempty"`
	BranchNumber   int               `json:"branchNumber"`
	TableNumber    string            `json:"tableNumber"`
	Lines          []Line            `json:"lines"`
	Breakdown      pricing.Breakdown `json:"breakdown"`
	Installments   *pricing.Quote    `json:"installments,omitempty"`
	CardLast4      string            `json:"cardLast4,omitempty"`
	CardBrand      string            `json:"cardBrand,omitempty"`
	CustomerName   string            `json:"customerName"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// LinesFromCart snapshots cart lines with rounded amounts.
func LinesFromCart(c domain.Cart) []Line {
	out := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, Line{
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    pricing.Round2(it.BasePrice),
			ExtraPrice:   pricing.Round2(it.ExtraPrice),
			Total:        pricing.Round2(it.LineTotal()),
			CustomFields: it.CustomFields,
			Images:       it.Images,
		})
	}
	return out
}

type sessionKey struct {
	device  string
	orderID string
}

// Store writes every receipt twice: a durable copy and a session copy.
type Store struct {
	durable storage.Store
	session *lru.Cache
}

func NewStore(durable storage.Store, sessionSize int) (*Store, error) {
	if sessionSize <= 0 {
		sessionSize = 1024
	}
	cache, err := lru.New(sessionSize)
	if err != nil {
		return nil, fmt.Errorf("init receipt cache: %w", err)
	}
	return &Store{durable: durable, session: cache}, nil
}

// Save writes the durable copy first; the session copy is only added once that succeeded.
func (s *Store) Save(ctx context.Context, device string, r Receipt) error {
	if r.OrderID == "" {
		return fmt.Errorf("%w: receipt without order id", domain.ErrValidation)
	}
	if err := storage.SetJSON(ctx, s.durable, device, storage.ReceiptKey(r.OrderID), r); err != nil {
		return fmt.Errorf("save receipt %s: %w", r.OrderID, err)
	}
	s.session.Add(sessionKey{device: device, orderID: r.OrderID}, r)
	return nil
}

// Load prefers the session copy, then the durable one. It never reaches the network.
func (s *Store) Load(ctx context.Context, device, orderID string) (Receipt, error) {
	key := sessionKey{device: device, orderID: orderID}
	if v, ok := s.session.Get(key); ok {
		return v.(Receipt), nil
	}
	var r Receipt
	if err := storage.GetJSON(ctx, s.durable, device, storage.ReceiptKey(orderID), &r); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Receipt{}, fmt.Errorf("receipt %s: %w", orderID, domain.ErrNotFound)
		}
		return Receipt{}, err
	}
	s.session.Add(key, r)
	return r, nil
}

// DropSession forgets every session copy of a device. Durable copies stay.
func (s *Store) DropSession(device string) {
	for _, k := range s.session.Keys() {
		if sk, ok := k.(sessionKey); ok && sk.device == device {
			s.session.Remove(k)
		}
	}
}
