package checkout

import (
	"context"
	"errors"
	"time"

	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/storage"
)

// Progress is the resumable marker of an attempt for one table scope. It is written
// before the charge and after every created line, and removed once the attempt is done.
type Progress struct {
	IdempotencyKey       string    `json:"idempotencyKey"`
	ChargedAmount        float64   `json:"chargedAmount"`
	PaymentTransactionID string    `json:"paymentTransactionId,omitempty"`
	PaymentAuthorized    bool      `json:"paymentAuthorized"`
	TapOrderID           string    `json:"tapOrderId,omitempty"`
	CreatedCartItemIDs   []string  `json:"createdCartItemIds"`
	DishOrderIDs         []string  `json:"dishOrderIds"`
	TransactionRecorded  bool      `json:"transactionRecorded"`
	StartedAt            time.Time `json:"startedAt"`
}

func (p *Progress) created(cartItemID string) bool {
	for _, id := range p.CreatedCartItemIDs {
		if id == cartItemID {
			return true
		}
	}
	return false
}

type progressStore struct {
	store storage.Store
}

func (s progressStore) load(ctx context.Context, device string, scope domain.Scope) (*Progress, error) {
	var p Progress
	err := storage.GetJSON(ctx, s.store, device, storage.CheckoutProgressKey(scope), &p)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s progressStore) save(ctx context.Context, device string, scope domain.Scope, p *Progress) error {
	return storage.SetJSON(ctx, s.store, device, storage.CheckoutProgressKey(scope), p)
}

func (s progressStore) clear(ctx context.Context, device string, scope domain.Scope) error {
	return storage.DeleteKeys(ctx, s.store, device, storage.CheckoutProgressKey(scope))
}
