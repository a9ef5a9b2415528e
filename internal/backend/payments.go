package backend

import (
	"context"
	"net/url"

	"xquisito-tap/internal/domain"
)

// ChargeInput asks the payment processor to authorize the charged total.
type ChargeInput struct {
	PaymentMethodID string  `json:"payment_method_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Description     string  `json:"description,omitempty"`
	RestaurantID    int     `json:"restaurant_id"`
	TableNumber     string  `json:"table_number"`
	IdempotencyKey  string  `json:"idempotency_key"`
	MSIMonths       int     `json:"msi_months,omitempty"`
}

type Authorization struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

func (r *Requester) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	var out []domain.PaymentMethod
	err := r.get(ctx, "/payment-methods", nil, &out)
	return out, err
}

// AddPaymentMethod registers a tokenized card.
func (r *Requester) AddPaymentMethod(ctx context.Context, cardToken string) (domain.PaymentMethod, error) {
	var out domain.PaymentMethod
	err := r.post(ctx, "/payment-methods", map[string]string{"card_token": cardToken}, &out)
	return out, err
}

func (r *Requester) DeletePaymentMethod(ctx context.Context, id string) error {
	return r.delete(ctx, "/payment-methods/"+url.PathEscape(id), nil)
}

func (r *Requester) SetDefaultPaymentMethod(ctx context.Context, id string) error {
	return r.put(ctx, "/payment-methods/"+url.PathEscape(id)+"/default", nil, nil)
}

// MigratePaymentMethods moves guest-saved cards to the user. Idempotent server-side.
func (r *Requester) MigratePaymentMethods(ctx context.Context, guestID, userID string) (MigrationReport, error) {
	var out MigrationReport
	err := r.post(ctx, "/payment-methods/migrate", migrateInput{GuestID: guestID, UserID: userID}, &out)
	return out, err
}

func (r *Requester) Charge(ctx context.Context, in ChargeInput) (Authorization, error) {
	var out Authorization
	err := r.post(ctx, "/payments", in, &out)
	return out, err
}

func (r *Requester) RecordTransaction(ctx context.Context, rec domain.PaymentTransactionRecord) error {
	return r.post(ctx, "/payment-transactions", rec, nil)
}
