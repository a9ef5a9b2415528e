// Package storage is the durable per-device key/value state behind every
// browser session: guest identity, tokens, receipts and checkout progress.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"xquisito-tap/internal/domain"
)

// Well-known keys.
const (
	KeyGuestID          = "guest_id"
	KeyTableNumber      = "table_number"
	KeyRestaurantID     = "restaurant_id"
	KeyBranchNumber     = "branch_number"
	KeyRememberSession  = "remember_session"
	KeyAccessToken      = "access_token"
	KeyRefreshToken     = "refresh_token"
	KeyUserID           = "user_id"
	KeyPendingMigration = "pending_migration"
)

// ReceiptKey is the durable key of a confirmation snapshot.
func ReceiptKey(orderID string) string {
	return "receipt:" + orderID
}

// CheckoutProgressKey is the key of the resumable checkout marker for a scope.
func CheckoutProgressKey(scope domain.Scope) string {
	return "checkout_progress:" + scope.Key()
}

// Store holds string values per (device, key). Get on a missing key returns domain.ErrNotFound.
type Store interface {
	Get(ctx context.Context, device, key string) (string, error)
	Set(ctx context.Context, device, key, value string) error
	Delete(ctx context.Context, device, key string) error
	DeleteAll(ctx context.Context, device string) error
}

// GetJSON decodes a stored JSON value into out.
func GetJSON(ctx context.Context, s Store, device, key string, out any) error {
	raw, err := s.Get(ctx, device, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, device, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, device, key, string(raw))
}

// GetOptional returns "" instead of domain.ErrNotFound.
func GetOptional(ctx context.Context, s Store, device, key string) (string, error) {
	v, err := s.Get(ctx, device, key)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// DeleteKeys removes several keys, ignoring ones that are already absent.
func DeleteKeys(ctx context.Context, s Store, device string, keys ...string) error {
	for _, k := range keys {
		if err := s.Delete(ctx, device, k); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}
