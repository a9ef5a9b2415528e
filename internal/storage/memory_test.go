package storage

import (
	"context"
	"errors"
	"testing"

	"xquisito-tap/internal/domain"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}

	if _, err := s.Get(ctx, "dev-1", KeyGuestID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "dev-1", KeyGuestID, "guest-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "dev-1", KeyGuestID, "guest-2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err := s.Get(ctx, "dev-1", KeyGuestID)
	if err != nil || got != "guest-2" {
		t.Fatalf("expected guest-2, got %q (%v)", got, err)
	}
	if _, err := s.Get(ctx, "dev-2", KeyGuestID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected devices to be isolated, got %v", err)
	}
	if err := s.Delete(ctx, "dev-1", KeyGuestID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "dev-1", KeyGuestID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemory_DeleteAllScopedToDevice(t *testing.T) {
	ctx := context.Background()
	s, _ := NewMemory()
	_ = s.Set(ctx, "a", KeyAccessToken, "tok")
	_ = s.Set(ctx, "a", KeyUserID, "u1")
	_ = s.Set(ctx, "b", KeyUserID, "u2")

	if err := s.DeleteAll(ctx, "a"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if _, err := s.Get(ctx, "a", KeyUserID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected a cleared, got %v", err)
	}
	if v, _ := s.Get(ctx, "b", KeyUserID); v != "u2" {
		t.Fatalf("expected b untouched, got %q", v)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s, _ := NewMemory()
	type marker struct {
		TapOrderID string   `json:"tapOrderId"`
		Created    []string `json:"created"`
	}
	key := CheckoutProgressKey(domain.Scope{RestaurantID: 3, BranchNumber: 1, TableNumber: "5"})
	if key != "checkout_progress:3:1:5" {
		t.Fatalf("unexpected key %q", key)
	}
	if err := SetJSON(ctx, s, "d", key, marker{TapOrderID: "t1", Created: []string{"c1"}}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var out marker
	if err := GetJSON(ctx, s, "d", key, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.TapOrderID != "t1" || len(out.Created) != 1 {
		t.Fatalf("unexpected marker %+v", out)
	}
	if err := DeleteKeys(ctx, s, "d", key, KeyGuestID); err != nil {
		t.Fatalf("DeleteKeys: %v", err)
	}
	if v, err := GetOptional(ctx, s, "d", key); err != nil || v != "" {
		t.Fatalf("expected empty optional, got %q (%v)", v, err)
	}
}
