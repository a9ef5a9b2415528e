package restaurant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/domain"
)

type stubAPI struct {
	mu       sync.Mutex
	calls    map[int]int
	gates    map[int]chan struct{}
	validate backend.Validation
	valErr   error
}

func newStubAPI() *stubAPI {
	return &stubAPI{calls: map[int]int{}, gates: map[int]chan struct{}{}}
}

func (s *stubAPI) GetComplete(ctx context.Context, id int) (domain.RestaurantSnapshot, error) {
	s.mu.Lock()
	s.calls[id]++
	gate := s.gates[id]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if id == 404 {
		return domain.RestaurantSnapshot{}, &backend.APIError{Status: 404, Message: "missing"}
	}
	return domain.RestaurantSnapshot{Restaurant: domain.Restaurant{ID: id, Name: "R"}}, nil
}

func (s *stubAPI) ValidateAccess(context.Context, int, int, string) (backend.Validation, error) {
	return s.validate, s.valErr
}

func newTestRegistry(t *testing.T, api *stubAPI) *Registry {
	t.Helper()
	cat, err := NewCatalog(api, time.Minute, 16, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	reg, err := NewRegistry(cat, time.UTC, 16, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func weekly(open, closeAt string) domain.OpeningHours {
	h := domain.OpeningHours{}
	for _, d := range []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"} {
		h[d] = domain.DayHours{OpenTime: open, CloseTime: closeAt}
	}
	return h
}

func TestIsOpenAt(t *testing.T) {
	// 2026-10-12 is a Monday.
	at := func(hh, mm int) time.Time { return time.Date(2026, 10, 12, hh, mm, 0, 0, time.UTC) }

	day := weekly("09:00", "22:00")
	cases := []struct {
		name  string
		hours domain.OpeningHours
		t     time.Time
		want  bool
	}{
		{"before open", day, at(8, 59), false},
		{"at open", day, at(9, 0), true},
		{"before close", day, at(21, 59), true},
		{"at close", day, at(22, 0), false},
		{"overnight evening", weekly("18:00", "02:00"), at(23, 30), true},
		{"overnight after midnight", weekly("18:00", "02:00"), at(1, 30), true},
		{"overnight gap", weekly("18:00", "02:00"), at(3, 0), false},
		{"no schedule", nil, at(4, 0), true},
	}
	for _, tc := range cases {
		if got := IsOpenAt(tc.hours, time.UTC, tc.t); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestIsOpenAtClosedDayAndOvernightSpill(t *testing.T) {
	hours := weekly("18:00", "02:00")
	hours["monday"] = domain.DayHours{IsClosed: true}
	mondayNight := time.Date(2026, 10, 12, 20, 0, 0, 0, time.UTC)
	if IsOpenAt(hours, time.UTC, mondayNight) {
		t.Fatalf("expected closed on monday evening")
	}
	mondayEarly := time.Date(2026, 10, 12, 1, 0, 0, 0, time.UTC)
	if !IsOpenAt(hours, time.UTC, mondayEarly) {
		t.Fatalf("expected sunday window to spill into monday")
	}
}

func TestIsOpenAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("CST", -6*60*60)
	hours := weekly("09:00", "17:00")
	// 16:00 UTC is 10:00 local.
	if !IsOpenAt(hours, loc, time.Date(2026, 10, 12, 16, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected open at 10:00 local")
	}
	// 02:00 UTC is 20:00 local on the previous day.
	if IsOpenAt(hours, loc, time.Date(2026, 10, 13, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected closed at 20:00 local")
	}
}

func TestSetRestaurantLastCallWins(t *testing.T) {
	api := newStubAPI()
	api.gates[1] = make(chan struct{})
	reg := newTestRegistry(t, api)
	c := reg.For("dev")

	errCh := make(chan error, 1)
	go func() {
		_, err := c.SetRestaurant(context.Background(), 1)
		errCh <- err
	}()
	for {
		api.mu.Lock()
		n := api.calls[1]
		api.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	snap, err := c.SetRestaurant(context.Background(), 2)
	if err != nil || snap.Restaurant.ID != 2 {
		t.Fatalf("expected restaurant 2, got %+v (%v)", snap, err)
	}
	close(api.gates[1])
	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected stale load to be superseded, got %v", err)
	}
	got, ok := c.Snapshot()
	if !ok || got.Restaurant.ID != 2 || c.RestaurantID() != 2 {
		t.Fatalf("expected snapshot of 2 to survive, got %+v", got)
	}
}

func TestCatalogSharesFetches(t *testing.T) {
	api := newStubAPI()
	reg := newTestRegistry(t, api)
	for _, dev := range []string{"a", "b", "c"} {
		if _, err := reg.For(dev).SetRestaurant(context.Background(), 7); err != nil {
			t.Fatalf("SetRestaurant: %v", err)
		}
	}
	if api.calls[7] != 1 {
		t.Fatalf("expected one backend fetch, got %d", api.calls[7])
	}
}

func TestCatalogExpiry(t *testing.T) {
	api := newStubAPI()
	cat, _ := NewCatalog(api, time.Minute, 4, zap.NewNop())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cat.now = func() time.Time { return now }
	_, _ = cat.Snapshot(context.Background(), 3)
	now = now.Add(2 * time.Minute)
	_, _ = cat.Snapshot(context.Background(), 3)
	if api.calls[3] != 2 {
		t.Fatalf("expected refetch after expiry, got %d", api.calls[3])
	}
}

func TestSetRestaurantNotFound(t *testing.T) {
	reg := newTestRegistry(t, newStubAPI())
	if _, err := reg.For("d").SetRestaurant(context.Background(), 404); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIsOpenNowRechecksClock(t *testing.T) {
	api := newStubAPI()
	reg := newTestRegistry(t, api)
	now := time.Date(2026, 10, 12, 21, 59, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	c := reg.For("d")
	cat := reg.catalog
	cat.cache.Add(9, cachedSnapshot{
		snapshot:  domain.RestaurantSnapshot{Restaurant: domain.Restaurant{ID: 9, OpeningHours: weekly("09:00", "22:00")}},
		expiresAt: now.Add(time.Hour),
	})
	cat.now = reg.now
	if _, err := c.SetRestaurant(context.Background(), 9); err != nil {
		t.Fatalf("SetRestaurant: %v", err)
	}
	if !c.IsOpen() {
		t.Fatalf("expected open at 21:59")
	}
	now = now.Add(2 * time.Minute)
	if !c.IsOpen() {
		t.Fatalf("expected cached value until recompute")
	}
	if c.IsOpenNow() {
		t.Fatalf("expected closed at 22:01")
	}
}

func TestValidateAccessKinds(t *testing.T) {
	api := newStubAPI()
	reg := newTestRegistry(t, api)
	ctx := context.Background()

	if v := reg.ValidateAccess(ctx, 0, 1, "5"); v.ErrorKind != KindInvalidParams {
		t.Fatalf("expected invalid params, got %+v", v)
	}
	api.validate = backend.Validation{Valid: true}
	if v := reg.ValidateAccess(ctx, 1, 1, "5"); !v.Valid {
		t.Fatalf("expected valid, got %+v", v)
	}
	api.validate = backend.Validation{Valid: false, Error: "branch_not_found"}
	if v := reg.ValidateAccess(ctx, 1, 9, "5"); v.ErrorKind != KindBranchNotFound {
		t.Fatalf("expected branch_not_found, got %+v", v)
	}
	api.valErr = &backend.APIError{Status: 404, Type: "table_not_found"}
	if v := reg.ValidateAccess(ctx, 1, 1, "99"); v.ErrorKind != KindTableNotFound {
		t.Fatalf("expected table_not_found, got %+v", v)
	}
	api.valErr = errors.New("dial tcp: connection refused")
	if v := reg.ValidateAccess(ctx, 1, 1, "5"); v.ErrorKind != KindNetwork || v.Valid {
		t.Fatalf("expected network, got %+v", v)
	}
}
