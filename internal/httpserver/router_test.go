package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/cart"
	"xquisito-tap/internal/checkout"
	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/orderstatus"
	"xquisito-tap/internal/pricing"
	"xquisito-tap/internal/receipt"
	"xquisito-tap/internal/restaurant"
	"xquisito-tap/internal/session"
	"xquisito-tap/internal/storage"
)

// stubBackend is an in-memory backend shared by every device of a test.
type stubBackend struct {
	mu sync.Mutex

	snapshot   domain.RestaurantSnapshot
	validation backend.Validation
	items      map[string][]domain.CartItem
	nextID     int
	dishes     []domain.DishOrderLine
	charges    int
	cards      []domain.PaymentMethod
	order      domain.TapOrder
	orderErr   error
	orderCalls int
	migrateErr error
	reviews    []backend.Review
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		snapshot: domain.RestaurantSnapshot{
			Restaurant: domain.Restaurant{ID: 3, Name: "La Cantina"},
			Menu: []domain.MenuSection{{ID: 1, Name: "Tacos", Items: []domain.MenuItem{
				{ID: 1, Name: "Pastor", Price: 100},
				{ID: 2, Name: "Agua", Price: 10},
			}}},
		},
		validation: backend.Validation{Valid: true},
		items:      map[string][]domain.CartItem{},
		cards:      []domain.PaymentMethod{{ID: "pm-1", CardBrand: "visa", LastFourDigits: "4242"}},
	}
}

// scoped returns a Backend bound to the owner the credential source carries.
type scoped struct {
	*stubBackend
	src backend.CredentialSource
}

func (s scoped) owner() string {
	creds, _ := s.src.Credentials(context.Background())
	if creds.AccessToken != "" {
		return "user:" + creds.AccessToken
	}
	return creds.GuestID
}

func (b *stubBackend) dial(src backend.CredentialSource) Backend { return scoped{b, src} }

func (b *stubBackend) GetComplete(context.Context, int) (domain.RestaurantSnapshot, error) {
	return b.snapshot, nil
}

func (b *stubBackend) ValidateAccess(context.Context, int, int, string) (backend.Validation, error) {
	return b.validation, nil
}

func (scoped) SendOTP(context.Context, string) error { return nil }

func (scoped) VerifyOTP(context.Context, string, string) (backend.AuthResult, error) {
	return backend.AuthResult{
		User:   domain.User{ID: "u-1"},
		Tokens: domain.Tokens{AccessToken: "tok", RefreshToken: "ref"},
	}, nil
}

func (scoped) SignInSocial(context.Context, string, string) (backend.AuthResult, error) {
	return backend.AuthResult{}, errors.New("not supported")
}

func (scoped) Logout(context.Context) error { return nil }

func (scoped) GetProfile(context.Context) (domain.Profile, error) {
	return domain.Profile{FirstName: "Ana", LastName: "Ruiz"}, nil
}

func (scoped) CreateProfile(_ context.Context, p domain.Profile) (domain.Profile, error) { return p, nil }

func (scoped) UpdateProfile(_ context.Context, p domain.Profile) (domain.Profile, error) { return p, nil }

func (s scoped) MigrateCart(_ context.Context, guestID, _ string) (backend.MigrationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.migrateErr != nil {
		return backend.MigrationReport{}, s.migrateErr
	}
	to := "user:tok"
	n := len(s.items[guestID])
	s.items[to] = append(s.items[to], s.items[guestID]...)
	delete(s.items, guestID)
	return backend.MigrationReport{Migrated: n}, nil
}

func (scoped) MigratePaymentMethods(context.Context, string, string) (backend.MigrationReport, error) {
	return backend.MigrationReport{}, nil
}

func (s scoped) GetCart(context.Context, int, int) (domain.Cart, error) {
	owner := s.owner()
	s.mu.Lock()
	defer s.mu.Unlock()
	c := domain.Cart{Items: append([]domain.CartItem(nil), s.items[owner]...)}
	c.Recompute()
	return c, nil
}

func (s scoped) AddToCart(_ context.Context, in backend.AddToCartInput) (domain.CartItem, error) {
	owner := s.owner()
	s.mu.Lock()
	defer s.mu.Unlock()
	item, _ := s.snapshot.FindItem(in.MenuItemID)
	s.nextID++
	line := domain.CartItem{
		CartItemID:   "ci-" + strconv.Itoa(s.nextID),
		MenuItemID:   in.MenuItemID,
		Name:         item.Name,
		BasePrice:    item.BasePrice(),
		Quantity:     in.Quantity,
		CustomFields: in.CustomFields,
		ExtraPrice:   in.ExtraPrice,
	}
	s.items[owner] = append(s.items[owner], line)
	return line, nil
}

func (s scoped) UpdateCartItem(_ context.Context, id string, qty int) error {
	owner := s.owner()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items[owner] {
		if s.items[owner][i].CartItemID == id {
			s.items[owner][i].Quantity = qty
			return nil
		}
	}
	return &backend.APIError{Status: 404, Message: "cart item not found"}
}

func (s scoped) RemoveCartItem(_ context.Context, id string) error {
	owner := s.owner()
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[owner][:0]
	for _, it := range s.items[owner] {
		if it.CartItemID != id {
			kept = append(kept, it)
		}
	}
	s.items[owner] = kept
	return nil
}

func (s scoped) ClearCart(context.Context, int, int) error {
	owner := s.owner()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, owner)
	return nil
}

func (s scoped) Charge(context.Context, backend.ChargeInput) (backend.Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges++
	return backend.Authorization{TransactionID: "tx"}, nil
}

func (s scoped) CreateDishOrder(_ context.Context, _ domain.Scope, line domain.DishOrderLine) (backend.DishOrderCreated, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dishes = append(s.dishes, line)
	return backend.DishOrderCreated{DishOrderID: "do-" + strconv.Itoa(len(s.dishes)), TapOrderID: "tap-9"}, nil
}

func (scoped) UpdateTapOrderPaymentStatus(context.Context, string, domain.PaymentStatus) error {
	return nil
}

func (scoped) UpdateTapOrderStatus(context.Context, string, domain.OrderStatus) error { return nil }

func (scoped) MarkDishPaid(context.Context, string) error { return nil }

func (scoped) RecordTransaction(context.Context, domain.PaymentTransactionRecord) error {
	return nil
}

func (s scoped) GetTapOrder(_ context.Context, id string) (domain.TapOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderCalls++
	if s.orderErr != nil {
		return domain.TapOrder{}, s.orderErr
	}
	o := s.order
	o.ID = id
	return o, nil
}

func (s scoped) ListPaymentMethods(context.Context) ([]domain.PaymentMethod, error) {
	return append([]domain.PaymentMethod(nil), s.cards...), nil
}

func (scoped) AddPaymentMethod(context.Context, string) (domain.PaymentMethod, error) {
	return domain.PaymentMethod{ID: "pm-new"}, nil
}

func (scoped) DeletePaymentMethod(context.Context, string) error { return nil }

func (scoped) SetDefaultPaymentMethod(context.Context, string) error { return nil }

func (s scoped) CreateReview(_ context.Context, in backend.Review) (backend.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in.ID = len(s.reviews) + 1
	s.reviews = append(s.reviews, in)
	return in, nil
}

func (scoped) MenuItemStats(_ context.Context, id int) (backend.ReviewStats, error) {
	return backend.ReviewStats{MenuItemID: id, AverageRating: 4.5, TotalReviews: 2}, nil
}

func (scoped) MyReview(context.Context, int, string) (backend.Review, error) {
	return backend.Review{}, &backend.APIError{Status: 404, Message: "no review"}
}

func (scoped) UpdateReview(_ context.Context, id, rating int, comment string) (backend.Review, error) {
	return backend.Review{ID: id, Rating: rating, Comment: comment}, nil
}

func (scoped) DeleteReview(context.Context, int) error { return nil }

type testServer struct {
	router *gin.Engine
	api    *stubBackend
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	api := newStubBackend()

	store, err := storage.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	sessions := session.New(store, func(src backend.CredentialSource) session.API { return api.dial(src) }, logger, session.WithMigrationDelay(0))
	catalog, err := restaurant.NewCatalog(api, time.Minute, 16, logger)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	restaurants, err := restaurant.NewRegistry(catalog, time.UTC, 16, logger)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	carts, err := cart.NewRegistry(16, logger)
	if err != nil {
		t.Fatalf("cart registry: %v", err)
	}
	receipts, err := receipt.NewStore(store, 16)
	if err != nil {
		t.Fatalf("receipts: %v", err)
	}
	orders, err := orderstatus.NewViewer(16, logger)
	if err != nil {
		t.Fatalf("viewer: %v", err)
	}
	calc := pricing.NewCalculator(pricing.DefaultRates, pricing.MinimumAmount)

	router, err := buildRouter(logger, Deps{
		Sessions:         sessions,
		Dial:             api.dial,
		Restaurants:      restaurants,
		Carts:            carts,
		Checkout:         checkout.New(calc, pricing.DefaultSchedule, receipts, store, nil, logger),
		Receipts:         receipts,
		Orders:           orders,
		Calculator:       calc,
		Schedule:         pricing.DefaultSchedule,
		AnimationDisplay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return &testServer{router: router, api: api}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAs(t, "dev-1", method, path, body)
}

func (s *testServer) doAs(t *testing.T, device, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(headerDeviceID, device)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %s: %v", rec.Body.String(), err)
	}
	if !env.Success {
		t.Fatalf("expected success, got %s", rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestBuildRouterRequiresDeps(t *testing.T) {
	if _, err := buildRouter(zap.NewNop(), Deps{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestDeviceMiddlewareMintsCookie(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(headerDeviceID) == "" {
		t.Fatalf("expected a device id header")
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), cookieDevice+"=") {
		t.Fatalf("expected device cookie, got %q", rec.Header().Get("Set-Cookie"))
	}
}

func TestResolveSessionEntersGuestMode(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/session/resolve", `{"table":"5","restaurantId":3,"branchNumber":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var out resolveResponse
	decodeData(t, rec, &out)
	if out.Identity.Mode != domain.ModeGuest || out.Identity.TableNumber != "5" {
		t.Fatalf("unexpected identity %+v", out.Identity)
	}
	if out.Validation == nil || !out.Validation.Valid {
		t.Fatalf("expected a valid validation, got %+v", out.Validation)
	}
}

func TestScopeMiddlewareRejectsInvalidTable(t *testing.T) {
	s := newTestServer(t)
	s.api.validation = backend.Validation{Valid: false, Error: "table not found"}

	rec := s.do(t, http.MethodGet, "/3/1/menu?table=99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"errorKind":"table_not_found"`) {
		t.Fatalf("expected table_not_found validation, got %s", rec.Body.String())
	}
}

func TestScopeMiddlewareRejectsBadParams(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/abc/1/menu", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMenuIncludesOpenState(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/3/1/menu?table=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var out menuResponse
	decodeData(t, rec, &out)
	if !out.IsOpen || out.Restaurant.Name != "La Cantina" || len(out.Menu) != 1 {
		t.Fatalf("unexpected menu %+v", out)
	}
}

func TestCartAddMergesIdenticalLines(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":1}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
		}
	}
	rec := s.do(t, http.MethodGet, "/3/1/cart", "")
	var out cartResponse
	decodeData(t, rec, &out)
	if len(out.Items) != 1 || out.Items[0].Quantity != 2 || out.TotalPrice != 200 {
		t.Fatalf("expected one line of 2 totalling 200, got %+v", out)
	}
}

func TestCartAddUnknownItem(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":77}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCartAddRejectedWhenClosed(t *testing.T) {
	s := newTestServer(t)
	closed := domain.OpeningHours{}
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		closed[d] = domain.DayHours{IsClosed: true}
	}
	s.api.snapshot.Restaurant.OpeningHours = closed

	rec := s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCartUpdateAndRemove(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":1}`)

	rec := s.do(t, http.MethodPatch, "/3/1/cart/items/1", `{"quantity":4}`)
	var out cartResponse
	decodeData(t, rec, &out)
	if out.TotalItems != 4 {
		t.Fatalf("expected 4 items, got %+v", out)
	}

	rec = s.do(t, http.MethodDelete, "/3/1/cart/items/1", "")
	decodeData(t, rec, &out)
	if len(out.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", out)
	}
}

func TestQuoteReportsGateAndTiers(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":1}`)

	rec := s.do(t, http.MethodPost, "/3/1/pricing/quote", `{"tipPercentage":10,"cardBrand":"visa"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var out quoteResponse
	decodeData(t, rec, &out)
	if out.Breakdown.TotalAmountCharged != 114.79 {
		t.Fatalf("expected total 114.79, got %.2f", out.Breakdown.TotalAmountCharged)
	}
	if !out.CheckoutAllowed {
		t.Fatalf("expected checkout allowed")
	}
	if len(out.Tiers) != 0 {
		t.Fatalf("expected no visa tiers under 300, got %+v", out.Tiers)
	}
}

func TestCheckoutWithSystemCardAndReceipt(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":1}`)
	s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":2}`)

	rec := s.do(t, http.MethodPost, "/3/1/checkout", `{"paymentMethodId":"system-default-card","customer":{"name":"Ana"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var out checkoutResponse
	decodeData(t, rec, &out)
	if out.TapOrderID != "tap-9" || len(out.DishOrderIDs) != 2 {
		t.Fatalf("unexpected result %+v", out.Result)
	}
	if out.NavigateTo != "/3/1/order-confirmation/tap-9?table=5" {
		t.Fatalf("unexpected navigation target %q", out.NavigateTo)
	}
	if s.api.charges != 0 {
		t.Fatalf("expected no external charge, got %d", s.api.charges)
	}

	rec = s.do(t, http.MethodGet, "/receipts/tap-9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected receipt, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodGet, "/3/1/cart", "")
	var c cartResponse
	decodeData(t, rec, &c)
	if len(c.Items) != 0 {
		t.Fatalf("expected cart cleared after checkout, got %+v", c)
	}

	deadline := time.Now().Add(time.Second)
	for {
		rec = s.do(t, http.MethodGet, "/checkout/animation", "")
		var a animationResponse
		decodeData(t, rec, &a)
		if a.State == checkout.AnimationNavigated {
			if a.NavigateTo != out.NavigateTo {
				t.Fatalf("expected animation to navigate to %q, got %q", out.NavigateTo, a.NavigateTo)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected animation to navigate, still %s", a.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCheckoutValidationIsUnprocessable(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":1}`)

	rec := s.do(t, http.MethodPost, "/3/1/checkout", `{"paymentMethodId":"unknown","customer":{"name":"Ana"}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), checkout.ReasonMissingPaymentMethod) {
		t.Fatalf("expected missing payment method reason, got %s", rec.Body.String())
	}
	if len(s.api.dishes) != 0 {
		t.Fatalf("expected no dish orders")
	}
}

func TestCheckoutProgressNotFound(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/3/1/menu?table=5", "")
	rec := s.do(t, http.MethodGet, "/checkout/progress", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestOrderErrorsStayInline(t *testing.T) {
	s := newTestServer(t)
	s.api.orderErr = errors.New("gateway timeout")
	rec := s.do(t, http.MethodGet, "/orders/tap-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with inline error, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"gateway timeout"`) {
		t.Fatalf("expected inline error, got %s", rec.Body.String())
	}

	s.api.orderErr = nil
	s.api.order = domain.TapOrder{Dishes: []domain.DishOrder{{ID: "d1", Status: domain.DishReady}}}
	rec = s.do(t, http.MethodGet, "/orders/tap-1?refresh=1", "")
	var view orderstatus.View
	decodeData(t, rec, &view)
	if view.Order == nil || view.Summary.Counts[domain.DishReady] != 1 {
		t.Fatalf("expected refreshed order, got %+v", view)
	}
}

func TestOrderRefreshFetchesOnce(t *testing.T) {
	s := newTestServer(t)
	s.api.order = domain.TapOrder{Dishes: []domain.DishOrder{{ID: "d1", Status: domain.DishPending}}}

	rec := s.do(t, http.MethodGet, "/orders/tap-1?refresh=1", "")
	var view orderstatus.View
	decodeData(t, rec, &view)
	if view.Order == nil {
		t.Fatalf("expected an order, got %+v", view)
	}
	if s.api.orderCalls != 1 {
		t.Fatalf("expected a single backend call for a first refresh, got %d", s.api.orderCalls)
	}

	s.doAs(t, "dev-2", http.MethodGet, "/orders/tap-1", "")
	if s.api.orderCalls != 2 {
		t.Fatalf("expected another device to fetch on its own, got %d calls", s.api.orderCalls)
	}
}

func TestSignInMigratesGuestCart(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":1}`)

	rec := s.do(t, http.MethodPost, "/auth/otp/verify", `{"phone":"+525555555555","code":"123456"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var res session.SignInResult
	decodeData(t, rec, &res)
	if res.Identity.Mode != domain.ModeAuthenticated || res.Migration == nil || !res.Migration.Completed {
		t.Fatalf("expected authenticated identity with completed migration, got %+v", res)
	}
	if res.Identity.TableNumber != "5" {
		t.Fatalf("expected table kept as context, got %+v", res.Identity)
	}

	rec = s.do(t, http.MethodGet, "/3/1/cart", "")
	var c cartResponse
	decodeData(t, rec, &c)
	if len(c.Items) != 1 {
		t.Fatalf("expected migrated cart line under the user, got %+v", c)
	}
}

func TestCartFollowsRetriedMigrationAcrossDevices(t *testing.T) {
	s := newTestServer(t)
	s.doAs(t, "dev-2", http.MethodPost, "/auth/otp/verify", `{"phone":"+525555555555","code":"123456"}`)
	rec := s.doAs(t, "dev-2", http.MethodGet, "/3/1/cart", "")
	var c cartResponse
	decodeData(t, rec, &c)
	if len(c.Items) != 0 {
		t.Fatalf("expected an empty user cart, got %+v", c)
	}

	s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":1}`)
	s.do(t, http.MethodPost, "/3/1/cart/items?table=5", `{"menuItemId":2}`)
	s.api.mu.Lock()
	s.api.migrateErr = errors.New("backend down")
	s.api.mu.Unlock()
	s.do(t, http.MethodPost, "/auth/otp/verify", `{"phone":"+525555555555","code":"123456"}`)

	s.api.mu.Lock()
	s.api.migrateErr = nil
	s.api.mu.Unlock()
	if rec := s.do(t, http.MethodPost, "/session/resolve", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 resolving, got %d body=%s", rec.Code, rec.Body.String())
	}

	for _, device := range []string{"dev-1", "dev-2"} {
		rec := s.doAs(t, device, http.MethodGet, "/3/1/cart", "")
		var got cartResponse
		decodeData(t, rec, &got)
		if len(got.Items) != 2 {
			t.Fatalf("%s: expected 2 migrated lines, got %+v", device, got)
		}
	}
}

func TestPaymentMethodsIncludeSystemCard(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/payment-methods", "")
	var methods []domain.PaymentMethod
	decodeData(t, rec, &methods)
	if len(methods) != 2 || !methods[1].IsSystem() {
		t.Fatalf("expected saved card plus system card, got %+v", methods)
	}
	rec = s.do(t, http.MethodDelete, "/payment-methods/"+domain.SystemCardID, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 deleting the system card, got %d", rec.Code)
	}
}

func TestReviewsCarryGuestOwner(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/session/resolve", `{"table":"5"}`)

	rec := s.do(t, http.MethodPost, "/reviews", `{"menuItemId":1,"rating":5,"comment":"rico"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(s.api.reviews) != 1 || s.api.reviews[0].GuestID == "" {
		t.Fatalf("expected review with guest owner, got %+v", s.api.reviews)
	}
	rec = s.do(t, http.MethodGet, "/reviews/menu-item/1/mine", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected backend 404 passed through, got %d", rec.Code)
	}
}

func TestLogoutDropsSession(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/auth/otp/verify", `{"phone":"+525555555555","code":"123456"}`)
	rec := s.do(t, http.MethodPost, "/auth/logout", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/session", "")
	var out resolveResponse
	decodeData(t, rec, &out)
	if out.Identity.Mode == domain.ModeAuthenticated {
		t.Fatalf("expected signed-out identity, got %+v", out.Identity)
	}
}

func TestReadyzReportsFailingCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/readyz", readyHandler([]ReadinessCheck{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
		{Name: "amqp", Check: func(context.Context) error { return errors.New("connection refused") }},
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "amqp not reachable") {
		t.Fatalf("expected failing check named, got %s", rec.Body.String())
	}
}

func TestReadyzWithoutChecks(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
