// Package session resolves the visitor identity of a device and owns its
// lifecycle: guest minting, sign-in, guest-to-user migration and logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/storage"
)

// API is the part of the backend the session needs.
type API interface {
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (backend.AuthResult, error)
	SignInSocial(ctx context.Context, provider, idToken string) (backend.AuthResult, error)
	Logout(ctx context.Context) error
	GetProfile(ctx context.Context) (domain.Profile, error)
	CreateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error)
	UpdateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error)
	MigrateCart(ctx context.Context, guestID, userID string) (backend.MigrationReport, error)
	MigratePaymentMethods(ctx context.Context, guestID, userID string) (backend.MigrationReport, error)
}

// Dialer scopes the backend to a credential source.
type Dialer func(src backend.CredentialSource) API

type Service struct {
	store  storage.Store
	dial   Dialer
	logger *zap.Logger
	delay  time.Duration
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
	teardown []func(device string)
	migrated []func(device, guestID, userID string)
}

type Option func(*Service)

// WithMigrationDelay sets the pause between cart and payment-method migration.
func WithMigrationDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store storage.Store, dial Dialer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		dial:     dial,
		logger:   logger,
		delay:    300 * time.Millisecond,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnTeardown registers a hook that drops session-scoped copies for a device on logout.
func (s *Service) OnTeardown(fn func(device string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown = append(s.teardown, fn)
}

// OnCartMigrated registers a hook run once guest cart lines were moved to the user,
// whether by sign-in or by a later retry.
func (s *Service) OnCartMigrated(fn func(device, guestID, userID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrated = append(s.migrated, fn)
}

func (s *Service) cartMigrated(device, guestID, userID string) {
	s.mu.Lock()
	hooks := append([]func(string, string, string){}, s.migrated...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(device, guestID, userID)
	}
}

// Open returns the session of a device. Sessions are cheap views over the store.
func (s *Service) Open(device string) *Session {
	return &Session{svc: s, device: device}
}

// NewGuestID mints "guest-<unixMillis>-<random9>".
func (s *Service) NewGuestID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "guest-" + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + random
}

func (s *Service) begin(device string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[device]; ok {
		return false
	}
	s.inflight[device] = struct{}{}
	return true
}

func (s *Service) end(device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, device)
}

// Session is the identity view of one device. It is the backend credential source for that device.
type Session struct {
	svc    *Service
	device string
}

func (s *Session) Device() string { return s.device }

func (s *Session) get(ctx context.Context, key string) (string, error) {
	return storage.GetOptional(ctx, s.svc.store, s.device, key)
}

func (s *Session) api() API {
	return s.svc.dial(s)
}

// Credentials implements backend.CredentialSource. An access token suppresses guest headers.
func (s *Session) Credentials(ctx context.Context) (backend.Credentials, error) {
	access, err := s.get(ctx, storage.KeyAccessToken)
	if err != nil {
		return backend.Credentials{}, err
	}
	if access != "" {
		refresh, err := s.get(ctx, storage.KeyRefreshToken)
		if err != nil {
			return backend.Credentials{}, err
		}
		return backend.Credentials{AccessToken: access, RefreshToken: refresh}, nil
	}
	guestID, err := s.get(ctx, storage.KeyGuestID)
	if err != nil {
		return backend.Credentials{}, err
	}
	table, err := s.get(ctx, storage.KeyTableNumber)
	if err != nil {
		return backend.Credentials{}, err
	}
	return backend.Credentials{GuestID: guestID, TableNumber: table}, nil
}

// StoreTokens implements backend.CredentialSource.
func (s *Session) StoreTokens(ctx context.Context, tokens domain.Tokens) error {
	if err := s.svc.store.Set(ctx, s.device, storage.KeyAccessToken, tokens.AccessToken); err != nil {
		return err
	}
	if tokens.RefreshToken != "" {
		return s.svc.store.Set(ctx, s.device, storage.KeyRefreshToken, tokens.RefreshToken)
	}
	return nil
}

// Identity reads the current identity without side effects.
func (s *Session) Identity(ctx context.Context) (domain.Identity, error) {
	access, err := s.get(ctx, storage.KeyAccessToken)
	if err != nil {
		return domain.Identity{}, err
	}
	table, err := s.get(ctx, storage.KeyTableNumber)
	if err != nil {
		return domain.Identity{}, err
	}
	if access != "" {
		userID, err := s.get(ctx, storage.KeyUserID)
		if err != nil {
			return domain.Identity{}, err
		}
		return domain.Identity{Mode: domain.ModeAuthenticated, UserID: userID, TableNumber: table}, nil
	}
	guestID, err := s.get(ctx, storage.KeyGuestID)
	if err != nil {
		return domain.Identity{}, err
	}
	if guestID != "" {
		return domain.Identity{Mode: domain.ModeGuest, GuestID: guestID, TableNumber: table}, nil
	}
	return domain.Identity{TableNumber: table}, nil
}

// Resolve runs on every page load.
//
// An authenticated session wins; its table number is kept as table context and the
// stored guest id is only kept while a migration is pending, which Resolve retries.
// Otherwise a table parameter establishes (or reuses) a guest identity.
// Otherwise a stored guest session is restored as-is.
func (s *Session) Resolve(ctx context.Context, table string) (domain.Identity, error) {
	access, err := s.get(ctx, storage.KeyAccessToken)
	if err != nil {
		return domain.Identity{}, err
	}
	if access != "" {
		if table != "" {
			if err := s.svc.store.Set(ctx, s.device, storage.KeyTableNumber, table); err != nil {
				return domain.Identity{}, err
			}
		}
		id, err := s.Identity(ctx)
		if err != nil {
			return domain.Identity{}, err
		}
		s.retryPendingMigration(ctx, id.UserID)
		return id, nil
	}
	if table != "" {
		return s.SetGuest(ctx, table)
	}
	return s.Identity(ctx)
}

// SetGuest enters guest mode for a table, reusing a stored guest id.
func (s *Session) SetGuest(ctx context.Context, table string) (domain.Identity, error) {
	if table == "" {
		return domain.Identity{}, fmt.Errorf("%w: table number required", domain.ErrValidation)
	}
	guestID, err := s.get(ctx, storage.KeyGuestID)
	if err != nil {
		return domain.Identity{}, err
	}
	if guestID == "" {
		guestID = s.svc.NewGuestID()
		if err := s.svc.store.Set(ctx, s.device, storage.KeyGuestID, guestID); err != nil {
			return domain.Identity{}, err
		}
		s.svc.logger.Info("session: guest minted", zap.String("device", s.device), zap.String("guest_id", guestID))
	}
	if err := s.svc.store.Set(ctx, s.device, storage.KeyTableNumber, table); err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{Mode: domain.ModeGuest, GuestID: guestID, TableNumber: table}, nil
}

// SetScope remembers the restaurant and branch the device is ordering from.
func (s *Session) SetScope(ctx context.Context, restaurantID, branch int) error {
	if err := s.svc.store.Set(ctx, s.device, storage.KeyRestaurantID, strconv.Itoa(restaurantID)); err != nil {
		return err
	}
	return s.svc.store.Set(ctx, s.device, storage.KeyBranchNumber, strconv.Itoa(branch))
}

// Scope returns the last restaurant, branch and table of the device. ok is false until
// SetScope was called.
func (s *Session) Scope(ctx context.Context) (scope domain.Scope, ok bool, err error) {
	rid, err := s.get(ctx, storage.KeyRestaurantID)
	if err != nil || rid == "" {
		return domain.Scope{}, false, err
	}
	branch, err := s.get(ctx, storage.KeyBranchNumber)
	if err != nil || branch == "" {
		return domain.Scope{}, false, err
	}
	table, err := s.get(ctx, storage.KeyTableNumber)
	if err != nil {
		return domain.Scope{}, false, err
	}
	scope.RestaurantID, err = strconv.Atoi(rid)
	if err != nil {
		return domain.Scope{}, false, fmt.Errorf("stored restaurant id %q: %w", rid, err)
	}
	scope.BranchNumber, err = strconv.Atoi(branch)
	if err != nil {
		return domain.Scope{}, false, fmt.Errorf("stored branch %q: %w", branch, err)
	}
	scope.TableNumber = table
	return scope, true, nil
}

// Teardown logs out: backend logout is best-effort, local tokens and session copies are always dropped.
func (s *Session) Teardown(ctx context.Context) error {
	if access, _ := s.get(ctx, storage.KeyAccessToken); access != "" {
		if err := s.api().Logout(ctx); err != nil {
			s.svc.logger.Warn("session: backend logout failed", zap.String("device", s.device), zap.Error(err))
		}
	}
	err := storage.DeleteKeys(ctx, s.svc.store, s.device,
		storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyUserID, storage.KeyRememberSession)
	s.svc.mu.Lock()
	hooks := append([]func(string){}, s.svc.teardown...)
	s.svc.mu.Unlock()
	for _, fn := range hooks {
		fn(s.device)
	}
	return err
}

func (s *Session) retryPendingMigration(ctx context.Context, userID string) {
	var marker pendingMigration
	err := storage.GetJSON(ctx, s.svc.store, s.device, storage.KeyPendingMigration, &marker)
	if errors.Is(err, domain.ErrNotFound) {
		_ = storage.DeleteKeys(ctx, s.svc.store, s.device, storage.KeyGuestID)
		return
	}
	if err != nil {
		s.svc.logger.Warn("session: read pending migration", zap.String("device", s.device), zap.Error(err))
		return
	}
	if marker.UserID != "" && userID != "" && marker.UserID != userID {
		// A different user signed in on this device; the old guest data is abandoned.
		_ = storage.DeleteKeys(ctx, s.svc.store, s.device, storage.KeyPendingMigration, storage.KeyGuestID)
		return
	}
	res := s.MigrateOnAuthentication(ctx, marker.GuestID, userID)
	if !res.Skipped && res.Completed {
		s.svc.logger.Info("session: pending migration completed", zap.String("device", s.device))
	}
}
