package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/storage"
)

// SignInResult is what the frontend needs after a successful sign-in.
type SignInResult struct {
	Identity     domain.Identity  `json:"identity"`
	User         domain.User      `json:"user"`
	Profile      domain.Profile   `json:"profile"`
	NeedsProfile bool             `json:"needsProfile"`
	Migration    *MigrationResult `json:"migration,omitempty"`
}

// MigrationResult reports one guest-to-user migration attempt. It never blocks sign-in.
type MigrationResult struct {
	GuestID                string `json:"guestId"`
	CartMigrated           int    `json:"cartMigrated"`
	PaymentMethodsMigrated int    `json:"paymentMethodsMigrated"`
	Completed              bool   `json:"completed"`
	Skipped                bool   `json:"skipped,omitempty"`
	CartErr                error  `json:"-"`
	PaymentErr             error  `json:"-"`
}

// Err combines both migration failures.
func (r MigrationResult) Err() error {
	return multierr.Combine(r.CartErr, r.PaymentErr)
}

type pendingMigration struct {
	GuestID string    `json:"guest_id"`
	UserID  string    `json:"user_id"`
	Since   time.Time `json:"since"`
}

func (s *Session) SendOTP(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: phone required", domain.ErrValidation)
	}
	return s.svc.dial(nil).SendOTP(ctx, phone)
}

// VerifyOTP signs the device in and migrates any guest state.
func (s *Session) VerifyOTP(ctx context.Context, phone, code string, remember bool) (SignInResult, error) {
	if strings.TrimSpace(code) == "" {
		return SignInResult{}, fmt.Errorf("%w: code required", domain.ErrValidation)
	}
	res, err := s.svc.dial(nil).VerifyOTP(ctx, strings.TrimSpace(phone), strings.TrimSpace(code))
	if err != nil {
		return SignInResult{}, err
	}
	return s.establish(ctx, res, remember)
}

// SignInSocial exchanges an identity-provider token and signs the device in.
func (s *Session) SignInSocial(ctx context.Context, provider, idToken string, remember bool) (SignInResult, error) {
	if provider == "" || idToken == "" {
		return SignInResult{}, fmt.Errorf("%w: provider and token required", domain.ErrValidation)
	}
	res, err := s.svc.dial(nil).SignInSocial(ctx, provider, idToken)
	if err != nil {
		return SignInResult{}, err
	}
	return s.establish(ctx, res, remember)
}

func (s *Session) establish(ctx context.Context, res backend.AuthResult, remember bool) (SignInResult, error) {
	if res.Tokens.AccessToken == "" || res.User.ID == "" {
		return SignInResult{}, fmt.Errorf("sign-in returned no session")
	}
	if err := s.StoreTokens(ctx, res.Tokens); err != nil {
		return SignInResult{}, err
	}
	if err := s.svc.store.Set(ctx, s.device, storage.KeyUserID, res.User.ID); err != nil {
		return SignInResult{}, err
	}
	if err := s.svc.store.Set(ctx, s.device, storage.KeyRememberSession, fmt.Sprint(remember)); err != nil {
		return SignInResult{}, err
	}

	out := SignInResult{User: res.User, Profile: res.Profile, NeedsProfile: !res.Profile.Complete()}
	guestID, err := s.get(ctx, storage.KeyGuestID)
	if err != nil {
		return SignInResult{}, err
	}
	if guestID != "" {
		m := s.MigrateOnAuthentication(ctx, guestID, res.User.ID)
		out.Migration = &m
	}
	id, err := s.Identity(ctx)
	if err != nil {
		return SignInResult{}, err
	}
	out.Identity = id
	s.svc.logger.Info("session: signed in", zap.String("device", s.device), zap.String("user_id", res.User.ID), zap.Bool("needs_profile", out.NeedsProfile))
	return out, nil
}

// CompleteProfile fills the profile after OTP verification. A missing profile is created.
func (s *Session) CompleteProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	if strings.TrimSpace(p.FirstName) == "" {
		return domain.Profile{}, fmt.Errorf("%w: first name required", domain.ErrValidation)
	}
	api := s.api()
	out, err := api.UpdateProfile(ctx, p)
	if backend.IsStatus(err, 404) {
		return api.CreateProfile(ctx, p)
	}
	return out, err
}

// MigrateOnAuthentication moves guest cart lines first, then saved payment methods.
// Both migrations read the same guest id, so they run in that order with a pause in
// between. The guest id is removed only when both succeed; otherwise a pending marker
// keeps it for the next attempt. Concurrent calls for one device are collapsed.
func (s *Session) MigrateOnAuthentication(ctx context.Context, guestID, userID string) MigrationResult {
	res := MigrationResult{GuestID: guestID}
	if guestID == "" || userID == "" {
		res.Skipped = true
		return res
	}
	if !s.svc.begin(s.device) {
		res.Skipped = true
		return res
	}
	defer s.svc.end(s.device)

	log := s.svc.logger.With(zap.String("device", s.device), zap.String("guest_id", guestID), zap.String("user_id", userID))
	marker := pendingMigration{GuestID: guestID, UserID: userID, Since: s.svc.now()}
	if err := storage.SetJSON(ctx, s.svc.store, s.device, storage.KeyPendingMigration, marker); err != nil {
		log.Warn("session: write pending migration", zap.Error(err))
	}

	api := s.api()
	cart, err := api.MigrateCart(ctx, guestID, userID)
	if err != nil {
		res.CartErr = fmt.Errorf("migrate cart: %w", err)
		log.Warn("session: cart migration failed", zap.Error(err))
	} else {
		res.CartMigrated = cart.Migrated
		s.svc.cartMigrated(s.device, guestID, userID)
	}

	if s.svc.delay > 0 {
		t := time.NewTimer(s.svc.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			res.PaymentErr = ctx.Err()
			log.Warn("session: migration interrupted", zap.Error(ctx.Err()))
			return res
		case <-t.C:
		}
	}

	pm, err := api.MigratePaymentMethods(ctx, guestID, userID)
	if err != nil {
		res.PaymentErr = fmt.Errorf("migrate payment methods: %w", err)
		log.Warn("session: payment method migration failed", zap.Error(err))
	} else {
		res.PaymentMethodsMigrated = pm.Migrated
	}

	if res.Err() != nil {
		return res
	}
	if err := storage.DeleteKeys(ctx, s.svc.store, s.device, storage.KeyGuestID, storage.KeyPendingMigration); err != nil {
		log.Warn("session: drop guest id", zap.Error(err))
		return res
	}
	res.Completed = true
	log.Info("session: guest migrated", zap.Int("cart", res.CartMigrated), zap.Int("payment_methods", res.PaymentMethodsMigrated))
	return res
}
