package backend

import (
	"context"

	"xquisito-tap/internal/domain"
)

// AuthResult is returned by OTP verification and social sign-in.
type AuthResult struct {
	User    domain.User    `json:"user"`
	Profile domain.Profile `json:"profile"`
	Tokens  domain.Tokens  `json:"session"`
}

func (r *Requester) SendOTP(ctx context.Context, phone string) error {
	return r.post(ctx, "/auth/customer/send-otp", map[string]string{"phone": phone}, nil)
}

func (r *Requester) VerifyOTP(ctx context.Context, phone, code string) (AuthResult, error) {
	var out AuthResult
	err := r.post(ctx, "/auth/customer/verify-otp", map[string]string{"phone": phone, "token": code}, &out)
	return out, err
}

// SignInSocial exchanges an identity-provider token for a session.
func (r *Requester) SignInSocial(ctx context.Context, provider, idToken string) (AuthResult, error) {
	var out AuthResult
	err := r.post(ctx, "/auth/customer/social", map[string]string{"provider": provider, "id_token": idToken}, &out)
	return out, err
}

func (r *Requester) Logout(ctx context.Context) error {
	return r.post(ctx, "/auth/logout", nil, nil)
}

func (r *Requester) GetProfile(ctx context.Context) (domain.Profile, error) {
	var out domain.Profile
	err := r.get(ctx, "/profiles", nil, &out)
	return out, err
}

func (r *Requester) CreateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	var out domain.Profile
	err := r.post(ctx, "/profiles", p, &out)
	return out, err
}

func (r *Requester) UpdateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	var out domain.Profile
	err := r.put(ctx, "/profiles", p, &out)
	return out, err
}
