package domain

import "time"

// IdentityMode tells which transport identity is active for a device.
type IdentityMode string

const (
	ModeNone          IdentityMode = ""
	ModeGuest         IdentityMode = "guest"
	ModeAuthenticated IdentityMode = "authenticated"
)

// Identity is the resolved visitor identity. Exactly one mode is active at a time.
type Identity struct {
	Mode        IdentityMode `json:"mode"`
	GuestID     string       `json:"guestId,omitempty"`
	TableNumber string       `json:"tableNumber,omitempty"`
	UserID      string       `json:"userId,omitempty"`
}

// Owner returns the identifier that owns carts and orders for this identity.
func (i Identity) Owner() string {
	if i.Mode == ModeAuthenticated {
		return i.UserID
	}
	return i.GuestID
}

// IsZero reports whether no identity has been established yet.
func (i Identity) IsZero() bool {
	return i.Mode == ModeNone
}

type User struct {
	ID          string `json:"id"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	AccountType string `json:"account_type,omitempty"`
}

// Profile may be incomplete right after OTP verification.
type Profile struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`
	Gender    string `json:"gender,omitempty"`
	PhotoURL  string `json:"photoUrl,omitempty"`
}

// Complete reports whether the profile has the fields required to order.
func (p Profile) Complete() bool {
	return p.FirstName != ""
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}
