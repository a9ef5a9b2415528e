package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation marks user-recoverable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrRestaurantClosed is returned when a gated action runs outside opening hours.
	ErrRestaurantClosed = errors.New("restaurant closed")
	// ErrSessionExpired is returned when a bearer token could not be refreshed.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidAccess indicates a restaurant/branch/table triple that failed validation.
	ErrInvalidAccess = errors.New("invalid table access")
)
