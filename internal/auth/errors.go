package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike, so callers cannot probe which emails are registered.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")

	// ErrAccountNotActive is returned once credentials verify but the account
	// status is not ACTIVE.
	ErrAccountNotActive = errors.New("auth: account is not active")

	ErrMissingToken = errors.New("auth: access token required")

	// Token codec failures stay distinct internally; the HTTP layer collapses
	// them into one generic unauthorized response.
	ErrInvalidToken   = errors.New("auth: invalid token signature")
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrTokenMalformed = errors.New("auth: token malformed")

	ErrSessionExpired  = errors.New("auth: session expired")
	ErrSessionNotFound = errors.New("auth: session not found")

	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")

	// Self-modification guards, enforced before any store mutation.
	ErrSelfDelete       = errors.New("auth: cannot delete your own account")
	ErrSelfStatusChange = errors.New("auth: cannot change your own status")
)
