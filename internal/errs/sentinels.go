// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrValidation indicates missing or empty required input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated indicates a missing credential or a credential for a vanished user.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidToken indicates a signature mismatch, wrong algorithm or expired token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenMismatch indicates a refresh token that is valid but no longer the stored one.
	ErrTokenMismatch = errors.New("refresh token mismatch")

	// ErrInvalidCredentials indicates a wrong email/password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrForbidden indicates a role, ownership or tenant mismatch.
	ErrForbidden = errors.New("forbidden")

	// ErrQuotaExceeded indicates the free-plan note cap has been reached.
	ErrQuotaExceeded = errors.New("note quota exceeded")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound indicates the user vanished between lookup and use.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnresolvedTenant indicates an email domain that maps to no tenant.
	ErrUnresolvedTenant = errors.New("email not associated with any tenant")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
