// Package common defines shared constants and sentinel errors used across
// the backoffice components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Store/manager errors.
	ErrNotFound        = errors.New("not found")
	ErrMissingField    = errors.New("missing required field")
	ErrEmptyCollection = errors.New("user list must not be empty")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrProtectedRecord = errors.New("record is protected")
	ErrLastActiveAdmin = errors.New("cannot remove the last active administrator")
	ErrSelfRemoval     = errors.New("cannot remove the current session user")
	ErrWriteVerify     = errors.New("post-write verification failed")

	// Session errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNoSession          = errors.New("no active session")
)
