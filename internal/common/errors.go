// Package common defines shared constants and sentinel errors used across
// client and server layers of CueSync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrorMissingParent = errors.New("referenced character does not exist")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Sync errors.
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrJournalCorrupt = errors.New("journal entry is corrupt")
	ErrUnresolved     = errors.New("conflict left unresolved")

	// ErrUnreachable marks a transport-level failure: the authoritative
	// store could not be reached, as opposed to rejecting the request.
	ErrUnreachable = errors.New("server unreachable")
)
