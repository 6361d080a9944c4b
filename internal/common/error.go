// Package common defines shared sentinel errors and small helpers used across
// VoiceDrop server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Credential validation errors.
	ErrorInvalidEmail       = errors.New("invalid email, try again")
	ErrorPasswordTooShort   = errors.New("password must be at least 6 characters long")
	ErrorPasswordWhitespace = errors.New("password must not contain whitespace")
	ErrorPasswordMismatch   = errors.New("passwords do not match")

	// Capture errors.
	ErrorInvalidStreamOwner = errors.New("invalid stream owner")
	ErrorStreamClosed       = errors.New("stream already finished")
	ErrorStreamBusy         = errors.New("another stream is already recording for this user")

	// Session cookie errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
