// Package common defines sentinel errors and small helpers shared by the
// VisionLock server, its services and repositories. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Enrollment conflicts. Both are surfaced to clients as the same conflict.
	ErrDuplicateIdentity = errors.New("identity already exists")
	ErrDuplicateFace     = errors.New("face already enrolled")

	// Validation errors.
	ErrorValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
