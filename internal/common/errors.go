// Package common holds sentinel errors and small helpers shared by the
// server packages. Callers match the sentinels with errors.Is.
package common

import "errors"

var (
	// Generic errors.
	ErrorNotFound     = errors.New("not found")
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrStoreUnavailable marks failures of the keyed record store itself
	// (connection loss, transaction timeout, contention retries exhausted).
	// It is kept distinct from the business-logic errors below so a caller
	// can tell "rejected" apart from "infrastructure problem".
	ErrStoreUnavailable = errors.New("record store unavailable")

	// Magic-link redemption errors. Exactly one of these is returned for
	// every failed redemption.
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenAlreadyUsed = errors.New("token already used")
	ErrTokenExpired     = errors.New("token expired")

	// Session auth errors (invalid or malformed access token).
	ErrInvalidToken = errors.New("invalid token")
)
