package models

import "errors"

// Sentinel errors forming the failure taxonomy of the core. Services wrap
// these with context via fmt.Errorf("...: %w", Err...) and callers test
// with errors.Is.
var (
	// ErrValidation indicates a malformed input: non-positive amount,
	// inverted voting window, weight or majority outside (0,1].
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates a role requirement was not met.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates a duplicate vote or an invalid state
	// transition (e.g. cancelling a resolved proposal).
	ErrConflict = errors.New("conflict")

	// ErrInsufficientFunds indicates a withdrawal or allocation exceeding
	// the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrRegistryUnavailable indicates the membership registry could not
	// be reached; operations fail closed rather than guess at weights.
	ErrRegistryUnavailable = errors.New("membership registry unavailable")

	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)
