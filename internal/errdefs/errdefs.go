// Package errdefs defines the error taxonomy shared by the compliance core.
//
// Every sentinel here represents either a compliance violation or a defect
// and is surfaced to the caller unmodified. Callers may safely retry a whole
// operation after ErrTransactionTimeout or ErrConcurrentModification; all
// core operations are idempotent or rejecting with respect to already-applied
// terminal states.
package errdefs

import "errors"

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned when a requested status change is not
	// permitted by the entity's state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized is returned when the acting user lacks the required
	// relationship or capability for the operation.
	ErrUnauthorized = errors.New("actor not authorized")

	// ErrConcurrentModification is returned when an operation loses a
	// serialization race against another writer on the same lineage.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrEncoding is returned when a field value cannot be canonicalized for
	// hashing. This is always a defect, never user-caused.
	ErrEncoding = errors.New("canonical encoding failed")

	// ErrTransactionTimeout is returned when a transaction exceeds its
	// deadline or waits too long on a lock.
	ErrTransactionTimeout = errors.New("transaction timed out")

	// ErrStorage is returned on storage I/O failure.
	ErrStorage = errors.New("storage failure")
)
