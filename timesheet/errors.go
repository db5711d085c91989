/*
errors.go - Centralized error types for the timesheet domain

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch with errors.Is/errors.As; structured types carry the
  context a user-facing rejection needs.

ERROR CATEGORIES:
  1. Validation errors - malformed hours or references, rejected before
     any write happens
  2. Lock errors - mutation attempted on a non-Draft entry or row
  3. Storage errors - recompute transaction failures, missing records

USAGE:
    if errors.Is(err, timesheet.ErrEntryLocked) {
        // surface as a 409 to the caller; nothing was written
    }

SEE ALSO:
  - workflow.go: Produces lock errors
  - lieu/engine.go: Wraps storage failures
*/
package timesheet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEntryLocked is returned when a mutation targets an entry (or a
	// grid row containing an entry) whose status is not Draft. The
	// attempted operation is a no-op; it is never silently ignored.
	ErrEntryLocked = errors.New("entry is locked")

	// ErrInvalidHours is returned for hours outside (0, 24] or with more
	// than two decimal places.
	ErrInvalidHours = errors.New("invalid hours")

	// ErrInvalidTransition is returned for a status change the workflow
	// does not permit.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrConfigMissing is returned by config stores for an absent key.
	// The engine treats this as "use the documented default", never as a
	// failure.
	ErrConfigMissing = errors.New("config key missing")

	// ErrReplaceLedger is returned when the transactional delete+insert of
	// a user's ledger fails. The previous ledger remains authoritative.
	ErrReplaceLedger = errors.New("ledger replacement failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// LockedEntryError reports which entry blocked a mutation.
type LockedEntryError struct {
	EntryID string
	Status  EntryStatus
}

func (e *LockedEntryError) Error() string {
	return fmt.Sprintf("entry %s is locked (status %s)", e.EntryID, e.Status)
}

func (e *LockedEntryError) Unwrap() error { return ErrEntryLocked }

// ValidationError reports a rejected input before it reached the workflow.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidHours }

// TransitionError reports an illegal workflow transition.
type TransitionError struct {
	From EntryStatus
	To   EntryStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition entry from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// rather than a storage fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEntryLocked) ||
		errors.Is(err, ErrInvalidHours) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
