/*
errors.go - Centralized error taxonomy for the schedule engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Service packages wrap these with additional context.

ERROR CATEGORIES:
  1. Validation errors  - malformed input, rejected before any state change
  2. Conflict errors    - optimistic-concurrency losses, duplicate punches
  3. State errors       - illegal lifecycle transitions
  4. Integrity errors   - checksum mismatches, surfaced loudly
  5. Pending-items      - a lock attempt blocked by unresolved work

USAGE:
  if errors.Is(err, schedule.ErrStaleVersion) {
      // re-read the chain head and retry
  }

SEE ALSO:
  - types.go: the entities these errors refer to
  - api/handlers.go: maps this taxonomy to HTTP status codes
*/
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input. Nothing was changed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a new chain would overlap an existing
	// one for the same venue.
	ErrConflict = errors.New("conflicting snapshot chain")

	// ErrStaleVersion is returned when a new version is based on a snapshot
	// that is no longer the chain head. The caller must re-read and retry.
	ErrStaleVersion = errors.New("stale snapshot version")

	// ErrState is returned for illegal lifecycle transitions.
	ErrState = errors.New("illegal state transition")

	// ErrIntegrity is returned when a stored checksum does not match the
	// recomputed one. Never silently repaired.
	ErrIntegrity = errors.New("snapshot integrity violation")

	// ErrPendingItems is returned when a week lock is requested while
	// unresolved anomalies or unapproved extra hours remain.
	ErrPendingItems = errors.New("pending items block week lock")

	// ErrWeekLocked is returned for any mutation scoped to a LOCKED week.
	ErrWeekLocked = errors.New("week is locked")

	// ErrWeekClosed is returned for any mutation scoped to a CLOSED week.
	// CLOSED is terminal; unlike LOCKED it cannot be undone.
	ErrWeekClosed = errors.New("week is closed")

	// ErrAlreadyLocked is returned when locking a week that is already
	// LOCKED or CLOSED.
	ErrAlreadyLocked = errors.New("week already locked")

	// ErrAlreadyClockedIn is returned when a staff member clocks in twice.
	ErrAlreadyClockedIn = errors.New("already clocked in")

	// ErrNotClockedIn is returned when clocking out without an open clock-in.
	ErrNotClockedIn = errors.New("not clocked in")

	// ErrDuplicateEvent is returned when an identical punch (same staff,
	// kind, timestamp) is re-submitted. Expected behavior for retries.
	ErrDuplicateEvent = errors.New("duplicate time event")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError reports a single invalid or missing field.
type FieldError struct {
	Field string
	Value string
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("missing required field %q", e.Field)
	}
	return fmt.Sprintf("invalid value %q for field %q", e.Value, e.Field)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// StaleVersionError reports an optimistic-concurrency loss on a chain.
type StaleVersionError struct {
	PreviousID  SnapshotID
	HeadID      SnapshotID
	HeadVersion int
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("snapshot %s is not the chain head (head is %s, version %d)",
		e.PreviousID, e.HeadID, e.HeadVersion)
}

func (e *StaleVersionError) Unwrap() error { return ErrStaleVersion }

// StateError reports an illegal transition attempt.
type StateError struct {
	Entity string // "snapshot", "week_lock", "anomaly", "extra_hours"
	From   string
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s %s in state %s", e.Op, e.Entity, e.From)
}

func (e *StateError) Unwrap() error { return ErrState }

// IntegrityError reports a checksum mismatch on a snapshot read.
type IntegrityError struct {
	SnapshotID SnapshotID
	Stored     string
	Computed   string
	Cycle      bool // true when a history walk detected a cycle
}

func (e *IntegrityError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("snapshot %s: version chain contains a cycle", e.SnapshotID)
	}
	return fmt.Sprintf("snapshot %s: stored checksum %s does not match computed %s",
		e.SnapshotID, e.Stored, e.Computed)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// PendingItemsError lists the items blocking a week lock so the caller
// can resolve them first.
type PendingItemsError struct {
	VenueID              VenueID
	WeekStart            time.Time
	UnresolvedAnomalies  []AnomalyID
	UnapprovedExtraHours []string // ExtraHoursRecord IDs
}

func (e *PendingItemsError) Error() string {
	return fmt.Sprintf("week of %s for venue %s has %d unresolved anomalies and %d unapproved extra-hours records",
		e.WeekStart.Format("2006-01-02"), e.VenueID,
		len(e.UnresolvedAnomalies), len(e.UnapprovedExtraHours))
}

func (e *PendingItemsError) Unwrap() error { return ErrPendingItems }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry after
// re-reading current state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleVersion)
}

// IsClientError returns true if the error is due to invalid client input
// or a conflict the client can act on.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrStaleVersion) ||
		errors.Is(err, ErrState) ||
		errors.Is(err, ErrPendingItems) ||
		errors.Is(err, ErrWeekLocked) ||
		errors.Is(err, ErrWeekClosed) ||
		errors.Is(err, ErrAlreadyLocked) ||
		errors.Is(err, ErrAlreadyClockedIn) ||
		errors.Is(err, ErrNotClockedIn) ||
		errors.Is(err, ErrDuplicateEvent)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
