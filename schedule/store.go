/*
store.go - Persistence interfaces for the schedule engine

PURPOSE:
  Defines the interface between the domain services and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  EventStore:      Append-only clock-event ledger
  AnomalyStore:    Anomaly records and resolution
  SnapshotStore:   Version chain persistence with head tracking
  WeekLockStore:   One lock row per venue+ISO-week
  ExtraHoursStore: Weekly extra-hours records
  Store:           All of the above
  TxStore:         Store plus WithTx for atomic multi-step operations

APPEND-ONLY CONTRACT:
  Time events have no Update or Delete. The single exception is
  SetEventApproval, which sets the manager-adjudication fields once,
  driven by an anomaly resolution.

TRANSACTION BOUNDARIES:
  Week-lock checks and the mutations they gate MUST run inside the same
  WithTx call. A lock acquired concurrently with a pending resolution
  would otherwise race.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
  - schedule/store/memory.go: in-memory for testing
*/
package schedule

import (
	"context"
	"time"
)

// =============================================================================
// EVENT STORE - Append-only clock ledger
// =============================================================================

type EventStore interface {
	// AppendEvent persists a clock event. Returns ErrDuplicateEvent when
	// an event with the same (staffID, kind, timestamp) already exists,
	// which makes retries after timeouts safe.
	AppendEvent(ctx context.Context, ev TimeEvent) error

	// EventByID returns a single event, ErrNotFound if missing.
	EventByID(ctx context.Context, id EventID) (*TimeEvent, error)

	// EventsByStaff returns a staff member's events in [from, to],
	// ordered by timestamp ascending.
	EventsByStaff(ctx context.Context, staffID StaffID, from, to time.Time) ([]TimeEvent, error)

	// LastEvent returns the most recent IN/OUT event for a staff member,
	// nil when the ledger is empty. Pause events are skipped: they do
	// not change clocked-in status.
	LastEvent(ctx context.Context, staffID StaffID) (*TimeEvent, error)

	// OpenClockIns returns IN events with no later OUT for the venue,
	// with timestamps at or before the cutoff. Used by the
	// missing-punch sweep.
	OpenClockIns(ctx context.Context, venueID VenueID, cutoff time.Time) ([]TimeEvent, error)

	// SetEventApproval sets the manager-adjudication fields of an event.
	// Called exactly once per event, by anomaly resolution.
	SetEventApproval(ctx context.Context, id EventID, approved bool, notes string) error

	// FlagEventAnomaly marks an event as anomalous after the fact.
	// Used by the missing-punch sweep; classification at punch time sets
	// the flag on the event before it is appended.
	FlagEventAnomaly(ctx context.Context, id EventID, reason string) error
}

// =============================================================================
// ANOMALY STORE
// =============================================================================

type AnomalyStore interface {
	SaveAnomaly(ctx context.Context, a Anomaly) error
	AnomalyByID(ctx context.Context, id AnomalyID) (*Anomaly, error)

	// AnomaliesByVenue returns anomalies dated within [from, to].
	// unresolvedOnly filters to IsResolved == false.
	AnomaliesByVenue(ctx context.Context, venueID VenueID, from, to time.Time, unresolvedOnly bool) ([]Anomaly, error)

	// MarkAnomalyResolved records the one-time resolution.
	MarkAnomalyResolved(ctx context.Context, a Anomaly) error

	// AnomalyExistsForEvent reports whether an anomaly of the given type
	// already references the event. Keeps the sweep idempotent.
	AnomalyExistsForEvent(ctx context.Context, eventID EventID, typ AnomalyType) (bool, error)
}

// =============================================================================
// SNAPSHOT STORE - Version chain with head tracking
// =============================================================================

type SnapshotStore interface {
	// InsertSnapshot persists a new snapshot and marks it the chain head.
	// When previousID is non-empty the previous head is demoted in the
	// same operation; if previousID is not the current head the insert
	// fails with ErrStaleVersion (exactly one concurrent writer wins).
	InsertSnapshot(ctx context.Context, snap ScheduleSnapshot, previousID SnapshotID) error

	// UpdateSnapshot rewrites a snapshot's shifts, checksum, totals and
	// status. Callers enforce lifecycle rules; the store just persists.
	UpdateSnapshot(ctx context.Context, snap ScheduleSnapshot) error

	// SnapshotByID returns a snapshot with its shifts, ErrNotFound if missing.
	SnapshotByID(ctx context.Context, id SnapshotID) (*ScheduleSnapshot, error)

	// HeadSnapshot returns the current head for a venue+date-range chain,
	// nil when no chain exists.
	HeadSnapshot(ctx context.Context, venueID VenueID, start, end time.Time) (*ScheduleSnapshot, error)

	// OverlappingChainExists reports whether any chain for the venue
	// overlaps [start, end].
	OverlappingChainExists(ctx context.Context, venueID VenueID, start, end time.Time) (bool, error)

	// DeleteDraftSnapshot removes a DRAFT snapshot and re-marks its
	// predecessor (if any) as head.
	DeleteDraftSnapshot(ctx context.Context, id SnapshotID) error

	// PlannedShifts returns non-cancelled shifts for a staff member whose
	// start times fall in [from, to], taken from head snapshots that are
	// PUBLISHED or later. Draft plans don't count as planned work.
	PlannedShifts(ctx context.Context, staffID StaffID, from, to time.Time) ([]Shift, error)

	// ShiftByID resolves a shift from any head snapshot.
	ShiftByID(ctx context.Context, id ShiftID) (*Shift, error)
}

// =============================================================================
// WEEK LOCK STORE
// =============================================================================

type WeekLockStore interface {
	// WeekLockFor returns the lock row for venue+weekStart, nil when the
	// week has never been locked (implicitly OPEN).
	WeekLockFor(ctx context.Context, venueID VenueID, weekStart time.Time) (*WeekLock, error)

	// SaveWeekLock inserts or updates the lock row.
	SaveWeekLock(ctx context.Context, lock WeekLock) error
}

// =============================================================================
// EXTRA HOURS STORE
// =============================================================================

type ExtraHoursStore interface {
	// UpsertExtraHours inserts or updates the record keyed by
	// (staffID, venueID, weekStart). Approved records are never
	// overwritten by recomputation.
	UpsertExtraHours(ctx context.Context, rec ExtraHoursRecord) error

	ExtraHoursFor(ctx context.Context, staffID StaffID, venueID VenueID, weekStart time.Time) (*ExtraHoursRecord, error)

	// ExtraHoursByVenueWeek returns all records for a venue+week.
	// unapprovedOnly filters to IsApproved == false.
	ExtraHoursByVenueWeek(ctx context.Context, venueID VenueID, weekStart time.Time, unapprovedOnly bool) ([]ExtraHoursRecord, error)
}

// =============================================================================
// COMPOSITE + TRANSACTIONAL STORE
// =============================================================================

type Store interface {
	EventStore
	AnomalyStore
	SnapshotStore
	WeekLockStore
	ExtraHoursStore
}

// TxStore wraps Store with transaction support. If fn returns an error
// the transaction is rolled back, otherwise committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT LOG - Separate from the ledger, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditClockIn            AuditAction = "clock_in"
	AuditClockOut           AuditAction = "clock_out"
	AuditAnomalyResolved    AuditAction = "anomaly_resolved"
	AuditExtraHoursApproved AuditAction = "extra_hours_approved"
	AuditWeekLocked         AuditAction = "week_locked"
	AuditWeekUnlocked       AuditAction = "week_unlocked"
	AuditWeekClosed         AuditAction = "week_closed"
	AuditSnapshotCreated    AuditAction = "snapshot_created"
	AuditSnapshotPublished  AuditAction = "snapshot_published"
	AuditSnapshotLocked     AuditAction = "snapshot_locked"
	AuditSnapshotArchived   AuditAction = "snapshot_archived"
)

type AuditEntry struct {
	ID      string
	At      time.Time
	ActorID string
	Action  AuditAction
	VenueID VenueID
	StaffID StaffID
	Subject string // ID of the record acted upon
	Payload map[string]any
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, venueID VenueID, from, to time.Time) ([]AuditEntry, error)
}
