/*
Package schedule provides the core domain model for the shift engine.

PURPOSE:
  This package contains the shared types for the schedule reconciliation
  core: the append-only clock-event ledger, planned shifts, versioned
  schedule snapshots, week locks, attendance anomalies, and extra-hours
  records. The service packages (punch, snapshot, reconcile, weeklock)
  all operate on these types through the store interfaces in store.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - TimeEvent: immutable clock-in/out ledger entry
  - Shift: a planned unit of work, owned by a snapshot
  - ScheduleSnapshot: checksummed, versioned record of a venue's plan
  - WeekLock: per-venue-per-week mutation gate
  - Anomaly: detected planned-vs-actual deviation requiring adjudication
  - ExtraHoursRecord: weekly worked-beyond-planned claim

DESIGN PRINCIPLES:
  1. Immutability: events are never edited; only manager-approval fields
     may be set, once, during anomaly resolution
  2. Precision: uses decimal.Decimal for all hours arithmetic
  3. Type safety: strong typing for IDs prevents mixing staff/venue IDs
  4. Explicit enums: unknown values are rejected at the boundary,
     never coerced

SEE ALSO:
  - errors.go: error taxonomy
  - store.go: persistence interfaces
  - week.go: ISO-week helpers
*/
package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StaffID string
type VenueID string
type ShiftID string
type EventID string
type SnapshotID string
type AnomalyID string
type LockID string

// =============================================================================
// TIME EVENT - Append-only clock ledger entry
// =============================================================================

type EventKind string

const (
	EventIn       EventKind = "IN"
	EventOut      EventKind = "OUT"
	EventPauseIn  EventKind = "PAUSE_IN"
	EventPauseOut EventKind = "PAUSE_OUT"
)

type EventSource string

const (
	SourceWeb    EventSource = "WEB"
	SourceApp    EventSource = "APP"
	SourceManual EventSource = "MANUAL"
	SourceSystem EventSource = "SYSTEM"
)

// TimeEvent is one entry in the append-only clock ledger. Once created,
// only ManagerApproved and ManagerNotes may change, and only through
// anomaly resolution.
type TimeEvent struct {
	ID        EventID
	StaffID   StaffID
	VenueID   VenueID
	ShiftID   ShiftID // empty when the punch is not tied to a planned shift
	Timestamp time.Time
	Kind      EventKind
	Source    EventSource

	// Optional punch geolocation
	Latitude  *float64
	Longitude *float64

	// Anomaly adjudication fields (the only mutable fields)
	AnomalyFlag     bool
	AnomalyReason   string
	ManagerApproved bool
	ManagerNotes    string

	CreatedAt time.Time
}

// =============================================================================
// SHIFT - Planned unit of work, owned by a snapshot
// =============================================================================

type ShiftStatus string

const (
	ShiftDraft     ShiftStatus = "DRAFT"
	ShiftPublished ShiftStatus = "PUBLISHED"
	ShiftConfirmed ShiftStatus = "CONFIRMED"
	ShiftCancelled ShiftStatus = "CANCELLED"
)

type Shift struct {
	ID        ShiftID
	StaffID   StaffID
	PhaseID   string
	PhaseName string
	StartTime time.Time
	EndTime   time.Time
	Status    ShiftStatus
}

// Duration returns the planned length of the shift.
func (s Shift) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Hours returns the planned length as decimal hours.
func (s Shift) Hours() decimal.Decimal {
	return decimal.NewFromFloat(s.Duration().Minutes()).Div(decimal.NewFromInt(60))
}

// =============================================================================
// SCHEDULE SNAPSHOT - Checksummed, versioned plan record
// =============================================================================

type SnapshotStatus string

const (
	SnapshotDraft     SnapshotStatus = "DRAFT"
	SnapshotPublished SnapshotStatus = "PUBLISHED"
	SnapshotLocked    SnapshotStatus = "LOCKED"
	SnapshotArchived  SnapshotStatus = "ARCHIVED"
)

// ScheduleSnapshot is one version in a venue's plan chain.
//
// INVARIANTS:
//   - Version strictly increases by 1 along PreviousSnapshotID
//   - Checksum is a canonical hash over the shift set; every read that
//     claims a version recomputes and verifies it
//   - Once LOCKED or ARCHIVED, everything except Status is immutable
type ScheduleSnapshot struct {
	ID           SnapshotID
	VenueID      VenueID
	SnapshotDate time.Time
	StartDate    time.Time
	EndDate      time.Time
	Status       SnapshotStatus
	Shifts       []Shift

	Version            int
	PreviousSnapshotID SnapshotID // empty for version 1
	Checksum           string

	TotalShifts int
	TotalHours  decimal.Decimal

	CreatedBy   string
	CreatedAt   time.Time
	PublishedBy string
	PublishedAt *time.Time
}

// =============================================================================
// WEEK LOCK - Per-venue-per-week mutation gate
// =============================================================================

type WeekLockStatus string

const (
	WeekOpen   WeekLockStatus = "OPEN"
	WeekLocked WeekLockStatus = "LOCKED"
	WeekClosed WeekLockStatus = "CLOSED"
)

// WeekLock gates all mutation of a week's attendance and schedule state.
// One logical lock per venue+ISO-week, created lazily on first lock.
type WeekLock struct {
	ID        LockID
	VenueID   VenueID
	WeekStart time.Time
	WeekEnd   time.Time
	Status    WeekLockStatus
	LockedBy  string
	LockedAt  *time.Time
	Notes     string
}

// =============================================================================
// ANOMALY - Detected deviation requiring manager adjudication
// =============================================================================

type AnomalyType string

const (
	AnomalyLateArrival    AnomalyType = "LATE_ARRIVAL"
	AnomalyEarlyDeparture AnomalyType = "EARLY_DEPARTURE"
	AnomalyOvertime       AnomalyType = "OVERTIME"
	AnomalyMissingPunch   AnomalyType = "MISSING_PUNCH"
	AnomalyOther          AnomalyType = "OTHER"
)

type AnomalySeverity string

const (
	SeverityInfo     AnomalySeverity = "INFO"
	SeverityWarning  AnomalySeverity = "WARNING"
	SeverityCritical AnomalySeverity = "CRITICAL"
)

// Anomaly is created by the classifier and resolved exactly once.
// ResolutionNotes must be non-empty before IsResolved may become true.
// DiffMinutes is the unexcused exceedance: minutes beyond the grace
// window for arrivals/departures, minutes beyond the overtime threshold
// for overtime. Direction is carried by Type, so the value is never
// negative.
type Anomaly struct {
	ID          AnomalyID
	TimeEventID EventID
	StaffID     StaffID
	VenueID     VenueID
	Date        time.Time
	Type        AnomalyType
	Severity    AnomalySeverity
	Description string
	DiffMinutes int

	IsResolved      bool
	Approved        bool // whether the deviating hours count toward payroll
	ResolvedBy      string
	ResolvedAt      *time.Time
	ResolutionNotes string

	CreatedAt time.Time
}

// =============================================================================
// EXTRA HOURS - Weekly worked-beyond-planned claim
// =============================================================================

type Disposition string

const (
	DispositionPaid   Disposition = "PAID"
	DispositionBanked Disposition = "BANKED"
)

// ExtraHoursRecord aggregates a staff member's week. ExtraHours is
// actual minus planned, clamped at zero; deficits are a separate
// under-hours concern not modeled here. Disposition is set exactly
// once, atomically with approval.
type ExtraHoursRecord struct {
	ID           string
	StaffID      StaffID
	VenueID      VenueID
	WeekStart    time.Time
	WeekEnd      time.Time
	PlannedHours decimal.Decimal
	ActualHours  decimal.Decimal
	ExtraHours   decimal.Decimal

	IsApproved  bool
	Disposition Disposition // empty until approved
	ApprovedBy  string
	ApprovedAt  *time.Time
	Notes       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// ENUM PARSERS - Reject unknown values at the boundary
// =============================================================================

func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventIn, EventOut, EventPauseIn, EventPauseOut:
		return EventKind(s), nil
	}
	return "", &FieldError{Field: "kind", Value: s}
}

func ParseEventSource(s string) (EventSource, error) {
	switch EventSource(s) {
	case SourceWeb, SourceApp, SourceManual, SourceSystem:
		return EventSource(s), nil
	}
	return "", &FieldError{Field: "source", Value: s}
}

func ParseSnapshotStatus(s string) (SnapshotStatus, error) {
	switch SnapshotStatus(s) {
	case SnapshotDraft, SnapshotPublished, SnapshotLocked, SnapshotArchived:
		return SnapshotStatus(s), nil
	}
	return "", &FieldError{Field: "status", Value: s}
}

func ParseShiftStatus(s string) (ShiftStatus, error) {
	switch ShiftStatus(s) {
	case ShiftDraft, ShiftPublished, ShiftConfirmed, ShiftCancelled:
		return ShiftStatus(s), nil
	}
	return "", &FieldError{Field: "status", Value: s}
}

func ParseDisposition(s string) (Disposition, error) {
	switch Disposition(s) {
	case DispositionPaid, DispositionBanked:
		return Disposition(s), nil
	}
	return "", &FieldError{Field: "disposition", Value: s}
}

func ParseAnomalyType(s string) (AnomalyType, error) {
	switch AnomalyType(s) {
	case AnomalyLateArrival, AnomalyEarlyDeparture, AnomalyOvertime, AnomalyMissingPunch, AnomalyOther:
		return AnomalyType(s), nil
	}
	return "", &FieldError{Field: "anomaly_type", Value: s}
}
