/*
Package snapshot implements the schedule snapshot version chain.

PURPOSE:
  Freezes a venue's shift plan for a date range into tamper-evident,
  checksummed, versioned records. Each chain is a strict singly-linked
  list keyed by (venue, date range); version strictly increases by 1
  along PreviousSnapshotID.

LIFECYCLE:
  DRAFT -> PUBLISHED -> LOCKED -> ARCHIVED
  Shifts are mutable only while DRAFT. Once PUBLISHED a snapshot is
  never physically deleted; edits happen by appending a new version.

CONCURRENCY:
  NewVersion uses optimistic concurrency keyed on the previous snapshot:
  concurrent writers racing to extend the same chain get exactly one
  winner, the rest fail with StaleVersionError and must re-read.
  The head handoff is enforced by the store inside one transaction.

INTEGRITY:
  Every read that claims a version recomputes the checksum and fails
  loudly with IntegrityError on mismatch. History walks carry a
  visited-set and depth bound because PreviousSnapshotID is
  client-suppliable data; acyclicity is never assumed.
*/
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brigade/shift-engine/schedule"
	"github.com/brigade/shift-engine/weeklock"
)

// maxChainDepth bounds history walks. No venue keeps thousands of
// revisions of one week; hitting the bound means corruption.
const maxChainDepth = 1000

// Chain manages snapshot version chains.
type Chain struct {
	store  schedule.TxStore
	audit  schedule.AuditLog
	logger *zap.Logger
}

func NewChain(store schedule.TxStore, audit schedule.AuditLog, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{store: store, audit: audit, logger: logger}
}

// =============================================================================
// CREATION
// =============================================================================

// Create starts a new chain at version 1, DRAFT. Fails with ErrConflict
// when any existing chain for the venue overlaps the date range.
func (c *Chain) Create(ctx context.Context, venueID schedule.VenueID, start, end time.Time, shifts []schedule.Shift, createdBy string) (*schedule.ScheduleSnapshot, error) {
	if venueID == "" {
		return nil, &schedule.FieldError{Field: "venue_id"}
	}
	if createdBy == "" {
		return nil, &schedule.FieldError{Field: "created_by"}
	}
	start, end = schedule.DayOf(start), schedule.DayOf(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date before start date", schedule.ErrValidation)
	}
	if err := validateShifts(shifts, start, end); err != nil {
		return nil, err
	}

	snap := c.build(venueID, start, end, shifts, createdBy, 1, "")

	err := c.store.WithTx(ctx, func(s schedule.Store) error {
		overlap, err := s.OverlappingChainExists(ctx, venueID, start, end)
		if err != nil {
			return err
		}
		if overlap {
			return fmt.Errorf("venue %s already has a snapshot chain overlapping %s..%s: %w",
				venueID, start.Format("2006-01-02"), end.Format("2006-01-02"), schedule.ErrConflict)
		}
		return s.InsertSnapshot(ctx, snap, "")
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("snapshot chain created",
		zap.String("snapshot_id", string(snap.ID)),
		zap.String("venue_id", string(venueID)),
		zap.Int("shifts", snap.TotalShifts))
	c.recordAudit(ctx, schedule.AuditSnapshotCreated, venueID, createdBy, snap.ID)
	return &snap, nil
}

// NewVersion extends a chain with version prev+1. previousID must be
// the current chain head or the call fails with StaleVersionError.
// Refused while any week overlapping the range is locked.
func (c *Chain) NewVersion(ctx context.Context, previousID schedule.SnapshotID, shifts []schedule.Shift, createdBy string) (*schedule.ScheduleSnapshot, error) {
	if previousID == "" {
		return nil, &schedule.FieldError{Field: "previous_snapshot_id"}
	}
	if createdBy == "" {
		return nil, &schedule.FieldError{Field: "created_by"}
	}

	var snap schedule.ScheduleSnapshot
	err := c.store.WithTx(ctx, func(s schedule.Store) error {
		prev, err := s.SnapshotByID(ctx, previousID)
		if err != nil {
			return fmt.Errorf("previous snapshot %s: %w", previousID, err)
		}

		head, err := s.HeadSnapshot(ctx, prev.VenueID, prev.StartDate, prev.EndDate)
		if err != nil {
			return err
		}
		if head == nil || head.ID != previousID {
			se := &schedule.StaleVersionError{PreviousID: previousID}
			if head != nil {
				se.HeadID = head.ID
				se.HeadVersion = head.Version
			}
			return se
		}

		if err := weeklock.EnsureOpenRange(ctx, s, prev.VenueID, prev.StartDate, prev.EndDate); err != nil {
			return err
		}
		if err := validateShifts(shifts, prev.StartDate, prev.EndDate); err != nil {
			return err
		}

		snap = c.build(prev.VenueID, prev.StartDate, prev.EndDate, shifts, createdBy, prev.Version+1, previousID)
		return s.InsertSnapshot(ctx, snap, previousID)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("snapshot version created",
		zap.String("snapshot_id", string(snap.ID)),
		zap.Int("version", snap.Version))
	c.recordAudit(ctx, schedule.AuditSnapshotCreated, snap.VenueID, createdBy, snap.ID)
	return &snap, nil
}

// UpdateDraft replaces the shift set of a DRAFT snapshot, recomputing
// checksum and totals. Any other status is immutable: StateError.
func (c *Chain) UpdateDraft(ctx context.Context, id schedule.SnapshotID, shifts []schedule.Shift) (*schedule.ScheduleSnapshot, error) {
	var updated schedule.ScheduleSnapshot
	err := c.store.WithTx(ctx, func(s schedule.Store) error {
		snap, err := s.SnapshotByID(ctx, id)
		if err != nil {
			return err
		}
		if snap.Status != schedule.SnapshotDraft {
			return &schedule.StateError{Entity: "snapshot", From: string(snap.Status), Op: "update shifts of"}
		}
		if err := weeklock.EnsureOpenRange(ctx, s, snap.VenueID, snap.StartDate, snap.EndDate); err != nil {
			return err
		}
		if err := validateShifts(shifts, snap.StartDate, snap.EndDate); err != nil {
			return err
		}

		snap.Shifts = shifts
		snap.Checksum = Checksum(shifts)
		snap.TotalShifts, snap.TotalHours = Totals(shifts)
		if err := s.UpdateSnapshot(ctx, *snap); err != nil {
			return err
		}
		updated = *snap
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// =============================================================================
// LIFECYCLE TRANSITIONS
// =============================================================================

// Publish transitions DRAFT -> PUBLISHED.
func (c *Chain) Publish(ctx context.Context, id schedule.SnapshotID, publishedBy string) (*schedule.ScheduleSnapshot, error) {
	if publishedBy == "" {
		return nil, &schedule.FieldError{Field: "published_by"}
	}

	var published schedule.ScheduleSnapshot
	err := c.store.WithTx(ctx, func(s schedule.Store) error {
		snap, err := s.SnapshotByID(ctx, id)
		if err != nil {
			return err
		}
		if snap.Status != schedule.SnapshotDraft {
			return &schedule.StateError{Entity: "snapshot", From: string(snap.Status), Op: "publish"}
		}
		if err := Verify(snap); err != nil {
			return err
		}

		now := time.Now().UTC()
		snap.Status = schedule.SnapshotPublished
		snap.PublishedBy = publishedBy
		snap.PublishedAt = &now
		for i := range snap.Shifts {
			if snap.Shifts[i].Status == schedule.ShiftDraft {
				snap.Shifts[i].Status = schedule.ShiftPublished
			}
		}
		snap.Checksum = Checksum(snap.Shifts)
		if err := s.UpdateSnapshot(ctx, *snap); err != nil {
			return err
		}
		published = *snap
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("snapshot published",
		zap.String("snapshot_id", string(id)),
		zap.String("published_by", publishedBy))
	c.recordAudit(ctx, schedule.AuditSnapshotPublished, published.VenueID, publishedBy, id)
	return &published, nil
}

// Lock transitions PUBLISHED -> LOCKED. Idempotent no-op when already
// LOCKED; fails from DRAFT or ARCHIVED.
func (c *Chain) Lock(ctx context.Context, id schedule.SnapshotID, actor string) (*schedule.ScheduleSnapshot, error) {
	var locked schedule.ScheduleSnapshot
	alreadyLocked := false
	err := c.store.WithTx(ctx, func(s schedule.Store) error {
		snap, err := s.SnapshotByID(ctx, id)
		if err != nil {
			return err
		}
		switch snap.Status {
		case schedule.SnapshotLocked:
			locked = *snap
			alreadyLocked = true
			return nil
		case schedule.SnapshotPublished:
			// fallthrough to lock
		default:
			return &schedule.StateError{Entity: "snapshot", From: string(snap.Status), Op: "lock"}
		}
		if err := Verify(snap); err != nil {
			return err
		}

		snap.Status = schedule.SnapshotLocked
		if err := s.UpdateSnapshot(ctx, *snap); err != nil {
			return err
		}
		locked = *snap
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !alreadyLocked {
		c.recordAudit(ctx, schedule.AuditSnapshotLocked, locked.VenueID, actor, id)
	}
	return &locked, nil
}

// Archive transitions LOCKED -> ARCHIVED only.
func (c *Chain) Archive(ctx context.Context, id schedule.SnapshotID, actor string) (*schedule.ScheduleSnapshot, error) {
	var archived schedule.ScheduleSnapshot
	err := c.store.WithTx(ctx, func(s schedule.Store) error {
		snap, err := s.SnapshotByID(ctx, id)
		if err != nil {
			return err
		}
		if snap.Status != schedule.SnapshotLocked {
			return &schedule.StateError{Entity: "snapshot", From: string(snap.Status), Op: "archive"}
		}

		snap.Status = schedule.SnapshotArchived
		if err := s.UpdateSnapshot(ctx, *snap); err != nil {
			return err
		}
		archived = *snap
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.recordAudit(ctx, schedule.AuditSnapshotArchived, archived.VenueID, actor, id)
	return &archived, nil
}

// Delete removes a DRAFT snapshot and restores its predecessor as the
// chain head. PUBLISHED and later are never physically deleted.
func (c *Chain) Delete(ctx context.Context, id schedule.SnapshotID) error {
	return c.store.WithTx(ctx, func(s schedule.Store) error {
		snap, err := s.SnapshotByID(ctx, id)
		if err != nil {
			return err
		}
		if snap.Status != schedule.SnapshotDraft {
			return &schedule.StateError{Entity: "snapshot", From: string(snap.Status), Op: "delete"}
		}
		if err := weeklock.EnsureOpenRange(ctx, s, snap.VenueID, snap.StartDate, snap.EndDate); err != nil {
			return err
		}
		return s.DeleteDraftSnapshot(ctx, id)
	})
}

// =============================================================================
// READS
// =============================================================================

// Get returns a snapshot after verifying its checksum.
func (c *Chain) Get(ctx context.Context, id schedule.SnapshotID) (*schedule.ScheduleSnapshot, error) {
	snap, err := c.store.SnapshotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Verify(snap); err != nil {
		c.logger.Error("snapshot checksum mismatch",
			zap.String("snapshot_id", string(id)),
			zap.Error(err))
		return nil, err
	}
	return snap, nil
}

// Head returns the verified current head for a venue+range, nil when no
// chain exists.
func (c *Chain) Head(ctx context.Context, venueID schedule.VenueID, start, end time.Time) (*schedule.ScheduleSnapshot, error) {
	snap, err := c.store.HeadSnapshot(ctx, venueID, schedule.DayOf(start), schedule.DayOf(end))
	if err != nil || snap == nil {
		return snap, err
	}
	if err := Verify(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// History walks PreviousSnapshotID backwards from id and returns the
// chain in descending version order. PreviousSnapshotID is untrusted
// data: the walk carries a visited set and depth bound, and a cycle is
// an IntegrityError, not an infinite loop.
func (c *Chain) History(ctx context.Context, id schedule.SnapshotID) ([]schedule.ScheduleSnapshot, error) {
	var history []schedule.ScheduleSnapshot
	visited := make(map[schedule.SnapshotID]bool)

	current := id
	for current != "" {
		if visited[current] || len(history) >= maxChainDepth {
			return nil, &schedule.IntegrityError{SnapshotID: current, Cycle: true}
		}
		visited[current] = true

		snap, err := c.store.SnapshotByID(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("walking history at %s: %w", current, err)
		}
		if err := Verify(snap); err != nil {
			return nil, err
		}

		history = append(history, *snap)
		current = snap.PreviousSnapshotID
	}
	return history, nil
}

// StaffShifts returns a staff member's deduplicated planned shifts in
// [from, to], taken from published-or-later head snapshots.
func (c *Chain) StaffShifts(ctx context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.Shift, error) {
	shifts, err := c.store.PlannedShifts(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	return schedule.DedupeStaffShifts(shifts), nil
}

// =============================================================================
// INTERNAL
// =============================================================================

func (c *Chain) build(venueID schedule.VenueID, start, end time.Time, shifts []schedule.Shift, createdBy string, version int, previousID schedule.SnapshotID) schedule.ScheduleSnapshot {
	now := time.Now().UTC()
	total, hours := Totals(shifts)
	return schedule.ScheduleSnapshot{
		ID:                 schedule.SnapshotID(uuid.NewString()),
		VenueID:            venueID,
		SnapshotDate:       now,
		StartDate:          start,
		EndDate:            end,
		Status:             schedule.SnapshotDraft,
		Shifts:             shifts,
		Version:            version,
		PreviousSnapshotID: previousID,
		Checksum:           Checksum(shifts),
		TotalShifts:        total,
		TotalHours:         hours,
		CreatedBy:          createdBy,
		CreatedAt:          now,
	}
}

func validateShifts(shifts []schedule.Shift, start, end time.Time) error {
	rangeEnd := end.AddDate(0, 0, 1) // shifts may run to midnight of the last day
	for i := range shifts {
		s := &shifts[i]
		if s.StaffID == "" {
			return &schedule.FieldError{Field: "shifts.staff_id"}
		}
		if !s.EndTime.After(s.StartTime) {
			return fmt.Errorf("%w: shift for %s ends before it starts", schedule.ErrValidation, s.StaffID)
		}
		if s.StartTime.Before(start) || s.StartTime.After(rangeEnd) {
			return fmt.Errorf("%w: shift for %s falls outside the snapshot range", schedule.ErrValidation, s.StaffID)
		}
		if s.ID == "" {
			s.ID = schedule.ShiftID(uuid.NewString())
		}
		if s.Status == "" {
			s.Status = schedule.ShiftDraft
		}
	}
	return nil
}

func (c *Chain) recordAudit(ctx context.Context, action schedule.AuditAction, venueID schedule.VenueID, actor string, subject schedule.SnapshotID) {
	if c.audit == nil {
		return
	}
	entry := schedule.AuditEntry{
		ID:      uuid.NewString(),
		At:      time.Now().UTC(),
		ActorID: actor,
		Action:  action,
		VenueID: venueID,
		Subject: string(subject),
	}
	if err := c.audit.AppendAudit(ctx, entry); err != nil {
		c.logger.Warn("audit append failed", zap.Error(err))
	}
}
