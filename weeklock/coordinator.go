/*
Package weeklock coordinates the per-venue-per-week mutation gate.

PURPOSE:
  A WeekLock is the single authority on whether a venue+week is still
  editable. Once a week is LOCKED, no anomaly may be created or resolved,
  no extra-hours record may be approved, and no shift belonging to a
  snapshot overlapping the week may be mutated. CLOSED is terminal.

STATE MACHINE:
  OPEN -> LOCKED -> CLOSED
  Unlock is permitted only from LOCKED, never from CLOSED.

ATOMICITY:
  LockWeek verifies inside one store transaction that no unresolved
  anomaly and no unapproved extra-hours record remain before flipping
  the row to LOCKED. Every other mutation path calls EnsureOpen inside
  ITS OWN transaction, so a lock can never land between a check and the
  mutation it gates.

SEE ALSO:
  - schedule/store.go: WeekLockStore, TxStore
  - punch, reconcile, snapshot: the gated callers
*/
package weeklock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brigade/shift-engine/schedule"
)

// Coordinator owns the week-lock lifecycle.
type Coordinator struct {
	store  schedule.TxStore
	audit  schedule.AuditLog
	logger *zap.Logger
}

func NewCoordinator(store schedule.TxStore, audit schedule.AuditLog, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{store: store, audit: audit, logger: logger}
}

// Status returns the lock for the week containing t. A week that has
// never been locked is reported as an OPEN lock with no ID.
func (c *Coordinator) Status(ctx context.Context, venueID schedule.VenueID, t time.Time) (*schedule.WeekLock, error) {
	weekStart := schedule.WeekStart(t)
	lock, err := c.store.WeekLockFor(ctx, venueID, weekStart)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return &schedule.WeekLock{
			VenueID:   venueID,
			WeekStart: weekStart,
			WeekEnd:   schedule.WeekEnd(t),
			Status:    schedule.WeekOpen,
		}, nil
	}
	return lock, nil
}

// LockWeek transitions a week to LOCKED. Fails with ErrAlreadyLocked
// when the week is LOCKED or CLOSED, and with PendingItemsError when
// unresolved anomalies or unapproved extra hours remain. The pending
// check and the status flip happen in one transaction.
func (c *Coordinator) LockWeek(ctx context.Context, venueID schedule.VenueID, t time.Time, lockedBy, notes string) (*schedule.WeekLock, error) {
	if venueID == "" {
		return nil, &schedule.FieldError{Field: "venue_id"}
	}
	if lockedBy == "" {
		return nil, &schedule.FieldError{Field: "locked_by"}
	}

	weekStart := schedule.WeekStart(t)
	weekEnd := schedule.WeekEnd(t)

	var result *schedule.WeekLock
	err := c.store.WithTx(ctx, func(s schedule.Store) error {
		existing, err := s.WeekLockFor(ctx, venueID, weekStart)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status != schedule.WeekOpen {
			return fmt.Errorf("week of %s: %w", weekStart.Format("2006-01-02"), schedule.ErrAlreadyLocked)
		}

		pending, err := pendingItems(ctx, s, venueID, weekStart, weekEnd)
		if err != nil {
			return err
		}
		if pending != nil {
			return pending
		}

		now := time.Now().UTC()
		lock := schedule.WeekLock{
			ID:        existingID(existing),
			VenueID:   venueID,
			WeekStart: weekStart,
			WeekEnd:   weekEnd,
			Status:    schedule.WeekLocked,
			LockedBy:  lockedBy,
			LockedAt:  &now,
			Notes:     notes,
		}
		if lock.ID == "" {
			lock.ID = schedule.LockID(uuid.NewString())
		}
		if err := s.SaveWeekLock(ctx, lock); err != nil {
			return err
		}
		result = &lock
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("week locked",
		zap.String("venue_id", string(venueID)),
		zap.String("week_start", weekStart.Format("2006-01-02")),
		zap.String("locked_by", lockedBy))
	c.recordAudit(ctx, schedule.AuditWeekLocked, venueID, lockedBy, result.ID, notes)
	return result, nil
}

// UnlockWeek transitions LOCKED back to OPEN. Only a privileged actor
// should reach this; authorization is the caller's concern. Fails with
// StateError when the week is CLOSED or was never locked.
func (c *Coordinator) UnlockWeek(ctx context.Context, venueID schedule.VenueID, t time.Time, actor string) (*schedule.WeekLock, error) {
	weekStart := schedule.WeekStart(t)

	var result *schedule.WeekLock
	err := c.store.WithTx(ctx, func(s schedule.Store) error {
		lock, err := s.WeekLockFor(ctx, venueID, weekStart)
		if err != nil {
			return err
		}
		if lock == nil || lock.Status == schedule.WeekOpen {
			return &schedule.StateError{Entity: "week_lock", From: string(schedule.WeekOpen), Op: "unlock"}
		}
		if lock.Status == schedule.WeekClosed {
			return &schedule.StateError{Entity: "week_lock", From: string(schedule.WeekClosed), Op: "unlock"}
		}

		lock.Status = schedule.WeekOpen
		lock.LockedBy = ""
		lock.LockedAt = nil
		if err := s.SaveWeekLock(ctx, *lock); err != nil {
			return err
		}
		result = lock
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("week unlocked",
		zap.String("venue_id", string(venueID)),
		zap.String("week_start", weekStart.Format("2006-01-02")),
		zap.String("actor", actor))
	c.recordAudit(ctx, schedule.AuditWeekUnlocked, venueID, actor, result.ID, "")
	return result, nil
}

// CloseWeek transitions LOCKED to CLOSED after archival. Terminal.
func (c *Coordinator) CloseWeek(ctx context.Context, venueID schedule.VenueID, t time.Time, actor string) (*schedule.WeekLock, error) {
	weekStart := schedule.WeekStart(t)

	var result *schedule.WeekLock
	err := c.store.WithTx(ctx, func(s schedule.Store) error {
		lock, err := s.WeekLockFor(ctx, venueID, weekStart)
		if err != nil {
			return err
		}
		if lock == nil || lock.Status != schedule.WeekLocked {
			from := string(schedule.WeekOpen)
			if lock != nil {
				from = string(lock.Status)
			}
			return &schedule.StateError{Entity: "week_lock", From: from, Op: "close"}
		}

		lock.Status = schedule.WeekClosed
		if err := s.SaveWeekLock(ctx, *lock); err != nil {
			return err
		}
		result = lock
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.recordAudit(ctx, schedule.AuditWeekClosed, venueID, actor, result.ID, "")
	return result, nil
}

func (c *Coordinator) recordAudit(ctx context.Context, action schedule.AuditAction, venueID schedule.VenueID, actor string, subject schedule.LockID, notes string) {
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
	if notes != "" {
		entry.Payload = map[string]any{"notes": notes}
	}
	if err := c.audit.AppendAudit(ctx, entry); err != nil {
		c.logger.Warn("audit append failed", zap.Error(err))
	}
}

// =============================================================================
// READ-THROUGH CHECK - Called by every gated mutation inside its own tx
// =============================================================================

// EnsureOpen returns ErrWeekLocked or ErrWeekClosed when the week
// containing t is no longer editable for the venue. It must be called
// with the same Store the surrounding transaction uses.
func EnsureOpen(ctx context.Context, s schedule.WeekLockStore, venueID schedule.VenueID, t time.Time) error {
	lock, err := s.WeekLockFor(ctx, venueID, schedule.WeekStart(t))
	if err != nil {
		return err
	}
	if lock == nil {
		return nil
	}
	switch lock.Status {
	case schedule.WeekLocked:
		return fmt.Errorf("week of %s: %w", lock.WeekStart.Format("2006-01-02"), schedule.ErrWeekLocked)
	case schedule.WeekClosed:
		return fmt.Errorf("week of %s: %w", lock.WeekStart.Format("2006-01-02"), schedule.ErrWeekClosed)
	}
	return nil
}

// EnsureOpenRange checks every ISO week overlapping [from, to].
func EnsureOpenRange(ctx context.Context, s schedule.WeekLockStore, venueID schedule.VenueID, from, to time.Time) error {
	for _, week := range schedule.WeeksIn(from, to) {
		if err := EnsureOpen(ctx, s, venueID, week); err != nil {
			return err
		}
	}
	return nil
}

func pendingItems(ctx context.Context, s schedule.Store, venueID schedule.VenueID, weekStart, weekEnd time.Time) (*schedule.PendingItemsError, error) {
	anomalies, err := s.AnomaliesByVenue(ctx, venueID, weekStart, weekEnd.Add(24*time.Hour-time.Nanosecond), true)
	if err != nil {
		return nil, err
	}
	extras, err := s.ExtraHoursByVenueWeek(ctx, venueID, weekStart, true)
	if err != nil {
		return nil, err
	}
	if len(anomalies) == 0 && len(extras) == 0 {
		return nil, nil
	}

	pending := &schedule.PendingItemsError{VenueID: venueID, WeekStart: weekStart}
	for _, a := range anomalies {
		pending.UnresolvedAnomalies = append(pending.UnresolvedAnomalies, a.ID)
	}
	for _, e := range extras {
		pending.UnapprovedExtraHours = append(pending.UnapprovedExtraHours, e.ID)
	}
	return pending, nil
}

func existingID(lock *schedule.WeekLock) schedule.LockID {
	if lock == nil {
		return ""
	}
	return lock.ID
}
