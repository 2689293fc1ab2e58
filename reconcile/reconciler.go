/*
Package reconcile computes and approves weekly extra hours.

PURPOSE:
  Compares a staff member's actual worked hours (derived from the clock
  ledger) against their planned hours (from published head snapshots)
  for one ISO week, and materializes the surplus as an ExtraHoursRecord.
  Unapproved records block the week lock; approval assigns a PAID or
  BANKED disposition exactly once.

AGGREGATION RULES:
  - actual hours come from completed IN..OUT pairs net of breaks; an
    open IN contributes nothing
  - the unexcused exceedance of a resolved-and-rejected anomaly is
    subtracted from actual hours (configurable)
  - extra = max(0, actual - planned); deficits are not modeled here
  - an approved record is never overwritten by recomputation

APPROVAL:
  The caller passes the extra-hours figure they reviewed. If the stored
  figure has drifted beyond epsilon since then (late punches, anomaly
  resolutions), the approval is refused so nobody signs off on numbers
  they haven't seen.
*/
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brigade/shift-engine/punch"
	"github.com/brigade/shift-engine/schedule"
	"github.com/brigade/shift-engine/weeklock"
)

// Options tune the reconciliation arithmetic.
type Options struct {
	// Epsilon is the tolerated difference, in hours, between the figure
	// a manager reviewed and the stored figure at approval time.
	Epsilon decimal.Decimal
	// CountRejectedHours keeps rejected-anomaly exceedance in the actual
	// total. Off by default: rejected time does not count.
	CountRejectedHours bool
}

func DefaultOptions() Options {
	return Options{
		Epsilon:            decimal.NewFromFloat(0.01),
		CountRejectedHours: false,
	}
}

type Reconciler struct {
	store  schedule.TxStore
	opts   Options
	audit  schedule.AuditLog
	logger *zap.Logger
}

func NewReconciler(store schedule.TxStore, opts Options, audit schedule.AuditLog, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Epsilon.IsZero() {
		opts.Epsilon = DefaultOptions().Epsilon
	}
	return &Reconciler{store: store, opts: opts, audit: audit, logger: logger}
}

// =============================================================================
// COMPUTE
// =============================================================================

// Compute reconciles one staff member's week and upserts the
// ExtraHoursRecord. Approved records are returned untouched; a record
// is only created when there is a surplus, so zero-extra weeks don't
// accumulate rows that would gate the week lock for nothing.
func (r *Reconciler) Compute(ctx context.Context, staffID schedule.StaffID, venueID schedule.VenueID, week time.Time) (*schedule.ExtraHoursRecord, error) {
	if staffID == "" {
		return nil, &schedule.FieldError{Field: "staff_id"}
	}
	if venueID == "" {
		return nil, &schedule.FieldError{Field: "venue_id"}
	}
	weekStart := schedule.WeekStart(week)
	weekEnd := schedule.WeekEnd(week)
	// WeekEnd is Sunday 00:00; queries need the whole Sunday included.
	rangeEnd := weekEnd.Add(24*time.Hour - time.Nanosecond)

	var out *schedule.ExtraHoursRecord
	err := r.store.WithTx(ctx, func(st schedule.Store) error {
		existing, err := st.ExtraHoursFor(ctx, staffID, venueID, weekStart)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsApproved {
			out = existing
			return nil
		}

		actual, err := r.actualHours(ctx, st, staffID, venueID, weekStart, rangeEnd)
		if err != nil {
			return err
		}
		planned, err := r.plannedHours(ctx, st, staffID, weekStart, rangeEnd)
		if err != nil {
			return err
		}

		extra := actual.Sub(planned)
		if extra.IsNegative() {
			extra = decimal.Zero
		}
		if extra.IsZero() && existing == nil {
			return nil
		}

		now := time.Now().UTC()
		rec := schedule.ExtraHoursRecord{
			ID:           uuid.NewString(),
			StaffID:      staffID,
			VenueID:      venueID,
			WeekStart:    weekStart,
			WeekEnd:      weekEnd,
			PlannedHours: planned,
			ActualHours:  actual,
			ExtraHours:   extra,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if existing != nil {
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
			rec.Notes = existing.Notes
		}
		if err := st.UpsertExtraHours(ctx, rec); err != nil {
			return err
		}
		out = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out != nil {
		r.logger.Debug("extra hours computed",
			zap.String("staff_id", string(staffID)),
			zap.Time("week_start", weekStart),
			zap.String("extra", out.ExtraHours.String()))
	}
	return out, nil
}

func (r *Reconciler) actualHours(ctx context.Context, st schedule.Store, staffID schedule.StaffID, venueID schedule.VenueID, from, to time.Time) (decimal.Decimal, error) {
	events, err := st.EventsByStaff(ctx, staffID, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	pairs, _ := punch.PairEvents(events)

	minutes := 0
	for _, p := range pairs {
		minutes += int(p.Worked().Minutes())
	}

	if !r.opts.CountRejectedHours {
		rejected, err := r.rejectedMinutes(ctx, st, staffID, venueID, from, to)
		if err != nil {
			return decimal.Zero, err
		}
		minutes -= rejected
		if minutes < 0 {
			minutes = 0
		}
	}

	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)), nil
}

// rejectedMinutes sums the exceedance of resolved-and-rejected
// anomalies for the staff member in the window. The manager rejected
// this time explicitly, so it does not count toward payroll.
func (r *Reconciler) rejectedMinutes(ctx context.Context, st schedule.Store, staffID schedule.StaffID, venueID schedule.VenueID, from, to time.Time) (int, error) {
	anomalies, err := st.AnomaliesByVenue(ctx, venueID, from, to, false)
	if err != nil {
		return 0, err
	}
	minutes := 0
	for _, a := range anomalies {
		if a.StaffID != staffID {
			continue
		}
		if a.IsResolved && !a.Approved {
			minutes += a.DiffMinutes
		}
	}
	return minutes, nil
}

func (r *Reconciler) plannedHours(ctx context.Context, st schedule.Store, staffID schedule.StaffID, from, to time.Time) (decimal.Decimal, error) {
	shifts, err := st.PlannedShifts(ctx, staffID, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, s := range shifts {
		total = total.Add(s.Hours())
	}
	return total, nil
}

// =============================================================================
// APPROVE
// =============================================================================

// ApproveRequest is a manager's sign-off on a week's extra hours.
type ApproveRequest struct {
	StaffID     schedule.StaffID
	VenueID     schedule.VenueID
	Week        time.Time
	ApprovedBy  string
	Disposition schedule.Disposition
	// ReviewedExtra is the figure the manager saw. Approval fails if the
	// stored figure has drifted beyond epsilon since.
	ReviewedExtra decimal.Decimal
	Notes         string
}

// Approve sets the disposition exactly once. Re-approving with the same
// disposition is a no-op; changing an already-set disposition is a
// state error.
func (r *Reconciler) Approve(ctx context.Context, req ApproveRequest) (*schedule.ExtraHoursRecord, error) {
	if req.ApprovedBy == "" {
		return nil, &schedule.FieldError{Field: "approved_by"}
	}
	if _, err := schedule.ParseDisposition(string(req.Disposition)); err != nil {
		return nil, err
	}
	weekStart := schedule.WeekStart(req.Week)

	var out *schedule.ExtraHoursRecord
	err := r.store.WithTx(ctx, func(st schedule.Store) error {
		if err := weeklock.EnsureOpen(ctx, st, req.VenueID, weekStart); err != nil {
			return err
		}

		rec, err := st.ExtraHoursFor(ctx, req.StaffID, req.VenueID, weekStart)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("extra hours for staff %s week %s: %w",
				req.StaffID, weekStart.Format("2006-01-02"), schedule.ErrNotFound)
		}

		if rec.IsApproved {
			if rec.Disposition == req.Disposition {
				out = rec
				return nil
			}
			return &schedule.StateError{Entity: "extra_hours", From: "approved", Op: "approve"}
		}

		drift := rec.ExtraHours.Sub(req.ReviewedExtra).Abs()
		if drift.GreaterThan(r.opts.Epsilon) {
			return fmt.Errorf("reviewed %s but stored %s: %w",
				req.ReviewedExtra.String(), rec.ExtraHours.String(), schedule.ErrConflict)
		}

		now := time.Now().UTC()
		rec.IsApproved = true
		rec.Disposition = req.Disposition
		rec.ApprovedBy = req.ApprovedBy
		rec.ApprovedAt = &now
		if req.Notes != "" {
			rec.Notes = req.Notes
		}
		rec.UpdatedAt = now
		if err := st.UpsertExtraHours(ctx, *rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("extra hours approved",
		zap.String("staff_id", string(req.StaffID)),
		zap.Time("week_start", weekStart),
		zap.String("disposition", string(req.Disposition)),
		zap.String("approved_by", req.ApprovedBy))
	if r.audit != nil {
		entry := schedule.AuditEntry{
			ID:      uuid.NewString(),
			At:      time.Now().UTC(),
			ActorID: req.ApprovedBy,
			Action:  schedule.AuditExtraHoursApproved,
			VenueID: req.VenueID,
			StaffID: req.StaffID,
			Subject: out.ID,
			Payload: map[string]any{"disposition": string(req.Disposition), "extra_hours": out.ExtraHours.String()},
		}
		if err := r.audit.AppendAudit(ctx, entry); err != nil {
			r.logger.Warn("audit append failed", zap.Error(err))
		}
	}
	return out, nil
}

// =============================================================================
// READS
// =============================================================================

// WeekSummary returns a venue's extra-hours records for one week.
func (r *Reconciler) WeekSummary(ctx context.Context, venueID schedule.VenueID, week time.Time, unapprovedOnly bool) ([]schedule.ExtraHoursRecord, error) {
	return r.store.ExtraHoursByVenueWeek(ctx, venueID, schedule.WeekStart(week), unapprovedOnly)
}

// For returns one staff member's record, nil when none exists.
func (r *Reconciler) For(ctx context.Context, staffID schedule.StaffID, venueID schedule.VenueID, week time.Time) (*schedule.ExtraHoursRecord, error) {
	return r.store.ExtraHoursFor(ctx, staffID, venueID, schedule.WeekStart(week))
}
