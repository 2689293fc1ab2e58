package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brigade/shift-engine/reconcile"
	"github.com/brigade/shift-engine/schedule"
	store "github.com/brigade/shift-engine/schedule/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	testVenue = schedule.VenueID("venue-1")
	testStaff = schedule.StaffID("staff-1")
)

// monday is a fixed Monday, so WeekStart(monday) == monday.
var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func newTestReconciler(t *testing.T) (*reconcile.Reconciler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	rec := reconcile.NewReconciler(mem, reconcile.DefaultOptions(), mem, nil)
	return rec, mem
}

// seedShift publishes a one-shift head snapshot so planned hours
// resolve for the staff member.
func seedShift(t *testing.T, mem *store.Memory, shiftID schedule.ShiftID, staffID schedule.StaffID, start, end time.Time) {
	t.Helper()
	snap := schedule.ScheduleSnapshot{
		ID:        schedule.SnapshotID("snap-" + string(shiftID)),
		VenueID:   testVenue,
		StartDate: schedule.DayOf(start),
		EndDate:   schedule.DayOf(end),
		Status:    schedule.SnapshotPublished,
		Version:   1,
		Shifts: []schedule.Shift{{
			ID:        shiftID,
			StaffID:   staffID,
			StartTime: start,
			EndTime:   end,
			Status:    schedule.ShiftPublished,
		}},
	}
	require.NoError(t, mem.InsertSnapshot(context.Background(), snap, ""))
}

// appendEvent writes one raw ledger event, bypassing the punch service.
func appendEvent(t *testing.T, mem *store.Memory, staffID schedule.StaffID, kind schedule.EventKind, at time.Time) {
	t.Helper()
	require.NoError(t, mem.AppendEvent(context.Background(), schedule.TimeEvent{
		ID:        schedule.EventID(string(staffID) + "-" + string(kind) + "-" + at.Format(time.RFC3339)),
		StaffID:   staffID,
		VenueID:   testVenue,
		Timestamp: at,
		Kind:      kind,
		Source:    schedule.SourceApp,
	}))
}

func appendPair(t *testing.T, mem *store.Memory, staffID schedule.StaffID, in, out time.Time) {
	t.Helper()
	appendEvent(t, mem, staffID, schedule.EventIn, in)
	appendEvent(t, mem, staffID, schedule.EventOut, out)
}

// =============================================================================
// COMPUTE
// =============================================================================

func TestCompute_SurplusCreatesRecord(t *testing.T) {
	// GIVEN: An 8h planned Monday worked 09:00-18:00 with no breaks
	// WHEN: The week is reconciled
	// THEN: A record with one extra hour is upserted

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(18*time.Hour))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "8", out.PlannedHours.String())
	assert.Equal(t, "9", out.ActualHours.String())
	assert.Equal(t, "1", out.ExtraHours.String())
	assert.False(t, out.IsApproved)
	assert.Equal(t, monday, out.WeekStart)
}

func TestCompute_SundayWorkCountsInWeek(t *testing.T) {
	// GIVEN: The week's only shift and punches land on the Sunday
	// WHEN: The week is reconciled
	// THEN: The Sunday surplus shows up; the week runs through
	//       end of Sunday, not Sunday midnight

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	sunday := monday.AddDate(0, 0, 6)
	seedShift(t, mem, "shift-sun", testStaff, sunday.Add(9*time.Hour), sunday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, sunday.Add(9*time.Hour), sunday.Add(18*time.Hour))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "8", out.PlannedHours.String())
	assert.Equal(t, "9", out.ActualHours.String())
	assert.Equal(t, "1", out.ExtraHours.String())
}

func TestCompute_NoSurplus_NoRecord(t *testing.T) {
	// GIVEN: Worked hours exactly match planned hours
	// THEN: No record is created; nothing gates the week lock

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	assert.Nil(t, out)

	stored, err := rec.For(ctx, testStaff, testVenue, monday)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestCompute_DeficitClampedToZero(t *testing.T) {
	// GIVEN: 8h planned, only 6h worked
	// THEN: No extra-hours row; deficits are not modeled here

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(15*time.Hour))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestCompute_BreaksNetted(t *testing.T) {
	// GIVEN: 09:00-18:30 gross with a one-hour break
	// THEN: Actual is 8.5h net, extra is 0.5h

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendEvent(t, mem, testStaff, schedule.EventIn, monday.Add(9*time.Hour))
	appendEvent(t, mem, testStaff, schedule.EventPauseIn, monday.Add(12*time.Hour))
	appendEvent(t, mem, testStaff, schedule.EventPauseOut, monday.Add(13*time.Hour))
	appendEvent(t, mem, testStaff, schedule.EventOut, monday.Add(18*time.Hour+30*time.Minute))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "8.5", out.ActualHours.String())
	assert.Equal(t, "0.5", out.ExtraHours.String())
}

func TestCompute_OpenInContributesNothing(t *testing.T) {
	// GIVEN: A clock-in with no matching clock-out
	// THEN: Actual hours stay zero and no record appears

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendEvent(t, mem, testStaff, schedule.EventIn, monday.Add(9*time.Hour))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestCompute_RejectedAnomalyMinutesSubtracted(t *testing.T) {
	// GIVEN: One extra hour worked, but 30 minutes of it carried by an
	//        anomaly the manager resolved as rejected
	// THEN: Only the remaining half hour is claimable

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(18*time.Hour))
	require.NoError(t, mem.SaveAnomaly(ctx, schedule.Anomaly{
		ID:          "anom-1",
		StaffID:     testStaff,
		VenueID:     testVenue,
		Date:        monday.Add(18 * time.Hour),
		Type:        schedule.AnomalyOvertime,
		Severity:    schedule.SeverityWarning,
		DiffMinutes: 30,
		IsResolved:  true,
		Approved:    false,
	}))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "8.5", out.ActualHours.String())
	assert.Equal(t, "0.5", out.ExtraHours.String())
}

func TestCompute_CountRejectedHours_KeepsRejectedTime(t *testing.T) {
	// GIVEN: The same rejected anomaly, but CountRejectedHours enabled
	// THEN: The full hour counts

	mem := store.NewMemory()
	opts := reconcile.DefaultOptions()
	opts.CountRejectedHours = true
	rec := reconcile.NewReconciler(mem, opts, mem, nil)
	ctx := context.Background()

	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(18*time.Hour))
	require.NoError(t, mem.SaveAnomaly(ctx, schedule.Anomaly{
		ID:          "anom-1",
		StaffID:     testStaff,
		VenueID:     testVenue,
		Date:        monday.Add(18 * time.Hour),
		Type:        schedule.AnomalyOvertime,
		DiffMinutes: 30,
		IsResolved:  true,
		Approved:    false,
	}))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "1", out.ExtraHours.String())
}

func TestCompute_UnresolvedAnomalyNotSubtracted(t *testing.T) {
	// GIVEN: An anomaly still awaiting resolution
	// THEN: Its minutes are not subtracted; only an explicit rejection
	//       removes time from the claim

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(18*time.Hour))
	require.NoError(t, mem.SaveAnomaly(ctx, schedule.Anomaly{
		ID:          "anom-1",
		StaffID:     testStaff,
		VenueID:     testVenue,
		Date:        monday.Add(18 * time.Hour),
		Type:        schedule.AnomalyOvertime,
		DiffMinutes: 30,
	}))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "1", out.ExtraHours.String())
}

func TestCompute_ApprovedRecordUntouched(t *testing.T) {
	// GIVEN: An approved record, then more punches land in the same week
	// WHEN: The week is recomputed
	// THEN: The approved figures are returned unchanged

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(18*time.Hour))

	first, err := rec.Compute(ctx, testStaff, testVenue, monday)
	require.NoError(t, err)
	_, err = rec.Approve(ctx, reconcile.ApproveRequest{
		StaffID:       testStaff,
		VenueID:       testVenue,
		Week:          monday,
		ApprovedBy:    "manager-1",
		Disposition:   schedule.DispositionPaid,
		ReviewedExtra: first.ExtraHours,
	})
	require.NoError(t, err)

	tuesday := monday.AddDate(0, 0, 1)
	appendPair(t, mem, testStaff, tuesday.Add(9*time.Hour), tuesday.Add(13*time.Hour))

	out, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.IsApproved)
	assert.Equal(t, "1", out.ExtraHours.String(), "recompute must not overwrite an approval")
}

func TestCompute_RecomputeKeepsRecordIdentity(t *testing.T) {
	// GIVEN: An unapproved record, then another punch in the same week
	// THEN: Recompute updates figures in place instead of growing a
	//       second row

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(18*time.Hour))

	first, err := rec.Compute(ctx, testStaff, testVenue, monday)
	require.NoError(t, err)

	tuesday := monday.AddDate(0, 0, 1)
	appendPair(t, mem, testStaff, tuesday.Add(9*time.Hour), tuesday.Add(10*time.Hour))

	second, err := rec.Compute(ctx, testStaff, testVenue, monday)

	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "2", second.ExtraHours.String())
}

func TestCompute_MissingStaffID_ValidationError(t *testing.T) {
	rec, _ := newTestReconciler(t)

	_, err := rec.Compute(context.Background(), "", testVenue, monday)

	var fieldErr *schedule.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "staff_id", fieldErr.Field)
}

// =============================================================================
// APPROVE
// =============================================================================

func computeExtra(t *testing.T, rec *reconcile.Reconciler, mem *store.Memory) *schedule.ExtraHoursRecord {
	t.Helper()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(18*time.Hour))
	out, err := rec.Compute(context.Background(), testStaff, testVenue, monday)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestApprove_SetsDispositionOnce(t *testing.T) {
	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	stored := computeExtra(t, rec, mem)

	out, err := rec.Approve(ctx, reconcile.ApproveRequest{
		StaffID:       testStaff,
		VenueID:       testVenue,
		Week:          monday,
		ApprovedBy:    "manager-1",
		Disposition:   schedule.DispositionPaid,
		ReviewedExtra: stored.ExtraHours,
		Notes:         "covered the rush",
	})

	require.NoError(t, err)
	assert.True(t, out.IsApproved)
	assert.Equal(t, schedule.DispositionPaid, out.Disposition)
	assert.Equal(t, "manager-1", out.ApprovedBy)
	require.NotNil(t, out.ApprovedAt)
	assert.Equal(t, "covered the rush", out.Notes)
}

func TestApprove_SameDisposition_Idempotent(t *testing.T) {
	// GIVEN: A record already approved as PAID
	// WHEN: The same approval is replayed
	// THEN: No error, the record is returned as-is

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	stored := computeExtra(t, rec, mem)

	req := reconcile.ApproveRequest{
		StaffID:       testStaff,
		VenueID:       testVenue,
		Week:          monday,
		ApprovedBy:    "manager-1",
		Disposition:   schedule.DispositionPaid,
		ReviewedExtra: stored.ExtraHours,
	}
	_, err := rec.Approve(ctx, req)
	require.NoError(t, err)

	out, err := rec.Approve(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, schedule.DispositionPaid, out.Disposition)
}

func TestApprove_ChangedDisposition_StateError(t *testing.T) {
	// GIVEN: A record approved as PAID
	// WHEN: A second approval tries to flip it to BANKED
	// THEN: State error; dispositions are set exactly once

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	stored := computeExtra(t, rec, mem)

	_, err := rec.Approve(ctx, reconcile.ApproveRequest{
		StaffID: testStaff, VenueID: testVenue, Week: monday,
		ApprovedBy: "manager-1", Disposition: schedule.DispositionPaid,
		ReviewedExtra: stored.ExtraHours,
	})
	require.NoError(t, err)

	_, err = rec.Approve(ctx, reconcile.ApproveRequest{
		StaffID: testStaff, VenueID: testVenue, Week: monday,
		ApprovedBy: "manager-2", Disposition: schedule.DispositionBanked,
		ReviewedExtra: stored.ExtraHours,
	})

	var stateErr *schedule.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "extra_hours", stateErr.Entity)
}

func TestApprove_DriftBeyondEpsilon_Conflict(t *testing.T) {
	// GIVEN: The manager reviewed 0.5h but the stored figure is 1h
	// THEN: The approval is refused so nobody signs off blind

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	computeExtra(t, rec, mem)

	_, err := rec.Approve(ctx, reconcile.ApproveRequest{
		StaffID:       testStaff,
		VenueID:       testVenue,
		Week:          monday,
		ApprovedBy:    "manager-1",
		Disposition:   schedule.DispositionPaid,
		ReviewedExtra: decimal.NewFromFloat(0.5),
	})

	require.ErrorIs(t, err, schedule.ErrConflict)

	stored, err := rec.For(ctx, testStaff, testVenue, monday)
	require.NoError(t, err)
	assert.False(t, stored.IsApproved)
}

func TestApprove_DriftWithinEpsilon_Accepted(t *testing.T) {
	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	computeExtra(t, rec, mem)

	out, err := rec.Approve(ctx, reconcile.ApproveRequest{
		StaffID:       testStaff,
		VenueID:       testVenue,
		Week:          monday,
		ApprovedBy:    "manager-1",
		Disposition:   schedule.DispositionBanked,
		ReviewedExtra: decimal.NewFromFloat(1.005),
	})

	require.NoError(t, err)
	assert.True(t, out.IsApproved)
}

func TestApprove_NoRecord_NotFound(t *testing.T) {
	rec, _ := newTestReconciler(t)

	_, err := rec.Approve(context.Background(), reconcile.ApproveRequest{
		StaffID:       testStaff,
		VenueID:       testVenue,
		Week:          monday,
		ApprovedBy:    "manager-1",
		Disposition:   schedule.DispositionPaid,
		ReviewedExtra: decimal.NewFromInt(1),
	})

	require.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestApprove_LockedWeek_Rejected(t *testing.T) {
	// GIVEN: The week is LOCKED
	// THEN: Approval bounces before touching the record

	rec, mem := newTestReconciler(t)
	ctx := context.Background()
	computeExtra(t, rec, mem)

	now := time.Now().UTC()
	require.NoError(t, mem.SaveWeekLock(ctx, schedule.WeekLock{
		ID:        "lock-1",
		VenueID:   testVenue,
		WeekStart: schedule.WeekStart(monday),
		WeekEnd:   schedule.WeekEnd(monday),
		Status:    schedule.WeekLocked,
		LockedBy:  "manager-1",
		LockedAt:  &now,
	}))

	_, err := rec.Approve(ctx, reconcile.ApproveRequest{
		StaffID:       testStaff,
		VenueID:       testVenue,
		Week:          monday,
		ApprovedBy:    "manager-1",
		Disposition:   schedule.DispositionPaid,
		ReviewedExtra: decimal.NewFromInt(1),
	})

	require.ErrorIs(t, err, schedule.ErrWeekLocked)
}

func TestApprove_UnknownDisposition_Rejected(t *testing.T) {
	rec, _ := newTestReconciler(t)

	_, err := rec.Approve(context.Background(), reconcile.ApproveRequest{
		StaffID:       testStaff,
		VenueID:       testVenue,
		Week:          monday,
		ApprovedBy:    "manager-1",
		Disposition:   schedule.Disposition("DONATED"),
		ReviewedExtra: decimal.NewFromInt(1),
	})

	var fieldErr *schedule.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "disposition", fieldErr.Field)
}

// =============================================================================
// READS
// =============================================================================

func TestWeekSummary_UnapprovedOnly(t *testing.T) {
	// GIVEN: Two staff with extra hours, one approved
	// THEN: The unapproved filter returns only the pending record

	rec, mem := newTestReconciler(t)
	ctx := context.Background()

	other := schedule.StaffID("staff-2")
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	seedShift(t, mem, "shift-2", other, monday.Add(10*time.Hour), monday.Add(18*time.Hour))
	appendPair(t, mem, testStaff, monday.Add(9*time.Hour), monday.Add(18*time.Hour))
	appendPair(t, mem, other, monday.Add(10*time.Hour), monday.Add(19*time.Hour))

	first, err := rec.Compute(ctx, testStaff, testVenue, monday)
	require.NoError(t, err)
	_, err = rec.Compute(ctx, other, testVenue, monday)
	require.NoError(t, err)

	_, err = rec.Approve(ctx, reconcile.ApproveRequest{
		StaffID: testStaff, VenueID: testVenue, Week: monday,
		ApprovedBy: "manager-1", Disposition: schedule.DispositionPaid,
		ReviewedExtra: first.ExtraHours,
	})
	require.NoError(t, err)

	all, err := rec.WeekSummary(ctx, testVenue, monday, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := rec.WeekSummary(ctx, testVenue, monday, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, other, pending[0].StaffID)
}

func TestFor_NoRecord_ReturnsNil(t *testing.T) {
	rec, _ := newTestReconciler(t)

	out, err := rec.For(context.Background(), testStaff, testVenue, monday)

	require.NoError(t, err)
	assert.Nil(t, out)
}
