package punch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brigade/shift-engine/punch"
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

// monday is a fixed Monday so shift windows are deterministic.
var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*punch.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := punch.NewService(mem, punch.DefaultRules(), mem, nil)
	return svc, mem
}

// seedShift publishes a one-shift snapshot so the classifier has a
// planned window to compare punches against.
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

func clockReq(shiftID schedule.ShiftID, at time.Time) punch.ClockRequest {
	return punch.ClockRequest{
		StaffID: testStaff,
		VenueID: testVenue,
		ShiftID: shiftID,
		At:      at,
		Source:  schedule.SourceApp,
	}
}

// =============================================================================
// CLOCK-IN CLASSIFICATION TESTS
// =============================================================================

func TestClockIn_WithinGrace_NoAnomaly(t *testing.T) {
	// GIVEN: A shift starting at 09:00 and a 10 minute grace window
	// WHEN: Staff clocks in at 09:10
	// THEN: The punch is accepted with no anomaly

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))

	event, anomaly, err := svc.ClockIn(ctx, clockReq("shift-1", monday.Add(9*time.Hour+10*time.Minute)))

	require.NoError(t, err)
	assert.Nil(t, anomaly, "9:10 against a 10 minute grace is on time")
	assert.False(t, event.AnomalyFlag)
	assert.Equal(t, schedule.EventIn, event.Kind)
}

func TestClockIn_PastGrace_LateArrivalWithExceedance(t *testing.T) {
	// GIVEN: A shift starting at 09:00 and a 10 minute grace window
	// WHEN: Staff clocks in at 09:25
	// THEN: LATE_ARRIVAL anomaly with DiffMinutes 15 (exceedance beyond
	//       grace, not raw lateness)

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))

	event, anomaly, err := svc.ClockIn(ctx, clockReq("shift-1", monday.Add(9*time.Hour+25*time.Minute)))

	require.NoError(t, err)
	require.NotNil(t, anomaly)
	assert.Equal(t, schedule.AnomalyLateArrival, anomaly.Type)
	assert.Equal(t, 15, anomaly.DiffMinutes)
	assert.Equal(t, schedule.SeverityWarning, anomaly.Severity)
	assert.True(t, event.AnomalyFlag)
	assert.False(t, anomaly.IsResolved)
}

func TestClockIn_VeryLate_CriticalSeverity(t *testing.T) {
	// GIVEN: CriticalAfter of 60 minutes
	// WHEN: Staff clocks in 90 minutes late (exceedance 80 past grace)
	// THEN: The anomaly escalates to CRITICAL

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))

	_, anomaly, err := svc.ClockIn(ctx, clockReq("shift-1", monday.Add(10*time.Hour+30*time.Minute)))

	require.NoError(t, err)
	require.NotNil(t, anomaly)
	assert.Equal(t, schedule.SeverityCritical, anomaly.Severity)
	assert.Equal(t, 80, anomaly.DiffMinutes)
}

func TestClockIn_NoShiftID_ResolvesDayPlan(t *testing.T) {
	// GIVEN: A planned 09:00 shift and a punch carrying no shift id
	// WHEN: Staff clocks in 25 minutes late
	// THEN: The punch is tied to the day's shift and classified

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))

	event, anomaly, err := svc.ClockIn(ctx, clockReq("", monday.Add(9*time.Hour+25*time.Minute)))

	require.NoError(t, err)
	assert.Equal(t, schedule.ShiftID("shift-1"), event.ShiftID)
	require.NotNil(t, anomaly)
	assert.Equal(t, schedule.AnomalyLateArrival, anomaly.Type)
	assert.Equal(t, 15, anomaly.DiffMinutes)
}

// brokenShiftStore fails every shift lookup with a given error.
type brokenShiftStore struct {
	*store.Memory
	err error
}

func (b *brokenShiftStore) WithTx(ctx context.Context, fn func(schedule.Store) error) error {
	return b.Memory.WithTx(ctx, func(st schedule.Store) error {
		return fn(&brokenShiftView{Store: st, err: b.err})
	})
}

type brokenShiftView struct {
	schedule.Store
	err error
}

func (v *brokenShiftView) ShiftByID(context.Context, schedule.ShiftID) (*schedule.Shift, error) {
	return nil, v.err
}

func TestClockIn_ShiftLookupFailure_AbortsPunch(t *testing.T) {
	// GIVEN: A store whose shift lookups fail outright
	// WHEN: Staff clocks in against a shift
	// THEN: The failure surfaces and no event is recorded; only a
	//       missing shift may skip classification silently

	mem := store.NewMemory()
	errDown := errors.New("store down")
	svc := punch.NewService(&brokenShiftStore{Memory: mem, err: errDown}, punch.DefaultRules(), mem, nil)
	ctx := context.Background()

	_, _, err := svc.ClockIn(ctx, clockReq("shift-1", monday.Add(9*time.Hour)))

	require.ErrorIs(t, err, errDown)
	events, err := mem.EventsByStaff(ctx, testStaff, monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClockIn_UnknownShiftID_SkipsClassification(t *testing.T) {
	// GIVEN: A punch naming a shift that does not exist
	// THEN: The punch lands with no anomaly

	svc, _ := newTestService(t)

	event, anomaly, err := svc.ClockIn(context.Background(), clockReq("shift-missing", monday.Add(9*time.Hour)))

	require.NoError(t, err)
	assert.Nil(t, anomaly)
	assert.Equal(t, schedule.EventIn, event.Kind)
}

func TestClockIn_AlreadyClockedIn_Rejected(t *testing.T) {
	// GIVEN: Staff already clocked in
	// WHEN: They clock in again
	// THEN: ErrAlreadyClockedIn

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ClockIn(ctx, clockReq("", monday.Add(9*time.Hour)))
	require.NoError(t, err)

	_, _, err = svc.ClockIn(ctx, clockReq("", monday.Add(10*time.Hour)))
	assert.ErrorIs(t, err, schedule.ErrAlreadyClockedIn)
}

func TestClockIn_MissingStaffID_ValidationError(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.ClockIn(context.Background(), punch.ClockRequest{VenueID: testVenue})

	assert.ErrorIs(t, err, schedule.ErrValidation)
	var fe *schedule.FieldError
	assert.ErrorAs(t, err, &fe)
	assert.Equal(t, "staff_id", fe.Field)
}

func TestClockIn_LockedWeek_Rejected(t *testing.T) {
	// GIVEN: The week containing the punch is LOCKED
	// WHEN: Staff clocks in
	// THEN: ErrWeekLocked and no event is stored

	svc, mem := newTestService(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveWeekLock(ctx, schedule.WeekLock{
		ID:        "lock-1",
		VenueID:   testVenue,
		WeekStart: schedule.WeekStart(monday),
		WeekEnd:   schedule.WeekEnd(monday),
		Status:    schedule.WeekLocked,
	}))

	_, _, err := svc.ClockIn(ctx, clockReq("", monday.Add(9*time.Hour)))

	assert.ErrorIs(t, err, schedule.ErrWeekLocked)
	events, _ := mem.EventsByStaff(ctx, testStaff, monday, monday.AddDate(0, 0, 1))
	assert.Empty(t, events, "rejected punch must not reach the ledger")
}

// =============================================================================
// CLOCK-OUT CLASSIFICATION TESTS
// =============================================================================

func TestClockOut_NotClockedIn_Rejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.ClockOut(context.Background(), clockReq("", monday.Add(17*time.Hour)))

	assert.ErrorIs(t, err, schedule.ErrNotClockedIn)
}

func TestClockOut_EarlyDeparture_Flagged(t *testing.T) {
	// GIVEN: A shift ending at 17:00 and a 10 minute grace window
	// WHEN: Staff leaves at 16:30
	// THEN: EARLY_DEPARTURE with DiffMinutes 20

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))

	_, _, err := svc.ClockIn(ctx, clockReq("shift-1", monday.Add(9*time.Hour)))
	require.NoError(t, err)

	_, anomalies, err := svc.ClockOut(ctx, clockReq("shift-1", monday.Add(16*time.Hour+30*time.Minute)))

	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, schedule.AnomalyEarlyDeparture, anomalies[0].Type)
	assert.Equal(t, 20, anomalies[0].DiffMinutes)
}

func TestClockOut_Overtime_Flagged(t *testing.T) {
	// GIVEN: An 8 hour shift and a 30 minute overtime threshold
	// WHEN: Staff works 9 hours 10 minutes
	// THEN: OVERTIME with DiffMinutes 40 (70 over, minus threshold 30)

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))

	_, _, err := svc.ClockIn(ctx, clockReq("shift-1", monday.Add(9*time.Hour)))
	require.NoError(t, err)

	_, anomalies, err := svc.ClockOut(ctx, clockReq("shift-1", monday.Add(18*time.Hour+10*time.Minute)))

	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, schedule.AnomalyOvertime, anomalies[0].Type)
	assert.Equal(t, 40, anomalies[0].DiffMinutes)
}

func TestClockOut_BreaksReduceWorkedTime(t *testing.T) {
	// GIVEN: An 8 hour shift
	// WHEN: Staff is on the clock 8h40m but took a 45 minute break
	// THEN: Net worked time is under the plan, no overtime anomaly

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))

	_, _, err := svc.ClockIn(ctx, clockReq("shift-1", monday.Add(9*time.Hour)))
	require.NoError(t, err)
	_, err = svc.PauseIn(ctx, clockReq("", monday.Add(12*time.Hour)))
	require.NoError(t, err)
	_, err = svc.PauseOut(ctx, clockReq("", monday.Add(12*time.Hour+45*time.Minute)))
	require.NoError(t, err)

	_, anomalies, err := svc.ClockOut(ctx, clockReq("shift-1", monday.Add(17*time.Hour+40*time.Minute)))

	require.NoError(t, err)
	assert.Empty(t, anomalies, "8h40m minus a 45m break is 7h55m, under plan")
}

// =============================================================================
// PAUSE STATE TESTS
// =============================================================================

func TestPause_RequiresOpenClockIn(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PauseIn(context.Background(), clockReq("", monday.Add(12*time.Hour)))

	assert.ErrorIs(t, err, schedule.ErrNotClockedIn)
}

func TestPause_DoubleOpenAndDanglingClose_Rejected(t *testing.T) {
	// GIVEN: Staff clocked in with one break already open
	// WHEN: Opening another break, or closing after the break is done
	// THEN: Validation errors either way

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ClockIn(ctx, clockReq("", monday.Add(9*time.Hour)))
	require.NoError(t, err)
	_, err = svc.PauseIn(ctx, clockReq("", monday.Add(12*time.Hour)))
	require.NoError(t, err)

	_, err = svc.PauseIn(ctx, clockReq("", monday.Add(12*time.Hour+5*time.Minute)))
	assert.ErrorIs(t, err, schedule.ErrValidation, "break already open")

	_, err = svc.PauseOut(ctx, clockReq("", monday.Add(12*time.Hour+30*time.Minute)))
	require.NoError(t, err)
	_, err = svc.PauseOut(ctx, clockReq("", monday.Add(12*time.Hour+35*time.Minute)))
	assert.ErrorIs(t, err, schedule.ErrValidation, "no open break")
}

// =============================================================================
// STATUS DERIVATION TESTS
// =============================================================================

func TestStatus_DerivedFromLedger(t *testing.T) {
	// GIVEN: No punches yet
	// THEN: Not clocked in
	// WHEN: IN, then pause, then OUT
	// THEN: Status follows the IN/OUT pair; pauses don't flip it

	svc, _ := newTestService(t)
	ctx := context.Background()

	st, err := svc.Status(ctx, testStaff)
	require.NoError(t, err)
	assert.False(t, st.IsClockedIn)
	assert.Nil(t, st.LastEvent)

	_, _, err = svc.ClockIn(ctx, clockReq("", monday.Add(9*time.Hour)))
	require.NoError(t, err)
	_, err = svc.PauseIn(ctx, clockReq("", monday.Add(12*time.Hour)))
	require.NoError(t, err)

	st, err = svc.Status(ctx, testStaff)
	require.NoError(t, err)
	assert.True(t, st.IsClockedIn, "an open break is still on the clock")

	_, err = svc.PauseOut(ctx, clockReq("", monday.Add(12*time.Hour+30*time.Minute)))
	require.NoError(t, err)
	_, _, err = svc.ClockOut(ctx, clockReq("", monday.Add(17*time.Hour)))
	require.NoError(t, err)

	st, err = svc.Status(ctx, testStaff)
	require.NoError(t, err)
	assert.False(t, st.IsClockedIn)
}

// =============================================================================
// MISSING PUNCH SWEEP TESTS
// =============================================================================

func TestSweep_OpenInPastCutoff_FlaggedOnce(t *testing.T) {
	// GIVEN: An IN left open for 30 hours against a 24 hour cutoff
	// WHEN: The sweep runs twice
	// THEN: Exactly one MISSING_PUNCH anomaly, CRITICAL, no OUT fabricated

	svc, mem := newTestService(t)
	ctx := context.Background()
	now := monday.Add(48 * time.Hour)

	_, _, err := svc.ClockIn(ctx, clockReq("", now.Add(-30*time.Hour)))
	require.NoError(t, err)

	created, err := svc.SweepMissingPunches(ctx, testVenue, now)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, schedule.AnomalyMissingPunch, created[0].Type)
	assert.Equal(t, schedule.SeverityCritical, created[0].Severity)

	again, err := svc.SweepMissingPunches(ctx, testVenue, now)
	require.NoError(t, err)
	assert.Empty(t, again, "re-sweep must not duplicate anomalies")

	events, err := mem.EventsByStaff(ctx, testStaff, monday.Add(-48*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, events, 1, "the sweep never fabricates an OUT")
	assert.True(t, events[0].AnomalyFlag)
}

func TestSweep_RecentOpenIn_NotFlagged(t *testing.T) {
	// GIVEN: An IN open for only 2 hours
	// WHEN: The sweep runs
	// THEN: Nothing is flagged; the shift may simply still be running

	svc, _ := newTestService(t)
	ctx := context.Background()
	now := monday.Add(12 * time.Hour)

	_, _, err := svc.ClockIn(ctx, clockReq("", now.Add(-2*time.Hour)))
	require.NoError(t, err)

	created, err := svc.SweepMissingPunches(ctx, testVenue, now)
	require.NoError(t, err)
	assert.Empty(t, created)
}

// =============================================================================
// ANOMALY RESOLUTION TESTS
// =============================================================================

func resolveTarget(t *testing.T, svc *punch.Service, mem *store.Memory) schedule.Anomaly {
	t.Helper()
	ctx := context.Background()
	seedShift(t, mem, "shift-1", testStaff, monday.Add(9*time.Hour), monday.Add(17*time.Hour))
	_, anomaly, err := svc.ClockIn(ctx, clockReq("shift-1", monday.Add(9*time.Hour+25*time.Minute)))
	require.NoError(t, err)
	require.NotNil(t, anomaly)
	return *anomaly
}

func TestResolveAnomaly_EmptyNotes_Rejected(t *testing.T) {
	// GIVEN: An unresolved anomaly
	// WHEN: Resolving with whitespace-only notes
	// THEN: Validation error on resolution_notes; anomaly untouched

	svc, mem := newTestService(t)
	a := resolveTarget(t, svc, mem)

	_, err := svc.ResolveAnomaly(context.Background(), a.ID, "manager-1", "   ", true)

	assert.ErrorIs(t, err, schedule.ErrValidation)
	var fe *schedule.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "resolution_notes", fe.Field)

	stored, err := mem.AnomalyByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsResolved)
}

func TestResolveAnomaly_ApprovalPropagatesToEvent(t *testing.T) {
	// GIVEN: An unresolved late-arrival anomaly
	// WHEN: The manager approves it with notes
	// THEN: Anomaly is resolved and the driving event carries the decision

	svc, mem := newTestService(t)
	ctx := context.Background()
	a := resolveTarget(t, svc, mem)

	resolved, err := svc.ResolveAnomaly(ctx, a.ID, "manager-1", "train strike", true)

	require.NoError(t, err)
	assert.True(t, resolved.IsResolved)
	assert.True(t, resolved.Approved)
	assert.Equal(t, "manager-1", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)

	ev, err := mem.EventByID(ctx, a.TimeEventID)
	require.NoError(t, err)
	assert.True(t, ev.ManagerApproved)
	assert.Equal(t, "train strike", ev.ManagerNotes)
}

func TestResolveAnomaly_SecondResolve_Rejected(t *testing.T) {
	// GIVEN: An anomaly already resolved
	// WHEN: Resolving again
	// THEN: StateError; resolution is one-time

	svc, mem := newTestService(t)
	ctx := context.Background()
	a := resolveTarget(t, svc, mem)

	_, err := svc.ResolveAnomaly(ctx, a.ID, "manager-1", "approved once", true)
	require.NoError(t, err)

	_, err = svc.ResolveAnomaly(ctx, a.ID, "manager-2", "changed my mind", false)

	var se *schedule.StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "anomaly", se.Entity)
	assert.ErrorIs(t, err, schedule.ErrState)
}

func TestResolveAnomaly_LockedWeek_Rejected(t *testing.T) {
	// GIVEN: An anomaly whose date falls in a LOCKED week
	// WHEN: Resolving it
	// THEN: ErrWeekLocked

	svc, mem := newTestService(t)
	ctx := context.Background()
	a := resolveTarget(t, svc, mem)

	require.NoError(t, mem.SaveWeekLock(ctx, schedule.WeekLock{
		ID:        "lock-1",
		VenueID:   testVenue,
		WeekStart: schedule.WeekStart(a.Date),
		WeekEnd:   schedule.WeekEnd(a.Date),
		Status:    schedule.WeekLocked,
	}))

	_, err := svc.ResolveAnomaly(ctx, a.ID, "manager-1", "too late now", true)

	assert.ErrorIs(t, err, schedule.ErrWeekLocked)
}

func TestResolveAnomaly_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ResolveAnomaly(context.Background(), "nope", "manager-1", "notes", true)

	assert.ErrorIs(t, err, schedule.ErrNotFound)
}
