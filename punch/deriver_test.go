package punch_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brigade/shift-engine/punch"
	"github.com/brigade/shift-engine/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func ev(kind schedule.EventKind, at time.Time) schedule.TimeEvent {
	return schedule.TimeEvent{
		ID:        schedule.EventID(string(kind) + at.Format(time.RFC3339)),
		StaffID:   testStaff,
		VenueID:   testVenue,
		Timestamp: at,
		Kind:      kind,
	}
}

// =============================================================================
// STATUS DERIVATION
// =============================================================================

func TestDeriveStatus_EmptyStream(t *testing.T) {
	st := punch.DeriveStatus(testStaff, nil)

	assert.False(t, st.IsClockedIn)
	assert.Nil(t, st.LastEvent)
}

func TestDeriveStatus_PausesDontFlipClockState(t *testing.T) {
	// GIVEN: IN followed by PAUSE_IN
	// THEN: Still clocked in; the pause is not a clock event

	events := []schedule.TimeEvent{
		ev(schedule.EventIn, monday.Add(9*time.Hour)),
		ev(schedule.EventPauseIn, monday.Add(12*time.Hour)),
	}

	st := punch.DeriveStatus(testStaff, events)

	assert.True(t, st.IsClockedIn)
	require.NotNil(t, st.LastEvent)
	assert.Equal(t, schedule.EventIn, st.LastEvent.Kind)
}

func TestDeriveStatus_OutEndsTheDay(t *testing.T) {
	events := []schedule.TimeEvent{
		ev(schedule.EventIn, monday.Add(9*time.Hour)),
		ev(schedule.EventOut, monday.Add(17*time.Hour)),
	}

	st := punch.DeriveStatus(testStaff, events)

	assert.False(t, st.IsClockedIn)
	require.NotNil(t, st.LastEvent)
	assert.Equal(t, schedule.EventOut, st.LastEvent.Kind)
}

// =============================================================================
// EVENT PAIRING
// =============================================================================

func TestPairEvents_CompletePairWithBreak(t *testing.T) {
	// GIVEN: IN 9:00, break 12:00-12:30, OUT 17:00
	// THEN: One interval, 7.5 hours worked

	events := []schedule.TimeEvent{
		ev(schedule.EventIn, monday.Add(9*time.Hour)),
		ev(schedule.EventPauseIn, monday.Add(12*time.Hour)),
		ev(schedule.EventPauseOut, monday.Add(12*time.Hour+30*time.Minute)),
		ev(schedule.EventOut, monday.Add(17*time.Hour)),
	}

	pairs, open := punch.PairEvents(events)

	require.Len(t, pairs, 1)
	assert.Nil(t, open)
	assert.Equal(t, 7*time.Hour+30*time.Minute, pairs[0].Worked())
	assert.Equal(t, "7.5", pairs[0].Hours().String())
}

func TestPairEvents_OpenInContributesNothing(t *testing.T) {
	// GIVEN: A completed Monday pair and a Tuesday IN with no OUT
	// THEN: One pair plus the open IN reported separately

	tuesday := monday.AddDate(0, 0, 1)
	events := []schedule.TimeEvent{
		ev(schedule.EventIn, monday.Add(9*time.Hour)),
		ev(schedule.EventOut, monday.Add(17*time.Hour)),
		ev(schedule.EventIn, tuesday.Add(9*time.Hour)),
	}

	pairs, open := punch.PairEvents(events)

	require.Len(t, pairs, 1)
	require.NotNil(t, open)
	assert.Equal(t, tuesday.Add(9*time.Hour), open.Timestamp)
}

func TestPairEvents_SecondInAbandonsFirst(t *testing.T) {
	// GIVEN: IN, IN, OUT
	// THEN: Only the second IN pairs with the OUT; the first is
	//       abandoned (the sweep's problem, not the deriver's)

	events := []schedule.TimeEvent{
		ev(schedule.EventIn, monday.Add(9*time.Hour)),
		ev(schedule.EventIn, monday.Add(11*time.Hour)),
		ev(schedule.EventOut, monday.Add(17*time.Hour)),
	}

	pairs, open := punch.PairEvents(events)

	require.Len(t, pairs, 1)
	assert.Nil(t, open)
	assert.Equal(t, monday.Add(11*time.Hour), pairs[0].ClockIn.Timestamp)
	assert.Equal(t, 6*time.Hour, pairs[0].Worked())
}

func TestPairEvents_ClockOutMidBreak(t *testing.T) {
	// GIVEN: Break opened at 16:00, OUT at 17:00 with the break open
	// THEN: The break runs to clock-out; worked time excludes it

	events := []schedule.TimeEvent{
		ev(schedule.EventIn, monday.Add(9*time.Hour)),
		ev(schedule.EventPauseIn, monday.Add(16*time.Hour)),
		ev(schedule.EventOut, monday.Add(17*time.Hour)),
	}

	pairs, _ := punch.PairEvents(events)

	require.Len(t, pairs, 1)
	assert.Equal(t, 7*time.Hour, pairs[0].Worked())
}

func TestPairEvents_OutWithoutIn_Ignored(t *testing.T) {
	events := []schedule.TimeEvent{
		ev(schedule.EventOut, monday.Add(17*time.Hour)),
	}

	pairs, open := punch.PairEvents(events)

	assert.Empty(t, pairs)
	assert.Nil(t, open)
}

// =============================================================================
// DELTA COMPUTATION
// =============================================================================

func TestComputeDeltas_PerDayBuckets(t *testing.T) {
	// GIVEN: An 8h planned Monday worked as 7.5h, an 8h planned Tuesday
	//        not worked at all, and an unplanned Wednesday of 4h
	// THEN: Three deltas in date order with signed differences

	tuesday := monday.AddDate(0, 0, 1)
	wednesday := monday.AddDate(0, 0, 2)

	shifts := []schedule.Shift{
		{ID: "s1", StaffID: testStaff, StartTime: monday.Add(9 * time.Hour), EndTime: monday.Add(17 * time.Hour), Status: schedule.ShiftPublished},
		{ID: "s2", StaffID: testStaff, StartTime: tuesday.Add(9 * time.Hour), EndTime: tuesday.Add(17 * time.Hour), Status: schedule.ShiftPublished},
	}
	intervals, _ := punch.PairEvents([]schedule.TimeEvent{
		ev(schedule.EventIn, monday.Add(9*time.Hour)),
		ev(schedule.EventPauseIn, monday.Add(12*time.Hour)),
		ev(schedule.EventPauseOut, monday.Add(12*time.Hour+30*time.Minute)),
		ev(schedule.EventOut, monday.Add(17*time.Hour)),
		ev(schedule.EventIn, wednesday.Add(10*time.Hour)),
		ev(schedule.EventOut, wednesday.Add(14*time.Hour)),
	})

	deltas := punch.ComputeDeltas(intervals, shifts)

	require.Len(t, deltas, 3)
	assert.Equal(t, schedule.DayOf(monday), deltas[0].Date)
	assert.Equal(t, 480, deltas[0].PlannedMinutes)
	assert.Equal(t, 450, deltas[0].ActualMinutes)
	assert.Equal(t, -30, deltas[0].DiffMinutes)

	assert.Equal(t, 480, deltas[1].PlannedMinutes)
	assert.Equal(t, 0, deltas[1].ActualMinutes)
	assert.Equal(t, -480, deltas[1].DiffMinutes)

	assert.Equal(t, 0, deltas[2].PlannedMinutes)
	assert.Equal(t, 240, deltas[2].ActualMinutes)
	assert.Equal(t, 240, deltas[2].DiffMinutes)
}

func TestComputeDeltas_CancelledShiftsExcluded(t *testing.T) {
	shifts := []schedule.Shift{
		{ID: "s1", StaffID: testStaff, StartTime: monday.Add(9 * time.Hour), EndTime: monday.Add(17 * time.Hour), Status: schedule.ShiftCancelled},
	}

	deltas := punch.ComputeDeltas(nil, shifts)

	assert.Empty(t, deltas, "a cancelled shift plans nothing")
}
