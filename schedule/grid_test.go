package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brigade/shift-engine/schedule"
)

func gridShift(staffID schedule.StaffID, fromHour, toHour int) schedule.Shift {
	return schedule.Shift{
		StaffID:   staffID,
		StartTime: monday.Add(time.Duration(fromHour) * time.Hour),
		EndTime:   monday.Add(time.Duration(toHour) * time.Hour),
		Status:    schedule.ShiftPublished,
	}
}

func TestHourRange_EmptyUsesDefaults(t *testing.T) {
	first, last := schedule.HourRange(nil)

	assert.Equal(t, 7, first)
	assert.Equal(t, 23, last)
}

func TestHourRange_OneHourPaddingEachSide(t *testing.T) {
	first, last := schedule.HourRange([]schedule.Shift{gridShift("staff-1", 9, 17)})

	assert.Equal(t, 8, first)
	assert.Equal(t, 18, last)
}

func TestHourRange_ClampedToDayBounds(t *testing.T) {
	first, last := schedule.HourRange([]schedule.Shift{gridShift("staff-1", 0, 23)})

	assert.Equal(t, 0, first)
	assert.Equal(t, 23, last)
}

func TestIsInSlot_InclusiveBothEnds(t *testing.T) {
	// A 9:00-13:00 shift occupies rows 9 through 13; adjacent shifts
	// share the boundary hour.

	s := gridShift("staff-1", 9, 13)

	assert.False(t, schedule.IsInSlot(s, 8))
	assert.True(t, schedule.IsInSlot(s, 9))
	assert.True(t, schedule.IsInSlot(s, 13))
	assert.False(t, schedule.IsInSlot(s, 14))
}

func TestDedupeStaffShifts_CollapsesSameWindowAndPhase(t *testing.T) {
	a := gridShift("staff-1", 9, 17)
	a.PhaseName = "Service"
	b := gridShift("staff-2", 9, 17) // different staff, same window+phase
	b.PhaseName = "Service"
	c := gridShift("staff-1", 9, 17)
	c.PhaseName = "Prep"

	out := schedule.DedupeStaffShifts([]schedule.Shift{a, b, c})

	require.Len(t, out, 2)
	assert.Equal(t, "Service", out[0].PhaseName)
	assert.Equal(t, "Prep", out[1].PhaseName)
}

func TestStaffColors_StableByFirstSeenOrder(t *testing.T) {
	shifts := []schedule.Shift{
		gridShift("staff-b", 9, 17),
		gridShift("staff-a", 10, 18),
		gridShift("staff-b", 18, 22),
	}

	colors := schedule.StaffColors(shifts)

	require.Len(t, colors, 2)
	assert.Equal(t, colors, schedule.StaffColors(shifts), "same input order, same colors")
	assert.NotEqual(t, colors["staff-a"], colors["staff-b"])
}

func TestSortShiftsCanonical_StaffThenStartThenEnd(t *testing.T) {
	shifts := []schedule.Shift{
		gridShift("staff-b", 9, 17),
		gridShift("staff-a", 12, 18),
		gridShift("staff-a", 9, 13),
		gridShift("staff-a", 9, 11),
	}

	schedule.SortShiftsCanonical(shifts)

	assert.Equal(t, schedule.StaffID("staff-a"), shifts[0].StaffID)
	assert.Equal(t, 9, shifts[0].StartTime.Hour())
	assert.Equal(t, 11, shifts[0].EndTime.Hour())
	assert.Equal(t, 13, shifts[1].EndTime.Hour())
	assert.Equal(t, 12, shifts[2].StartTime.Hour())
	assert.Equal(t, schedule.StaffID("staff-b"), shifts[3].StaffID)
}
