/*
grid.go - Pure projection helpers for the 7-day schedule grid

PURPOSE:
  Deterministic, side-effect-free functions used to project a flat shift
  list into a week × hour grid and assign stable staff colors. Nothing
  here touches storage.

CONVENTIONS:
  - IsInSlot is inclusive on BOTH boundary hours: a 9:00-13:00 shift
    occupies slots 9,10,11,12,13. The boundary hour is double-counted
    between adjacent shifts; downstream consumers rely on it.
  - Color assignment cycles a fixed palette by first-seen staff order,
    so identical input order always yields identical colors with no
    persisted state.
*/
package schedule

import "sort"

// DefaultHourRange is used when a grid has no shifts to display.
const (
	defaultGridStart = 7
	defaultGridEnd   = 23
)

// HourRange returns the [first, last] hour rows the grid should render:
// one hour of padding on each side of the shift extremes, clamped to
// [0, 23]. Defaults to [7, 23] when shifts is empty.
func HourRange(shifts []Shift) (int, int) {
	if len(shifts) == 0 {
		return defaultGridStart, defaultGridEnd
	}

	minHour, maxHour := 24, -1
	for _, s := range shifts {
		if h := s.StartTime.Hour(); h < minHour {
			minHour = h
		}
		if h := s.EndTime.Hour(); h > maxHour {
			maxHour = h
		}
	}

	minHour--
	maxHour++
	if minHour < 0 {
		minHour = 0
	}
	if maxHour > 23 {
		maxHour = 23
	}
	return minHour, maxHour
}

// IsInSlot reports whether a shift occupies the given hour row.
// Inclusive on both ends.
func IsInSlot(s Shift, hour int) bool {
	return hour >= s.StartTime.Hour() && hour <= s.EndTime.Hour()
}

// DedupeStaffShifts collapses shifts sharing (start, end, phaseID,
// phaseName) for staff-facing views, preserving first-seen order.
func DedupeStaffShifts(shifts []Shift) []Shift {
	type dedupeKey struct {
		start, end int64
		phaseID    string
		phaseName  string
	}

	seen := make(map[dedupeKey]bool, len(shifts))
	out := make([]Shift, 0, len(shifts))
	for _, s := range shifts {
		k := dedupeKey{s.StartTime.Unix(), s.EndTime.Unix(), s.PhaseID, s.PhaseName}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// palette is intentionally fixed: stable colors across renders matter
// more than variety. Wraps when a venue has more staff than entries.
var palette = []string{
	"#2563eb", // blue
	"#16a34a", // green
	"#d97706", // amber
	"#dc2626", // red
	"#7c3aed", // violet
	"#0891b2", // cyan
	"#db2777", // pink
	"#65a30d", // lime
	"#ea580c", // orange
	"#4f46e5", // indigo
}

// StaffColors assigns each staff member a palette color by first-seen
// order in the shift list.
func StaffColors(shifts []Shift) map[StaffID]string {
	colors := make(map[StaffID]string)
	next := 0
	for _, s := range shifts {
		if _, ok := colors[s.StaffID]; ok {
			continue
		}
		colors[s.StaffID] = palette[next%len(palette)]
		next++
	}
	return colors
}

// SortShiftsCanonical orders shifts by (staffID, start, end, phaseID).
// This is the ordering the snapshot checksum is computed over, exposed
// so grid consumers can render in the same stable order.
func SortShiftsCanonical(shifts []Shift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		a, b := shifts[i], shifts[j]
		if a.StaffID != b.StaffID {
			return a.StaffID < b.StaffID
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if !a.EndTime.Equal(b.EndTime) {
			return a.EndTime.Before(b.EndTime)
		}
		return a.PhaseID < b.PhaseID
	})
}
