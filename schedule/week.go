package schedule

import "time"

// =============================================================================
// ISO WEEK HELPERS - All lock scoping is per venue + ISO week
// =============================================================================

// WeekStart returns the Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// WeekEnd returns the Sunday 00:00 UTC of the ISO week containing t.
func WeekEnd(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 6)
}

// SameWeek reports whether a and b fall in the same ISO week.
func SameWeek(a, b time.Time) bool {
	return WeekStart(a).Equal(WeekStart(b))
}

// WeeksIn returns the Monday of every ISO week overlapping [from, to].
// Used to check week locks across a snapshot's full date range.
func WeeksIn(from, to time.Time) []time.Time {
	var weeks []time.Time
	for w := WeekStart(from); !w.After(to); w = w.AddDate(0, 0, 7) {
		weeks = append(weeks, w)
	}
	return weeks
}

// DayOf truncates t to midnight UTC.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
