/*
deriver.go - Pure attendance derivation over the immutable event stream

PURPOSE:
  Turns a staff member's clock-event stream into current status, paired
  work intervals, and planned-vs-actual deltas. There is no cached
  "current status" field anywhere: status is recomputed from the ledger
  on every read, so it can never drift from the events.

PAIRING RULES:
  - IN opens an interval, OUT closes it
  - PAUSE_IN / PAUSE_OUT inside an interval accumulate break time,
    which is subtracted from worked duration
  - an IN with no later OUT is an open interval; it contributes to
    clocked-in status but never to worked hours
*/
package punch

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brigade/shift-engine/schedule"
)

// Status is the derived clock state of a staff member.
type Status struct {
	StaffID     schedule.StaffID
	IsClockedIn bool
	LastEvent   *schedule.TimeEvent
}

// DeriveStatus computes clock state from an event stream ordered by
// timestamp. The most recent IN/OUT event decides; pauses don't change
// clocked-in status.
func DeriveStatus(staffID schedule.StaffID, events []schedule.TimeEvent) Status {
	st := Status{StaffID: staffID}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Kind != schedule.EventIn && ev.Kind != schedule.EventOut {
			continue
		}
		e := ev
		st.LastEvent = &e
		st.IsClockedIn = ev.Kind == schedule.EventIn
		break
	}
	return st
}

// WorkInterval is one completed IN..OUT pair.
type WorkInterval struct {
	ClockIn  schedule.TimeEvent
	ClockOut schedule.TimeEvent
	Breaks   time.Duration
}

// Worked returns the interval duration net of breaks.
func (w WorkInterval) Worked() time.Duration {
	d := w.ClockOut.Timestamp.Sub(w.ClockIn.Timestamp) - w.Breaks
	if d < 0 {
		return 0
	}
	return d
}

// Hours returns worked time as decimal hours.
func (w WorkInterval) Hours() decimal.Decimal {
	return decimal.NewFromFloat(w.Worked().Minutes()).Div(decimal.NewFromInt(60))
}

// PairEvents walks a chronological event stream and returns completed
// work intervals. A trailing open IN is returned separately so callers
// can distinguish "still clocked in" from "worked".
func PairEvents(events []schedule.TimeEvent) (pairs []WorkInterval, open *schedule.TimeEvent) {
	var current *WorkInterval
	var pauseStart *time.Time

	for i := range events {
		ev := events[i]
		switch ev.Kind {
		case schedule.EventIn:
			// A second IN without an OUT abandons the first; the
			// missing-punch sweep deals with the abandoned one.
			current = &WorkInterval{ClockIn: ev}
			pauseStart = nil
		case schedule.EventOut:
			if current == nil {
				continue
			}
			if pauseStart != nil {
				// Clocked out mid-break: the break ends at clock-out.
				current.Breaks += ev.Timestamp.Sub(*pauseStart)
				pauseStart = nil
			}
			current.ClockOut = ev
			pairs = append(pairs, *current)
			current = nil
		case schedule.EventPauseIn:
			if current != nil && pauseStart == nil {
				t := ev.Timestamp
				pauseStart = &t
			}
		case schedule.EventPauseOut:
			if current != nil && pauseStart != nil {
				current.Breaks += ev.Timestamp.Sub(*pauseStart)
				pauseStart = nil
			}
		}
	}

	if current != nil {
		open = &current.ClockIn
	}
	return pairs, open
}

// Delta is one day's planned-vs-actual comparison.
type Delta struct {
	Date           time.Time
	PlannedMinutes int
	ActualMinutes  int
	// DiffMinutes is actual minus planned; negative means under-worked.
	DiffMinutes int
}

// ComputeDeltas buckets intervals and planned shifts by day and compares
// them. Days with neither plan nor attendance are omitted.
func ComputeDeltas(intervals []WorkInterval, shifts []schedule.Shift) []Delta {
	planned := make(map[time.Time]int)
	actual := make(map[time.Time]int)

	for _, s := range shifts {
		if s.Status == schedule.ShiftCancelled {
			continue
		}
		day := schedule.DayOf(s.StartTime)
		planned[day] += int(s.Duration().Minutes())
	}
	for _, w := range intervals {
		day := schedule.DayOf(w.ClockIn.Timestamp)
		actual[day] += int(w.Worked().Minutes())
	}

	days := make(map[time.Time]bool)
	for d := range planned {
		days[d] = true
	}
	for d := range actual {
		days[d] = true
	}

	var deltas []Delta
	for day := range days {
		deltas = append(deltas, Delta{
			Date:           day,
			PlannedMinutes: planned[day],
			ActualMinutes:  actual[day],
			DiffMinutes:    actual[day] - planned[day],
		})
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Date.Before(deltas[j].Date) })
	return deltas
}
