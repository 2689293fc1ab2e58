/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates a venue's published
	schedule, clock events, and the anomalies and extra-hours records that
	follow from them.

AVAILABLE SCENARIOS:

	clean-service:    Published week, everyone punches on time
	rough-service:    Late arrival, overtime, and a missing clock-out
	month-end-close:  Extra hours pending approval, one week already locked

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create and publish a snapshot chain for the week
 3. Replay clock events through the punch service (so the classifier
    produces real anomalies, not hand-inserted rows)
 4. Optionally reconcile extra hours and lock weeks

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "rough-service"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: request plumbing and error mapping
  - factory/rules.go: venue rule presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brigade/shift-engine/punch"
	"github.com/brigade/shift-engine/reconcile"
	"github.com/brigade/shift-engine/schedule"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "clean-service",
		Name:        "Clean Service Week",
		Description: "Published schedule, punches within grace, no anomalies",
		Category:    "punch",
	},
	{
		ID:          "rough-service",
		Name:        "Rough Service Week",
		Description: "Late arrival, critical overtime, and a missing clock-out",
		Category:    "punch",
	},
	{
		ID:          "month-end-close",
		Name:        "Month-End Close",
		Description: "Extra hours pending approval, an older week already locked",
		Category:    "reconcile",
	},
}

// databaseResetter is satisfied by the sqlite store; the in-memory test
// store has no reset and scenarios simply refuse to load against it.
type databaseResetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "clean-service":
		err = h.loadCleanServiceScenario(ctx)
	case "rough-service":
		err = h.loadRoughServiceScenario(ctx)
	case "month-end-close":
		err = h.loadMonthEndCloseScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Store.(databaseResetter)
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	if err := resetter.Reset(ctx); err != nil {
		return err
	}
	h.currentScenario = ""
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const demoVenue = schedule.VenueID("venue-bistro")

// seedWeek creates and publishes a snapshot chain covering the week
// that contains anchor.
func (h *Handler) seedWeek(ctx context.Context, anchor time.Time, shifts []schedule.Shift) error {
	start := schedule.WeekStart(anchor)
	end := schedule.WeekEnd(anchor)

	snap, err := h.Chain.Create(ctx, demoVenue, start, end, shifts, "manager-demo")
	if err != nil {
		return err
	}
	_, err = h.Chain.Publish(ctx, snap.ID, "manager-demo")
	return err
}

func demoShift(id, staffID string, day time.Time, fromHour, toHour int) schedule.Shift {
	return schedule.Shift{
		ID:        schedule.ShiftID(id),
		StaffID:   schedule.StaffID(staffID),
		PhaseName: "Service",
		StartTime: day.Add(time.Duration(fromHour) * time.Hour),
		EndTime:   day.Add(time.Duration(toHour) * time.Hour),
	}
}

func (h *Handler) punchPair(ctx context.Context, staffID, shiftID string, in, out time.Time) error {
	base := punch.ClockRequest{
		StaffID: schedule.StaffID(staffID),
		VenueID: demoVenue,
		ShiftID: schedule.ShiftID(shiftID),
		Source:  schedule.SourceApp,
	}

	inReq := base
	inReq.At = in
	if _, _, err := h.Punch.ClockIn(ctx, inReq); err != nil {
		return err
	}

	outReq := base
	outReq.At = out
	_, _, err := h.Punch.ClockOut(ctx, outReq)
	return err
}

// loadCleanServiceScenario: everyone shows up within grace and leaves on
// time. No anomalies, nothing blocking the week lock.
func (h *Handler) loadCleanServiceScenario(ctx context.Context) error {
	monday := schedule.WeekStart(time.Now().UTC())

	shifts := []schedule.Shift{
		demoShift("shift-mon-alice", "staff-alice", monday, 9, 17),
		demoShift("shift-mon-bob", "staff-bob", monday, 10, 18),
		demoShift("shift-tue-alice", "staff-alice", monday.AddDate(0, 0, 1), 9, 17),
	}
	if err := h.seedWeek(ctx, monday, shifts); err != nil {
		return err
	}

	// Alice: on time Monday, leaves two minutes over
	if err := h.punchPair(ctx, "staff-alice", "shift-mon-alice",
		monday.Add(9*time.Hour), monday.Add(17*time.Hour+2*time.Minute)); err != nil {
		return err
	}
	// Bob: two minutes late, inside grace
	if err := h.punchPair(ctx, "staff-bob", "shift-mon-bob",
		monday.Add(10*time.Hour+2*time.Minute), monday.Add(18*time.Hour)); err != nil {
		return err
	}
	// Alice Tuesday
	tuesday := monday.AddDate(0, 0, 1)
	return h.punchPair(ctx, "staff-alice", "shift-tue-alice",
		tuesday.Add(9*time.Hour), tuesday.Add(17*time.Hour))
}

// loadRoughServiceScenario: one late arrival past grace, one critical
// overtime, and an abandoned clock-in the sweep turns into a missing
// punch anomaly.
func (h *Handler) loadRoughServiceScenario(ctx context.Context) error {
	now := time.Now().UTC()
	monday := schedule.WeekStart(now)

	shifts := []schedule.Shift{
		demoShift("shift-mon-alice", "staff-alice", monday, 9, 17),
		demoShift("shift-mon-bob", "staff-bob", monday, 10, 18),
	}
	if err := h.seedWeek(ctx, monday, shifts); err != nil {
		return err
	}

	// Alice: 25 minutes late against a 10 minute grace -> LATE_ARRIVAL
	if err := h.punchPair(ctx, "staff-alice", "shift-mon-alice",
		monday.Add(9*time.Hour+25*time.Minute), monday.Add(17*time.Hour)); err != nil {
		return err
	}
	// Bob: leaves 70 minutes past shift end -> critical OVERTIME
	if err := h.punchPair(ctx, "staff-bob", "shift-mon-bob",
		monday.Add(10*time.Hour), monday.Add(19*time.Hour+10*time.Minute)); err != nil {
		return err
	}

	// Carla clocked in 30 hours ago and never out. The sweep flags it.
	carlaIn := punch.ClockRequest{
		StaffID: "staff-carla",
		VenueID: demoVenue,
		At:      now.Add(-30 * time.Hour),
		Source:  schedule.SourceApp,
	}
	if _, _, err := h.Punch.ClockIn(ctx, carlaIn); err != nil {
		return err
	}
	_, err := h.Punch.SweepMissingPunches(ctx, demoVenue, now)
	return err
}

// loadMonthEndCloseScenario: last week worked and reconciled, with one
// extra-hours record approved and one still pending; the week before
// that is already locked.
func (h *Handler) loadMonthEndCloseScenario(ctx context.Context) error {
	now := time.Now().UTC()
	lastMonday := schedule.WeekStart(now).AddDate(0, 0, -7)

	shifts := []schedule.Shift{
		demoShift("shift-mon-alice", "staff-alice", lastMonday, 9, 17),
		demoShift("shift-mon-bob", "staff-bob", lastMonday, 10, 18),
		demoShift("shift-tue-carla", "staff-carla", lastMonday.AddDate(0, 0, 1), 9, 17),
	}
	if err := h.seedWeek(ctx, lastMonday, shifts); err != nil {
		return err
	}

	// Alice works 90 minutes past the end: 1.5 extra hours
	if err := h.punchPair(ctx, "staff-alice", "shift-mon-alice",
		lastMonday.Add(9*time.Hour), lastMonday.Add(18*time.Hour+30*time.Minute)); err != nil {
		return err
	}
	// Bob on the nose: no extra hours
	if err := h.punchPair(ctx, "staff-bob", "shift-mon-bob",
		lastMonday.Add(10*time.Hour), lastMonday.Add(18*time.Hour)); err != nil {
		return err
	}
	// Carla works 2 hours past the end
	tuesday := lastMonday.AddDate(0, 0, 1)
	if err := h.punchPair(ctx, "staff-carla", "shift-tue-carla",
		tuesday.Add(9*time.Hour), tuesday.Add(19*time.Hour)); err != nil {
		return err
	}

	// Reconcile everyone, then approve Alice's hours as PAID. Carla's
	// stay pending so the week lock is visibly blocked.
	for _, staff := range []schedule.StaffID{"staff-alice", "staff-bob", "staff-carla"} {
		if _, err := h.Reconciler.Compute(ctx, staff, demoVenue, lastMonday); err != nil {
			return err
		}
	}
	if _, err := h.Reconciler.Approve(ctx, reconcile.ApproveRequest{
		StaffID:       "staff-alice",
		VenueID:       demoVenue,
		Week:          lastMonday,
		ApprovedBy:    "manager-demo",
		Disposition:   schedule.DispositionPaid,
		ReviewedExtra: decimal.NewFromFloat(1.5),
		Notes:         "Monday dinner rush",
	}); err != nil {
		return err
	}

	// The week before last is fully settled and locked.
	weekBefore := lastMonday.AddDate(0, 0, -7)
	_, err := h.Locks.LockWeek(ctx, demoVenue, weekBefore, "manager-demo", "settled")
	return err
}
