/*
Package punch manages the append-only clock-event ledger, attendance
derivation, and anomaly classification.

PURPOSE:
  Staff clock in and out against planned shifts. Every punch is an
  immutable TimeEvent; deviations from the shift window become Anomaly
  records a manager must adjudicate with mandatory notes. Rejected
  hours are excluded from payroll aggregation downstream.

CLASSIFICATION:
  LATE_ARRIVAL     arrival more than the grace window after shift start
  EARLY_DEPARTURE  departure more than the grace window before shift end
  OVERTIME         worked beyond planned duration past the threshold,
                   flagged at clock-out
  MISSING_PUNCH    an IN with no OUT within the cutoff, synthesized by
                   the sweep without a driving punch

  DiffMinutes on every anomaly is the unexcused exceedance beyond the
  configured allowance, never negative.

CONCURRENCY:
  Clock-in is single-flight per staff member: a per-staff mutex
  serializes the "is already clocked in" check against concurrent
  attempts, on top of the store's natural-key uniqueness that makes
  duplicate submissions rejectable rather than duplicated.

SEE ALSO:
  - deriver.go: pure status/pairing/delta derivation
  - weeklock: the gate every mutation consults
*/
package punch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brigade/shift-engine/schedule"
	"github.com/brigade/shift-engine/weeklock"
)

// =============================================================================
// RULES - Classification thresholds are configuration, not constants
// =============================================================================

type Rules struct {
	// LateGrace is how late an arrival may be before LATE_ARRIVAL.
	LateGrace time.Duration
	// EarlyGrace is how early a departure may be before EARLY_DEPARTURE.
	EarlyGrace time.Duration
	// OvertimeThreshold is how far worked time may exceed planned time
	// before OVERTIME.
	OvertimeThreshold time.Duration
	// MissingPunchCutoff is how long an IN may stay open before the
	// sweep synthesizes MISSING_PUNCH.
	MissingPunchCutoff time.Duration
	// CriticalAfter escalates severity from WARNING to CRITICAL.
	CriticalAfter time.Duration
}

func DefaultRules() Rules {
	return Rules{
		LateGrace:          10 * time.Minute,
		EarlyGrace:         10 * time.Minute,
		OvertimeThreshold:  30 * time.Minute,
		MissingPunchCutoff: 24 * time.Hour,
		CriticalAfter:      60 * time.Minute,
	}
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store  schedule.TxStore
	rules  Rules
	audit  schedule.AuditLog
	logger *zap.Logger

	// Per-staff clock mutexes (single-flight per staffId).
	mu         sync.Mutex
	staffLocks map[schedule.StaffID]*sync.Mutex
}

func NewService(store schedule.TxStore, rules Rules, audit schedule.AuditLog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		rules:      rules,
		audit:      audit,
		logger:     logger,
		staffLocks: make(map[schedule.StaffID]*sync.Mutex),
	}
}

// ClockRequest is a single punch attempt.
type ClockRequest struct {
	StaffID   schedule.StaffID
	VenueID   schedule.VenueID
	ShiftID   schedule.ShiftID // optional
	At        time.Time        // zero means now
	Source    schedule.EventSource
	Latitude  *float64
	Longitude *float64
}

func (r *ClockRequest) normalize() error {
	if r.StaffID == "" {
		return &schedule.FieldError{Field: "staff_id"}
	}
	if r.VenueID == "" {
		return &schedule.FieldError{Field: "venue_id"}
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	r.At = r.At.UTC()
	if r.Source == "" {
		r.Source = schedule.SourceWeb
	}
	return nil
}

// ClockIn records an IN event. Rejected when the staff member is
// already clocked in or the week is locked. The punch is tied to the
// day's planned shift unless a shift id is given; late arrival is
// classified immediately.
func (s *Service) ClockIn(ctx context.Context, req ClockRequest) (*schedule.TimeEvent, *schedule.Anomaly, error) {
	if err := req.normalize(); err != nil {
		return nil, nil, err
	}

	unlock := s.lockStaff(req.StaffID)
	defer unlock()

	var event schedule.TimeEvent
	var anomaly *schedule.Anomaly

	err := s.store.WithTx(ctx, func(st schedule.Store) error {
		if err := weeklock.EnsureOpen(ctx, st, req.VenueID, req.At); err != nil {
			return err
		}

		last, err := st.LastEvent(ctx, req.StaffID)
		if err != nil {
			return err
		}
		if last != nil && last.Kind == schedule.EventIn {
			return fmt.Errorf("staff %s: %w", req.StaffID, schedule.ErrAlreadyClockedIn)
		}

		if req.ShiftID == "" {
			id, err := s.plannedShiftFor(ctx, st, req.StaffID, req.At)
			if err != nil {
				return err
			}
			req.ShiftID = id
		}
		event = s.newEvent(req, schedule.EventIn)

		if req.ShiftID != "" {
			// An unknown shift id only skips classification; any other
			// store failure aborts the punch.
			shift, err := st.ShiftByID(ctx, req.ShiftID)
			if err != nil && !errors.Is(err, schedule.ErrNotFound) {
				return err
			}
			if err == nil && shift.StaffID == req.StaffID {
				anomaly = s.classifyArrival(&event, shift)
			}
		}

		if err := st.AppendEvent(ctx, event); err != nil {
			return err
		}
		if anomaly != nil {
			if err := st.SaveAnomaly(ctx, *anomaly); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("clock in",
		zap.String("staff_id", string(req.StaffID)),
		zap.Time("at", req.At),
		zap.Bool("anomaly", anomaly != nil))
	s.recordAudit(ctx, schedule.AuditClockIn, req, event.ID)
	return &event, anomaly, nil
}

// ClockOut records an OUT event. Rejected when not clocked in. Early
// departure and overtime are classified against the shift window of
// the punch (or, failing that, of the opening IN).
func (s *Service) ClockOut(ctx context.Context, req ClockRequest) (*schedule.TimeEvent, []schedule.Anomaly, error) {
	if err := req.normalize(); err != nil {
		return nil, nil, err
	}

	unlock := s.lockStaff(req.StaffID)
	defer unlock()

	var event schedule.TimeEvent
	var anomalies []schedule.Anomaly

	err := s.store.WithTx(ctx, func(st schedule.Store) error {
		if err := weeklock.EnsureOpen(ctx, st, req.VenueID, req.At); err != nil {
			return err
		}

		last, err := st.LastEvent(ctx, req.StaffID)
		if err != nil {
			return err
		}
		if last == nil || last.Kind != schedule.EventIn {
			return fmt.Errorf("staff %s: %w", req.StaffID, schedule.ErrNotClockedIn)
		}

		event = s.newEvent(req, schedule.EventOut)

		shiftID := req.ShiftID
		if shiftID == "" {
			shiftID = last.ShiftID
		}
		if shiftID != "" {
			shift, err := st.ShiftByID(ctx, shiftID)
			if err != nil && !errors.Is(err, schedule.ErrNotFound) {
				return err
			}
			if err == nil && shift.StaffID == req.StaffID {
				if a := s.classifyDeparture(&event, shift); a != nil {
					anomalies = append(anomalies, *a)
				}
				worked, err := s.workedSince(ctx, st, req.StaffID, last.Timestamp, req.At)
				if err != nil {
					return err
				}
				if a := s.classifyOvertime(&event, shift, worked); a != nil {
					anomalies = append(anomalies, *a)
				}
			}
		}

		if err := st.AppendEvent(ctx, event); err != nil {
			return err
		}
		for _, a := range anomalies {
			if err := st.SaveAnomaly(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("clock out",
		zap.String("staff_id", string(req.StaffID)),
		zap.Time("at", req.At),
		zap.Int("anomalies", len(anomalies)))
	s.recordAudit(ctx, schedule.AuditClockOut, req, event.ID)
	return &event, anomalies, nil
}

// PauseIn records the start of a break. Requires an open clock-in and
// no open pause.
func (s *Service) PauseIn(ctx context.Context, req ClockRequest) (*schedule.TimeEvent, error) {
	return s.pause(ctx, req, schedule.EventPauseIn)
}

// PauseOut records the end of a break. Requires an open pause.
func (s *Service) PauseOut(ctx context.Context, req ClockRequest) (*schedule.TimeEvent, error) {
	return s.pause(ctx, req, schedule.EventPauseOut)
}

func (s *Service) pause(ctx context.Context, req ClockRequest, kind schedule.EventKind) (*schedule.TimeEvent, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	unlock := s.lockStaff(req.StaffID)
	defer unlock()

	var event schedule.TimeEvent
	err := s.store.WithTx(ctx, func(st schedule.Store) error {
		if err := weeklock.EnsureOpen(ctx, st, req.VenueID, req.At); err != nil {
			return err
		}

		last, err := st.LastEvent(ctx, req.StaffID)
		if err != nil {
			return err
		}
		if last == nil || last.Kind != schedule.EventIn {
			return fmt.Errorf("staff %s: %w", req.StaffID, schedule.ErrNotClockedIn)
		}

		// Pause state is derived from events since the opening IN.
		events, err := st.EventsByStaff(ctx, req.StaffID, last.Timestamp, req.At)
		if err != nil {
			return err
		}
		paused := false
		for _, ev := range events {
			switch ev.Kind {
			case schedule.EventPauseIn:
				paused = true
			case schedule.EventPauseOut:
				paused = false
			}
		}
		if kind == schedule.EventPauseIn && paused {
			return fmt.Errorf("%w: break already open", schedule.ErrValidation)
		}
		if kind == schedule.EventPauseOut && !paused {
			return fmt.Errorf("%w: no open break", schedule.ErrValidation)
		}

		event = s.newEvent(req, kind)
		return st.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// =============================================================================
// READS - Pure derivations over the ledger
// =============================================================================

// Status derives the current clock state of a staff member.
func (s *Service) Status(ctx context.Context, staffID schedule.StaffID) (Status, error) {
	last, err := s.store.LastEvent(ctx, staffID)
	if err != nil {
		return Status{}, err
	}
	st := Status{StaffID: staffID}
	if last != nil {
		st.LastEvent = last
		st.IsClockedIn = last.Kind == schedule.EventIn
	}
	return st, nil
}

// Events returns the raw event stream.
func (s *Service) Events(ctx context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.TimeEvent, error) {
	return s.store.EventsByStaff(ctx, staffID, from, to)
}

// Deltas returns per-day planned-vs-actual comparisons.
func (s *Service) Deltas(ctx context.Context, staffID schedule.StaffID, from, to time.Time) ([]Delta, error) {
	events, err := s.store.EventsByStaff(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	shifts, err := s.store.PlannedShifts(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	intervals, _ := PairEvents(events)
	return ComputeDeltas(intervals, shifts), nil
}

// Anomalies returns a venue's anomalies in [from, to].
func (s *Service) Anomalies(ctx context.Context, venueID schedule.VenueID, from, to time.Time, unresolvedOnly bool) ([]schedule.Anomaly, error) {
	return s.store.AnomaliesByVenue(ctx, venueID, from, to, unresolvedOnly)
}

// plannedShiftFor returns the staff member's planned shift nearest the
// punch on that day, or empty when nothing is planned.
func (s *Service) plannedShiftFor(ctx context.Context, st schedule.Store, staffID schedule.StaffID, at time.Time) (schedule.ShiftID, error) {
	day := schedule.DayOf(at)
	shifts, err := st.PlannedShifts(ctx, staffID, day, day.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		return "", err
	}

	var best schedule.ShiftID
	var bestGap time.Duration
	for _, sh := range shifts {
		gap := at.Sub(sh.StartTime)
		if gap < 0 {
			gap = -gap
		}
		if best == "" || gap < bestGap {
			best, bestGap = sh.ID, gap
		}
	}
	return best, nil
}

// =============================================================================
// MISSING PUNCH SWEEP
// =============================================================================

// SweepMissingPunches synthesizes MISSING_PUNCH anomalies for IN events
// left open past the cutoff. No OUT event is fabricated: the open IN is
// what the manager adjudicates. Idempotent; re-sweeping skips events
// that already carry a MISSING_PUNCH anomaly. Locked weeks are skipped.
func (s *Service) SweepMissingPunches(ctx context.Context, venueID schedule.VenueID, asOf time.Time) ([]schedule.Anomaly, error) {
	cutoff := asOf.UTC().Add(-s.rules.MissingPunchCutoff)

	var created []schedule.Anomaly
	err := s.store.WithTx(ctx, func(st schedule.Store) error {
		opens, err := st.OpenClockIns(ctx, venueID, cutoff)
		if err != nil {
			return err
		}

		for _, ev := range opens {
			exists, err := st.AnomalyExistsForEvent(ctx, ev.ID, schedule.AnomalyMissingPunch)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := weeklock.EnsureOpen(ctx, st, venueID, ev.Timestamp); err != nil {
				s.logger.Warn("missing punch in locked week skipped",
					zap.String("event_id", string(ev.ID)))
				continue
			}

			a := schedule.Anomaly{
				ID:          schedule.AnomalyID(uuid.NewString()),
				TimeEventID: ev.ID,
				StaffID:     ev.StaffID,
				VenueID:     venueID,
				Date:        schedule.DayOf(ev.Timestamp),
				Type:        schedule.AnomalyMissingPunch,
				Severity:    schedule.SeverityCritical,
				Description: fmt.Sprintf("no clock-out recorded after clock-in at %s", ev.Timestamp.Format(time.RFC3339)),
				CreatedAt:   time.Now().UTC(),
			}
			if err := st.SaveAnomaly(ctx, a); err != nil {
				return err
			}
			if err := st.FlagEventAnomaly(ctx, ev.ID, "missing clock-out"); err != nil {
				return err
			}
			created = append(created, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		s.logger.Info("missing punch sweep",
			zap.String("venue_id", string(venueID)),
			zap.Int("created", len(created)))
	}
	return created, nil
}

// =============================================================================
// ANOMALY RESOLUTION
// =============================================================================

// ResolveAnomaly records the one-time manager adjudication. Notes are
// mandatory; approved=false excludes the associated hours from payroll
// aggregation. The week-lock check, the anomaly update, and the event
// approval-field write share one transaction.
func (s *Service) ResolveAnomaly(ctx context.Context, id schedule.AnomalyID, resolvedBy, notes string, approved bool) (*schedule.Anomaly, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, &schedule.FieldError{Field: "resolution_notes"}
	}
	if resolvedBy == "" {
		return nil, &schedule.FieldError{Field: "resolved_by"}
	}

	var resolved schedule.Anomaly
	err := s.store.WithTx(ctx, func(st schedule.Store) error {
		a, err := st.AnomalyByID(ctx, id)
		if err != nil {
			return err
		}
		if a.IsResolved {
			return &schedule.StateError{Entity: "anomaly", From: "resolved", Op: "resolve"}
		}
		if err := weeklock.EnsureOpen(ctx, st, a.VenueID, a.Date); err != nil {
			return err
		}

		now := time.Now().UTC()
		a.IsResolved = true
		a.Approved = approved
		a.ResolvedBy = resolvedBy
		a.ResolvedAt = &now
		a.ResolutionNotes = notes
		if err := st.MarkAnomalyResolved(ctx, *a); err != nil {
			return err
		}
		if err := st.SetEventApproval(ctx, a.TimeEventID, approved, notes); err != nil {
			return err
		}
		resolved = *a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("anomaly resolved",
		zap.String("anomaly_id", string(id)),
		zap.String("resolved_by", resolvedBy),
		zap.Bool("approved", approved))
	if s.audit != nil {
		entry := schedule.AuditEntry{
			ID:      uuid.NewString(),
			At:      time.Now().UTC(),
			ActorID: resolvedBy,
			Action:  schedule.AuditAnomalyResolved,
			VenueID: resolved.VenueID,
			StaffID: resolved.StaffID,
			Subject: string(id),
			Payload: map[string]any{"approved": approved},
		}
		if err := s.audit.AppendAudit(ctx, entry); err != nil {
			s.logger.Warn("audit append failed", zap.Error(err))
		}
	}
	return &resolved, nil
}

// =============================================================================
// CLASSIFIER
// =============================================================================

func (s *Service) classifyArrival(ev *schedule.TimeEvent, shift *schedule.Shift) *schedule.Anomaly {
	lateBy := ev.Timestamp.Sub(shift.StartTime)
	if lateBy <= s.rules.LateGrace {
		return nil
	}
	exceedance := lateBy - s.rules.LateGrace
	return s.flag(ev, schedule.AnomalyLateArrival, exceedance,
		fmt.Sprintf("arrived %d minutes after shift start (grace %d)",
			int(lateBy.Minutes()), int(s.rules.LateGrace.Minutes())))
}

func (s *Service) classifyDeparture(ev *schedule.TimeEvent, shift *schedule.Shift) *schedule.Anomaly {
	earlyBy := shift.EndTime.Sub(ev.Timestamp)
	if earlyBy <= s.rules.EarlyGrace {
		return nil
	}
	exceedance := earlyBy - s.rules.EarlyGrace
	return s.flag(ev, schedule.AnomalyEarlyDeparture, exceedance,
		fmt.Sprintf("left %d minutes before shift end (grace %d)",
			int(earlyBy.Minutes()), int(s.rules.EarlyGrace.Minutes())))
}

func (s *Service) classifyOvertime(ev *schedule.TimeEvent, shift *schedule.Shift, worked time.Duration) *schedule.Anomaly {
	over := worked - shift.Duration()
	if over <= s.rules.OvertimeThreshold {
		return nil
	}
	exceedance := over - s.rules.OvertimeThreshold
	return s.flag(ev, schedule.AnomalyOvertime, exceedance,
		fmt.Sprintf("worked %d minutes beyond the planned shift (threshold %d)",
			int(over.Minutes()), int(s.rules.OvertimeThreshold.Minutes())))
}

func (s *Service) flag(ev *schedule.TimeEvent, typ schedule.AnomalyType, exceedance time.Duration, desc string) *schedule.Anomaly {
	ev.AnomalyFlag = true
	ev.AnomalyReason = desc

	severity := schedule.SeverityWarning
	if exceedance >= s.rules.CriticalAfter {
		severity = schedule.SeverityCritical
	}
	return &schedule.Anomaly{
		ID:          schedule.AnomalyID(uuid.NewString()),
		TimeEventID: ev.ID,
		StaffID:     ev.StaffID,
		VenueID:     ev.VenueID,
		Date:        schedule.DayOf(ev.Timestamp),
		Type:        typ,
		Severity:    severity,
		Description: desc,
		DiffMinutes: int(exceedance.Minutes()),
		CreatedAt:   time.Now().UTC(),
	}
}

// =============================================================================
// INTERNAL
// =============================================================================

func (s *Service) newEvent(req ClockRequest, kind schedule.EventKind) schedule.TimeEvent {
	return schedule.TimeEvent{
		ID:        schedule.EventID(uuid.NewString()),
		StaffID:   req.StaffID,
		VenueID:   req.VenueID,
		ShiftID:   req.ShiftID,
		Timestamp: req.At,
		Kind:      kind,
		Source:    req.Source,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		CreatedAt: time.Now().UTC(),
	}
}

// workedSince computes net worked time between an IN and the pending
// OUT, subtracting pauses recorded in between.
func (s *Service) workedSince(ctx context.Context, st schedule.Store, staffID schedule.StaffID, in, out time.Time) (time.Duration, error) {
	events, err := st.EventsByStaff(ctx, staffID, in, out)
	if err != nil {
		return 0, err
	}

	var breaks time.Duration
	var pauseStart *time.Time
	for _, ev := range events {
		switch ev.Kind {
		case schedule.EventPauseIn:
			if pauseStart == nil {
				t := ev.Timestamp
				pauseStart = &t
			}
		case schedule.EventPauseOut:
			if pauseStart != nil {
				breaks += ev.Timestamp.Sub(*pauseStart)
				pauseStart = nil
			}
		}
	}
	if pauseStart != nil {
		breaks += out.Sub(*pauseStart)
	}

	worked := out.Sub(in) - breaks
	if worked < 0 {
		worked = 0
	}
	return worked, nil
}

func (s *Service) lockStaff(id schedule.StaffID) func() {
	s.mu.Lock()
	l, ok := s.staffLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.staffLocks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) recordAudit(ctx context.Context, action schedule.AuditAction, req ClockRequest, subject schedule.EventID) {
	if s.audit == nil {
		return
	}
	entry := schedule.AuditEntry{
		ID:      uuid.NewString(),
		At:      time.Now().UTC(),
		ActorID: string(req.StaffID),
		Action:  action,
		VenueID: req.VenueID,
		StaffID: req.StaffID,
		Subject: string(subject),
	}
	if err := s.audit.AppendAudit(ctx, entry); err != nil {
		s.logger.Warn("audit append failed", zap.Error(err))
	}
}
