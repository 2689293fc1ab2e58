/*
handlers.go - HTTP API handlers for the schedule reconciliation core

PURPOSE:
  Exposes the schedule engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Punch:
    POST   /api/punch/clock-in               Record an IN event
    POST   /api/punch/clock-out              Record an OUT event
    POST   /api/punch/pause-in               Start a break
    POST   /api/punch/pause-out              End a break
    GET    /api/punch/status/{staffId}       Derived clock state
    GET    /api/punch/time-events/{staffId}  Event ledger
    GET    /api/punch/deltas/{staffId}       Planned-vs-actual per day
    GET    /api/punch/anomalies/{venueId}    Anomaly list
    PATCH  /api/punch/anomalies/{anomalyId}/resolve

  Weekly admin:
    GET    /api/weekly-admin/{venueId}                     Week overview
    PATCH  /api/weekly-admin/{venueId}/resolve-anomaly
    POST   /api/weekly-admin/{venueId}/reconcile
    POST   /api/weekly-admin/{venueId}/approve-extra-hours
    POST   /api/weekly-admin/{venueId}/lock-week
    POST   /api/weekly-admin/{venueId}/unlock-week
    POST   /api/weekly-admin/{venueId}/close-week

  Snapshots:
    POST   /api/snapshots                    New chain (version 1)
    POST   /api/snapshots/versions           New version of a chain
    GET    /api/snapshots/{id}               Read + checksum verify
    PUT    /api/snapshots/{id}               Update DRAFT shifts
    DELETE /api/snapshots/{id}               Delete DRAFT
    POST   /api/snapshots/{id}/publish|lock|archive
    GET    /api/snapshots/{id}/history       Version chain walk
    GET    /api/snapshots/staff-shifts       Deduplicated staff shifts

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Conflict family (stale version, duplicate punch, locked week,
         illegal transition, pending items)
  - 500: Integrity violations and internal errors

SECURITY NOTE:
  No authentication middleware. Identity and permissions are handled
  by the gateway in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - sweeper.go: Background missing-punch sweep
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brigade/shift-engine/punch"
	"github.com/brigade/shift-engine/reconcile"
	"github.com/brigade/shift-engine/schedule"
	"github.com/brigade/shift-engine/snapshot"
	"github.com/brigade/shift-engine/weeklock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      schedule.TxStore
	Punch      *punch.Service
	Chain      *snapshot.Chain
	Reconciler *reconcile.Reconciler
	Locks      *weeklock.Coordinator

	logger *zap.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given services.
func NewHandler(store schedule.TxStore, p *punch.Service, c *snapshot.Chain, r *reconcile.Reconciler, l *weeklock.Coordinator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:      store,
		Punch:      p,
		Chain:      c,
		Reconciler: r,
		Locks:      l,
		logger:     logger,
	}
}

// =============================================================================
// PUNCH HANDLERS
// =============================================================================

// ClockIn records an IN event.
// POST /api/punch/clock-in
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeClockRequest(w, r)
	if !ok {
		return
	}

	event, anomaly, err := h.Punch.ClockIn(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ClockResponseDTO{Event: toEventDTO(*event)}
	if anomaly != nil {
		resp.Anomalies = []AnomalyDTO{toAnomalyDTO(*anomaly)}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ClockOut records an OUT event.
// POST /api/punch/clock-out
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeClockRequest(w, r)
	if !ok {
		return
	}

	event, anomalies, err := h.Punch.ClockOut(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ClockResponseDTO{
		Event:     toEventDTO(*event),
		Anomalies: toAnomalyDTOs(anomalies),
	})
}

// PauseIn starts a break.
// POST /api/punch/pause-in
func (h *Handler) PauseIn(w http.ResponseWriter, r *http.Request) {
	h.pause(w, r, h.Punch.PauseIn)
}

// PauseOut ends a break.
// POST /api/punch/pause-out
func (h *Handler) PauseOut(w http.ResponseWriter, r *http.Request) {
	h.pause(w, r, h.Punch.PauseOut)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, req punch.ClockRequest) (*schedule.TimeEvent, error)) {
	req, ok := h.decodeClockRequest(w, r)
	if !ok {
		return
	}

	event, err := fn(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ClockResponseDTO{Event: toEventDTO(*event)})
}

func (h *Handler) decodeClockRequest(w http.ResponseWriter, r *http.Request) (punch.ClockRequest, bool) {
	var dto ClockRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return punch.ClockRequest{}, false
	}

	req := punch.ClockRequest{
		StaffID:   schedule.StaffID(dto.StaffID),
		VenueID:   schedule.VenueID(dto.VenueID),
		ShiftID:   schedule.ShiftID(dto.ShiftID),
		Latitude:  dto.Latitude,
		Longitude: dto.Longitude,
	}
	if dto.At != "" {
		at, err := time.Parse(time.RFC3339, dto.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'at' timestamp (use RFC3339)", err)
			return punch.ClockRequest{}, false
		}
		req.At = at
	}
	if dto.Source != "" {
		source, err := schedule.ParseEventSource(dto.Source)
		if err != nil {
			writeDomainError(w, err)
			return punch.ClockRequest{}, false
		}
		req.Source = source
	}
	return req, true
}

// GetStatus returns the derived clock state.
// GET /api/punch/status/{staffId}
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	staffID := schedule.StaffID(chi.URLParam(r, "staffId"))

	status, err := h.Punch.Status(r.Context(), staffID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusDTO(status))
}

// GetTimeEvents returns the event ledger for a staff member.
// GET /api/punch/time-events/{staffId}?from=&to=
func (h *Handler) GetTimeEvents(w http.ResponseWriter, r *http.Request) {
	staffID := schedule.StaffID(chi.URLParam(r, "staffId"))
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}

	events, err := h.Punch.Events(r.Context(), staffID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTOs(events))
}

// GetDeltas returns per-day planned-vs-actual comparisons.
// GET /api/punch/deltas/{staffId}?from=&to=
func (h *Handler) GetDeltas(w http.ResponseWriter, r *http.Request) {
	staffID := schedule.StaffID(chi.URLParam(r, "staffId"))
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}

	deltas, err := h.Punch.Deltas(r.Context(), staffID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeltaDTOs(deltas))
}

// GetAnomalies returns a venue's anomalies.
// GET /api/punch/anomalies/{venueId}?from=&to=&unresolved=true
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	venueID := schedule.VenueID(chi.URLParam(r, "venueId"))
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}
	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"

	anomalies, err := h.Punch.Anomalies(r.Context(), venueID, from, to, unresolvedOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnomalyDTOs(anomalies))
}

// ResolveAnomaly records the one-time manager adjudication.
// PATCH /api/punch/anomalies/{anomalyId}/resolve
func (h *Handler) ResolveAnomaly(w http.ResponseWriter, r *http.Request) {
	id := schedule.AnomalyID(chi.URLParam(r, "anomalyId"))

	var req ResolveAnomalyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	anomaly, err := h.Punch.ResolveAnomaly(r.Context(), id, req.ResolvedBy, req.Notes, req.Approved)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnomalyDTO(*anomaly))
}

// =============================================================================
// WEEKLY ADMIN HANDLERS
// =============================================================================

// GetWeeklyAdmin returns the manager's one-screen view of a venue week:
// lock status, anomalies, and extra-hours records.
// GET /api/weekly-admin/{venueId}?week=YYYY-MM-DD
func (h *Handler) GetWeeklyAdmin(w http.ResponseWriter, r *http.Request) {
	venueID := schedule.VenueID(chi.URLParam(r, "venueId"))
	week, ok := parseWeek(w, r.URL.Query().Get("week"))
	if !ok {
		return
	}
	ctx := r.Context()

	lock, err := h.Locks.Status(ctx, venueID, week)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	weekStart := schedule.WeekStart(week)
	// WeekEnd is Sunday 00:00; the view covers the whole Sunday.
	weekEnd := schedule.WeekEnd(week).Add(24*time.Hour - time.Nanosecond)
	anomalies, err := h.Punch.Anomalies(ctx, venueID, weekStart, weekEnd, false)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	extras, err := h.Reconciler.WeekSummary(ctx, venueID, weekStart, false)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, WeeklyAdminDTO{
		VenueID:    string(venueID),
		WeekStart:  weekStart.Format("2006-01-02"),
		Lock:       toWeekLockDTO(lock),
		Anomalies:  toAnomalyDTOs(anomalies),
		ExtraHours: toExtraHoursDTOs(extras),
	})
}

// ResolveAnomalyAdmin resolves an anomaly from the weekly admin screen.
// PATCH /api/weekly-admin/{venueId}/resolve-anomaly
func (h *Handler) ResolveAnomalyAdmin(w http.ResponseWriter, r *http.Request) {
	var req AdminResolveAnomalyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	anomaly, err := h.Punch.ResolveAnomaly(r.Context(), schedule.AnomalyID(req.AnomalyID), req.ResolvedBy, req.Notes, req.Approved)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnomalyDTO(*anomaly))
}

// ReconcileExtraHours recomputes one staff member's planned-vs-actual
// figures for a week. Returns null when there is no surplus to record.
// POST /api/weekly-admin/{venueId}/reconcile
func (h *Handler) ReconcileExtraHours(w http.ResponseWriter, r *http.Request) {
	venueID := schedule.VenueID(chi.URLParam(r, "venueId"))

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	week, ok := parseWeek(w, req.WeekStart)
	if !ok {
		return
	}

	rec, err := h.Reconciler.Compute(r.Context(), schedule.StaffID(req.StaffID), venueID, week)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toExtraHoursDTO(*rec))
}

// ApproveExtraHours signs off a staff member's weekly extra hours.
// POST /api/weekly-admin/{venueId}/approve-extra-hours
func (h *Handler) ApproveExtraHours(w http.ResponseWriter, r *http.Request) {
	venueID := schedule.VenueID(chi.URLParam(r, "venueId"))

	var req ApproveExtraHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	week, ok := parseWeek(w, req.WeekStart)
	if !ok {
		return
	}
	reviewed, err := decimal.NewFromString(req.ReviewedExtra)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reviewed_extra (use a decimal string)", err)
		return
	}

	rec, err := h.Reconciler.Approve(r.Context(), reconcile.ApproveRequest{
		StaffID:       schedule.StaffID(req.StaffID),
		VenueID:       venueID,
		Week:          week,
		ApprovedBy:    req.ApprovedBy,
		Disposition:   schedule.Disposition(req.Disposition),
		ReviewedExtra: reviewed,
		Notes:         req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExtraHoursDTO(*rec))
}

// LockWeek finalizes a venue week.
// POST /api/weekly-admin/{venueId}/lock-week
func (h *Handler) LockWeek(w http.ResponseWriter, r *http.Request) {
	h.lockAction(w, r, func(venueID schedule.VenueID, week time.Time, req LockWeekRequest) (*schedule.WeekLock, error) {
		return h.Locks.LockWeek(r.Context(), venueID, week, req.Actor, req.Notes)
	})
}

// UnlockWeek reopens a LOCKED week.
// POST /api/weekly-admin/{venueId}/unlock-week
func (h *Handler) UnlockWeek(w http.ResponseWriter, r *http.Request) {
	h.lockAction(w, r, func(venueID schedule.VenueID, week time.Time, req LockWeekRequest) (*schedule.WeekLock, error) {
		return h.Locks.UnlockWeek(r.Context(), venueID, week, req.Actor)
	})
}

// CloseWeek makes a LOCKED week terminal.
// POST /api/weekly-admin/{venueId}/close-week
func (h *Handler) CloseWeek(w http.ResponseWriter, r *http.Request) {
	h.lockAction(w, r, func(venueID schedule.VenueID, week time.Time, req LockWeekRequest) (*schedule.WeekLock, error) {
		return h.Locks.CloseWeek(r.Context(), venueID, week, req.Actor)
	})
}

func (h *Handler) lockAction(w http.ResponseWriter, r *http.Request, fn func(schedule.VenueID, time.Time, LockWeekRequest) (*schedule.WeekLock, error)) {
	venueID := schedule.VenueID(chi.URLParam(r, "venueId"))

	var req LockWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	week, ok := parseWeek(w, req.WeekStart)
	if !ok {
		return
	}

	lock, err := fn(venueID, week, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekLockDTO(lock))
}

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================

// CreateSnapshot starts a new chain (version 1, DRAFT).
// POST /api/snapshots
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, ok := parseWeek(w, req.StartDate)
	if !ok {
		return
	}
	end, ok := parseWeek(w, req.EndDate)
	if !ok {
		return
	}
	shifts, err := fromShiftDTOs(req.Shifts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	snap, err := h.Chain.Create(r.Context(), schedule.VenueID(req.VenueID), start, end, shifts, req.CreatedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotDTO(snap))
}

// NewSnapshotVersion extends an existing chain.
// POST /api/snapshots/versions
func (h *Handler) NewSnapshotVersion(w http.ResponseWriter, r *http.Request) {
	var req NewVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	shifts, err := fromShiftDTOs(req.Shifts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	snap, err := h.Chain.NewVersion(r.Context(), schedule.SnapshotID(req.PreviousSnapshotID), shifts, req.CreatedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotDTO(snap))
}

// GetSnapshot reads a snapshot, verifying its checksum.
// GET /api/snapshots/{id}
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := schedule.SnapshotID(chi.URLParam(r, "id"))

	snap, err := h.Chain.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// UpdateSnapshot rewrites a DRAFT snapshot's shifts.
// PUT /api/snapshots/{id}
func (h *Handler) UpdateSnapshot(w http.ResponseWriter, r *http.Request) {
	id := schedule.SnapshotID(chi.URLParam(r, "id"))

	var req UpdateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	shifts, err := fromShiftDTOs(req.Shifts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	snap, err := h.Chain.UpdateDraft(r.Context(), id, shifts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// DeleteSnapshot removes a DRAFT snapshot.
// DELETE /api/snapshots/{id}
func (h *Handler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id := schedule.SnapshotID(chi.URLParam(r, "id"))

	if err := h.Chain.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishSnapshot moves DRAFT to PUBLISHED.
// POST /api/snapshots/{id}/publish
func (h *Handler) PublishSnapshot(w http.ResponseWriter, r *http.Request) {
	h.snapshotAction(w, r, h.Chain.Publish)
}

// LockSnapshot moves PUBLISHED to LOCKED.
// POST /api/snapshots/{id}/lock
func (h *Handler) LockSnapshot(w http.ResponseWriter, r *http.Request) {
	h.snapshotAction(w, r, h.Chain.Lock)
}

// ArchiveSnapshot moves LOCKED to ARCHIVED.
// POST /api/snapshots/{id}/archive
func (h *Handler) ArchiveSnapshot(w http.ResponseWriter, r *http.Request) {
	h.snapshotAction(w, r, h.Chain.Archive)
}

func (h *Handler) snapshotAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id schedule.SnapshotID, actor string) (*schedule.ScheduleSnapshot, error)) {
	id := schedule.SnapshotID(chi.URLParam(r, "id"))

	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	snap, err := fn(r.Context(), id, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// GetSnapshotHistory walks the version chain backwards.
// GET /api/snapshots/{id}/history
func (h *Handler) GetSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	id := schedule.SnapshotID(chi.URLParam(r, "id"))

	history, err := h.Chain.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]SnapshotDTO, len(history))
	for i := range history {
		dtos[i] = toSnapshotDTO(&history[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStaffShifts returns deduplicated planned shifts for a staff member.
// GET /api/snapshots/staff-shifts?staff_id=&from=&to=
func (h *Handler) GetStaffShifts(w http.ResponseWriter, r *http.Request) {
	staffID := schedule.StaffID(r.URL.Query().Get("staff_id"))
	if staffID == "" {
		writeError(w, http.StatusBadRequest, "Missing staff_id query parameter", nil)
		return
	}
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}

	shifts, err := h.Chain.StaffShifts(r.Context(), staffID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(shifts))
}

// =============================================================================
// HELPERS
// =============================================================================

// parseRange reads from/to query params. Defaults: last 14 days.
func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -14)
	to := now

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := parseTimeParam(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' (use RFC3339 or YYYY-MM-DD)", err)
			return time.Time{}, time.Time{}, false
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := parseTimeParam(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' (use RFC3339 or YYYY-MM-DD)", err)
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	return from, to, true
}

func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseWeek reads a YYYY-MM-DD date; empty means the current week.
func parseWeek(w http.ResponseWriter, s string) (time.Time, bool) {
	if s == "" {
		return time.Now().UTC(), true
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week date (use YYYY-MM-DD)", err)
		return time.Time{}, false
	}
	return t.UTC(), true
}

// writeDomainError maps the error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	// Pending items get a structured body so the client can show what
	// still blocks the lock.
	var pending *schedule.PendingItemsError
	if errors.As(err, &pending) {
		anomalies := make([]string, len(pending.UnresolvedAnomalies))
		for i, id := range pending.UnresolvedAnomalies {
			anomalies[i] = string(id)
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                  "Pending items block the week lock",
			"details":                err.Error(),
			"unresolved_anomalies":   anomalies,
			"unapproved_extra_hours": pending.UnapprovedExtraHours,
		})
		return
	}

	switch {
	case errors.Is(err, schedule.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, schedule.ErrWeekLocked), errors.Is(err, schedule.ErrWeekClosed):
		writeError(w, http.StatusConflict, "Week is locked", err)
	case schedule.IsClientError(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.Is(err, schedule.ErrIntegrity):
		writeError(w, http.StatusInternalServerError, "Integrity violation", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
