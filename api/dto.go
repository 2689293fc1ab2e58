/*
dto.go - Request/response data structures for the REST API

PURPOSE:
  Defines the JSON shapes exchanged over HTTP, separate from the domain
  types. Domain types use decimal.Decimal and strong ID types; DTOs use
  strings and RFC3339 timestamps so the wire format stays stable even
  when the domain model evolves.

CONVENTIONS:
  - Timestamps: RFC3339
  - Dates and week starts: YYYY-MM-DD
  - Hours: decimal strings ("38.5"), never floats
*/
package api

import (
	"time"

	"github.com/brigade/shift-engine/punch"
	"github.com/brigade/shift-engine/schedule"
)

// =============================================================================
// REQUESTS
// =============================================================================

// ClockRequestDTO is the body for clock-in/out and pause endpoints.
type ClockRequestDTO struct {
	StaffID   string   `json:"staff_id"`
	VenueID   string   `json:"venue_id"`
	ShiftID   string   `json:"shift_id,omitempty"`
	At        string   `json:"at,omitempty"` // RFC3339, defaults to now
	Source    string   `json:"source,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// ResolveAnomalyRequest is the body for anomaly resolution.
type ResolveAnomalyRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes"`
	Approved   bool   `json:"approved"`
}

// AdminResolveAnomalyRequest resolves an anomaly from the weekly admin
// view, where the anomaly id travels in the body rather than the path.
type AdminResolveAnomalyRequest struct {
	AnomalyID  string `json:"anomaly_id"`
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes"`
	Approved   bool   `json:"approved"`
}

// ReconcileRequest recomputes one staff member's weekly extra hours.
type ReconcileRequest struct {
	StaffID   string `json:"staff_id"`
	WeekStart string `json:"week_start"` // YYYY-MM-DD
}

// ApproveExtraHoursRequest is the body for extra-hours approval.
type ApproveExtraHoursRequest struct {
	StaffID     string `json:"staff_id"`
	WeekStart   string `json:"week_start"` // YYYY-MM-DD
	ApprovedBy  string `json:"approved_by"`
	Disposition string `json:"disposition"` // PAID or BANKED
	// ReviewedExtra is the extra-hours figure the manager saw.
	ReviewedExtra string `json:"reviewed_extra"`
	Notes         string `json:"notes,omitempty"`
}

// LockWeekRequest is the body for week lock/unlock/close.
type LockWeekRequest struct {
	WeekStart string `json:"week_start"` // YYYY-MM-DD
	Actor     string `json:"actor"`
	Notes     string `json:"notes,omitempty"`
}

// ShiftDTO is one planned shift on the wire.
type ShiftDTO struct {
	ID        string `json:"id,omitempty"`
	StaffID   string `json:"staff_id"`
	PhaseID   string `json:"phase_id,omitempty"`
	PhaseName string `json:"phase_name,omitempty"`
	StartTime string `json:"start_time"` // RFC3339
	EndTime   string `json:"end_time"`   // RFC3339
	Status    string `json:"status,omitempty"`
}

// CreateSnapshotRequest creates a new chain (version 1).
type CreateSnapshotRequest struct {
	VenueID   string     `json:"venue_id"`
	StartDate string     `json:"start_date"` // YYYY-MM-DD
	EndDate   string     `json:"end_date"`   // YYYY-MM-DD
	Shifts    []ShiftDTO `json:"shifts"`
	CreatedBy string     `json:"created_by"`
}

// NewVersionRequest extends an existing chain.
type NewVersionRequest struct {
	PreviousSnapshotID string     `json:"previous_snapshot_id"`
	Shifts             []ShiftDTO `json:"shifts"`
	CreatedBy          string     `json:"created_by"`
}

// UpdateDraftRequest rewrites a DRAFT snapshot's shifts.
type UpdateDraftRequest struct {
	Shifts []ShiftDTO `json:"shifts"`
}

// ActorRequest carries just the acting user.
type ActorRequest struct {
	Actor string `json:"actor"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TimeEventDTO is one ledger entry on the wire.
type TimeEventDTO struct {
	ID              string   `json:"id"`
	StaffID         string   `json:"staff_id"`
	VenueID         string   `json:"venue_id"`
	ShiftID         string   `json:"shift_id,omitempty"`
	Timestamp       string   `json:"timestamp"`
	Kind            string   `json:"kind"`
	Source          string   `json:"source"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	AnomalyFlag     bool     `json:"anomaly_flag"`
	AnomalyReason   string   `json:"anomaly_reason,omitempty"`
	ManagerApproved bool     `json:"manager_approved"`
	ManagerNotes    string   `json:"manager_notes,omitempty"`
}

// StatusDTO is the derived clock state.
type StatusDTO struct {
	StaffID     string        `json:"staff_id"`
	IsClockedIn bool          `json:"is_clocked_in"`
	LastEvent   *TimeEventDTO `json:"last_event,omitempty"`
}

// AnomalyDTO is one anomaly on the wire.
type AnomalyDTO struct {
	ID              string `json:"id"`
	TimeEventID     string `json:"time_event_id"`
	StaffID         string `json:"staff_id"`
	VenueID         string `json:"venue_id"`
	Date            string `json:"date"`
	Type            string `json:"type"`
	Severity        string `json:"severity"`
	Description     string `json:"description"`
	DiffMinutes     int    `json:"diff_minutes"`
	IsResolved      bool   `json:"is_resolved"`
	Approved        bool   `json:"approved"`
	ResolvedBy      string `json:"resolved_by,omitempty"`
	ResolvedAt      string `json:"resolved_at,omitempty"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

// DeltaDTO is one day's planned-vs-actual comparison.
type DeltaDTO struct {
	Date           string `json:"date"`
	PlannedMinutes int    `json:"planned_minutes"`
	ActualMinutes  int    `json:"actual_minutes"`
	DiffMinutes    int    `json:"diff_minutes"`
}

// SnapshotDTO is one snapshot version on the wire.
type SnapshotDTO struct {
	ID                 string     `json:"id"`
	VenueID            string     `json:"venue_id"`
	SnapshotDate       string     `json:"snapshot_date"`
	StartDate          string     `json:"start_date"`
	EndDate            string     `json:"end_date"`
	Status             string     `json:"status"`
	Version            int        `json:"version"`
	PreviousSnapshotID string     `json:"previous_snapshot_id,omitempty"`
	Checksum           string     `json:"checksum"`
	TotalShifts        int        `json:"total_shifts"`
	TotalHours         string     `json:"total_hours"`
	Shifts             []ShiftDTO `json:"shifts"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          string     `json:"created_at"`
	PublishedBy        string     `json:"published_by,omitempty"`
	PublishedAt        string     `json:"published_at,omitempty"`
}

// WeekLockDTO is the lock state of one venue+week.
type WeekLockDTO struct {
	ID        string `json:"id,omitempty"`
	VenueID   string `json:"venue_id"`
	WeekStart string `json:"week_start"`
	WeekEnd   string `json:"week_end"`
	Status    string `json:"status"`
	LockedBy  string `json:"locked_by,omitempty"`
	LockedAt  string `json:"locked_at,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// ExtraHoursDTO is one weekly extra-hours record.
type ExtraHoursDTO struct {
	ID           string `json:"id"`
	StaffID      string `json:"staff_id"`
	VenueID      string `json:"venue_id"`
	WeekStart    string `json:"week_start"`
	WeekEnd      string `json:"week_end"`
	PlannedHours string `json:"planned_hours"`
	ActualHours  string `json:"actual_hours"`
	ExtraHours   string `json:"extra_hours"`
	IsApproved   bool   `json:"is_approved"`
	Disposition  string `json:"disposition,omitempty"`
	ApprovedBy   string `json:"approved_by,omitempty"`
	ApprovedAt   string `json:"approved_at,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// WeeklyAdminDTO is the manager's one-screen view of a venue's week.
type WeeklyAdminDTO struct {
	VenueID    string          `json:"venue_id"`
	WeekStart  string          `json:"week_start"`
	Lock       WeekLockDTO     `json:"lock"`
	Anomalies  []AnomalyDTO    `json:"anomalies"`
	ExtraHours []ExtraHoursDTO `json:"extra_hours"`
}

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ClockResponseDTO is returned from punch endpoints.
type ClockResponseDTO struct {
	Event     TimeEventDTO `json:"event"`
	Anomalies []AnomalyDTO `json:"anomalies,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toEventDTO(ev schedule.TimeEvent) TimeEventDTO {
	return TimeEventDTO{
		ID:              string(ev.ID),
		StaffID:         string(ev.StaffID),
		VenueID:         string(ev.VenueID),
		ShiftID:         string(ev.ShiftID),
		Timestamp:       ev.Timestamp.Format(time.RFC3339),
		Kind:            string(ev.Kind),
		Source:          string(ev.Source),
		Latitude:        ev.Latitude,
		Longitude:       ev.Longitude,
		AnomalyFlag:     ev.AnomalyFlag,
		AnomalyReason:   ev.AnomalyReason,
		ManagerApproved: ev.ManagerApproved,
		ManagerNotes:    ev.ManagerNotes,
	}
}

func toEventDTOs(events []schedule.TimeEvent) []TimeEventDTO {
	dtos := make([]TimeEventDTO, len(events))
	for i, ev := range events {
		dtos[i] = toEventDTO(ev)
	}
	return dtos
}

func toAnomalyDTO(a schedule.Anomaly) AnomalyDTO {
	dto := AnomalyDTO{
		ID:              string(a.ID),
		TimeEventID:     string(a.TimeEventID),
		StaffID:         string(a.StaffID),
		VenueID:         string(a.VenueID),
		Date:            a.Date.Format("2006-01-02"),
		Type:            string(a.Type),
		Severity:        string(a.Severity),
		Description:     a.Description,
		DiffMinutes:     a.DiffMinutes,
		IsResolved:      a.IsResolved,
		Approved:        a.Approved,
		ResolvedBy:      a.ResolvedBy,
		ResolutionNotes: a.ResolutionNotes,
	}
	if a.ResolvedAt != nil {
		dto.ResolvedAt = a.ResolvedAt.Format(time.RFC3339)
	}
	return dto
}

func toAnomalyDTOs(anomalies []schedule.Anomaly) []AnomalyDTO {
	dtos := make([]AnomalyDTO, len(anomalies))
	for i, a := range anomalies {
		dtos[i] = toAnomalyDTO(a)
	}
	return dtos
}

func toShiftDTO(sh schedule.Shift) ShiftDTO {
	return ShiftDTO{
		ID:        string(sh.ID),
		StaffID:   string(sh.StaffID),
		PhaseID:   sh.PhaseID,
		PhaseName: sh.PhaseName,
		StartTime: sh.StartTime.Format(time.RFC3339),
		EndTime:   sh.EndTime.Format(time.RFC3339),
		Status:    string(sh.Status),
	}
}

func toShiftDTOs(shifts []schedule.Shift) []ShiftDTO {
	dtos := make([]ShiftDTO, len(shifts))
	for i, sh := range shifts {
		dtos[i] = toShiftDTO(sh)
	}
	return dtos
}

func fromShiftDTO(dto ShiftDTO) (schedule.Shift, error) {
	start, err := time.Parse(time.RFC3339, dto.StartTime)
	if err != nil {
		return schedule.Shift{}, &schedule.FieldError{Field: "start_time", Value: dto.StartTime}
	}
	end, err := time.Parse(time.RFC3339, dto.EndTime)
	if err != nil {
		return schedule.Shift{}, &schedule.FieldError{Field: "end_time", Value: dto.EndTime}
	}
	sh := schedule.Shift{
		ID:        schedule.ShiftID(dto.ID),
		StaffID:   schedule.StaffID(dto.StaffID),
		PhaseID:   dto.PhaseID,
		PhaseName: dto.PhaseName,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
	}
	if dto.Status != "" {
		status, err := schedule.ParseShiftStatus(dto.Status)
		if err != nil {
			return schedule.Shift{}, err
		}
		sh.Status = status
	}
	return sh, nil
}

func fromShiftDTOs(dtos []ShiftDTO) ([]schedule.Shift, error) {
	shifts := make([]schedule.Shift, len(dtos))
	for i, dto := range dtos {
		sh, err := fromShiftDTO(dto)
		if err != nil {
			return nil, err
		}
		shifts[i] = sh
	}
	return shifts, nil
}

func toSnapshotDTO(snap *schedule.ScheduleSnapshot) SnapshotDTO {
	dto := SnapshotDTO{
		ID:                 string(snap.ID),
		VenueID:            string(snap.VenueID),
		SnapshotDate:       snap.SnapshotDate.Format("2006-01-02"),
		StartDate:          snap.StartDate.Format("2006-01-02"),
		EndDate:            snap.EndDate.Format("2006-01-02"),
		Status:             string(snap.Status),
		Version:            snap.Version,
		PreviousSnapshotID: string(snap.PreviousSnapshotID),
		Checksum:           snap.Checksum,
		TotalShifts:        snap.TotalShifts,
		TotalHours:         snap.TotalHours.String(),
		Shifts:             toShiftDTOs(snap.Shifts),
		CreatedBy:          snap.CreatedBy,
		CreatedAt:          snap.CreatedAt.Format(time.RFC3339),
		PublishedBy:        snap.PublishedBy,
	}
	if snap.PublishedAt != nil {
		dto.PublishedAt = snap.PublishedAt.Format(time.RFC3339)
	}
	return dto
}

func toWeekLockDTO(lock *schedule.WeekLock) WeekLockDTO {
	dto := WeekLockDTO{
		ID:        string(lock.ID),
		VenueID:   string(lock.VenueID),
		WeekStart: lock.WeekStart.Format("2006-01-02"),
		WeekEnd:   lock.WeekEnd.Format("2006-01-02"),
		Status:    string(lock.Status),
		LockedBy:  lock.LockedBy,
		Notes:     lock.Notes,
	}
	if lock.LockedAt != nil {
		dto.LockedAt = lock.LockedAt.Format(time.RFC3339)
	}
	return dto
}

func toExtraHoursDTO(rec schedule.ExtraHoursRecord) ExtraHoursDTO {
	dto := ExtraHoursDTO{
		ID:           rec.ID,
		StaffID:      string(rec.StaffID),
		VenueID:      string(rec.VenueID),
		WeekStart:    rec.WeekStart.Format("2006-01-02"),
		WeekEnd:      rec.WeekEnd.Format("2006-01-02"),
		PlannedHours: rec.PlannedHours.String(),
		ActualHours:  rec.ActualHours.String(),
		ExtraHours:   rec.ExtraHours.String(),
		IsApproved:   rec.IsApproved,
		Disposition:  string(rec.Disposition),
		ApprovedBy:   rec.ApprovedBy,
		Notes:        rec.Notes,
	}
	if rec.ApprovedAt != nil {
		dto.ApprovedAt = rec.ApprovedAt.Format(time.RFC3339)
	}
	return dto
}

func toExtraHoursDTOs(recs []schedule.ExtraHoursRecord) []ExtraHoursDTO {
	dtos := make([]ExtraHoursDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toExtraHoursDTO(rec)
	}
	return dtos
}

func toStatusDTO(st punch.Status) StatusDTO {
	dto := StatusDTO{
		StaffID:     string(st.StaffID),
		IsClockedIn: st.IsClockedIn,
	}
	if st.LastEvent != nil {
		ev := toEventDTO(*st.LastEvent)
		dto.LastEvent = &ev
	}
	return dto
}

func toDeltaDTOs(deltas []punch.Delta) []DeltaDTO {
	dtos := make([]DeltaDTO, len(deltas))
	for i, d := range deltas {
		dtos[i] = DeltaDTO{
			Date:           d.Date.Format("2006-01-02"),
			PlannedMinutes: d.PlannedMinutes,
			ActualMinutes:  d.ActualMinutes,
			DiffMinutes:    d.DiffMinutes,
		}
	}
	return dtos
}
