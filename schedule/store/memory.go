// Package store provides an in-memory schedule.TxStore implementation
// for testing and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brigade/shift-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	events    []schedule.TimeEvent
	eventKeys map[eventKey]bool

	anomalies map[schedule.AnomalyID]schedule.Anomaly

	snapshots map[schedule.SnapshotID]snapEntry

	locks  map[lockKey]schedule.WeekLock
	extras map[extraKey]schedule.ExtraHoursRecord

	audits []schedule.AuditEntry
}

type eventKey struct {
	staffID schedule.StaffID
	kind    schedule.EventKind
	ts      int64
}

type snapEntry struct {
	snap   schedule.ScheduleSnapshot
	isHead bool
}

type lockKey struct {
	venueID   schedule.VenueID
	weekStart int64
}

type extraKey struct {
	staffID   schedule.StaffID
	venueID   schedule.VenueID
	weekStart int64
}

func NewMemory() *Memory {
	return &Memory{
		eventKeys: make(map[eventKey]bool),
		anomalies: make(map[schedule.AnomalyID]schedule.Anomaly),
		snapshots: make(map[schedule.SnapshotID]snapEntry),
		locks:     make(map[lockKey]schedule.WeekLock),
		extras:    make(map[extraKey]schedule.ExtraHoursRecord),
	}
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (m *Memory) AppendEvent(_ context.Context, ev schedule.TimeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEventLocked(ev)
}

func (m *Memory) appendEventLocked(ev schedule.TimeEvent) error {
	k := eventKey{ev.StaffID, ev.Kind, ev.Timestamp.UnixNano()}
	if m.eventKeys[k] {
		return schedule.ErrDuplicateEvent
	}

	// Insert sorted by timestamp so reads stay chronological.
	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].Timestamp.After(ev.Timestamp)
	})
	m.events = append(m.events, schedule.TimeEvent{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = ev

	m.eventKeys[k] = true
	return nil
}

func (m *Memory) EventByID(_ context.Context, id schedule.EventID) (*schedule.TimeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventByIDLocked(id)
}

func (m *Memory) eventByIDLocked(id schedule.EventID) (*schedule.TimeEvent, error) {
	for i := range m.events {
		if m.events[i].ID == id {
			ev := m.events[i]
			return &ev, nil
		}
	}
	return nil, schedule.ErrNotFound
}

func (m *Memory) EventsByStaff(_ context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.TimeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventsByStaffLocked(staffID, from, to), nil
}

func (m *Memory) eventsByStaffLocked(staffID schedule.StaffID, from, to time.Time) []schedule.TimeEvent {
	var out []schedule.TimeEvent
	for _, ev := range m.events {
		if ev.StaffID != staffID {
			continue
		}
		if ev.Timestamp.Before(from) || ev.Timestamp.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (m *Memory) LastEvent(_ context.Context, staffID schedule.StaffID) (*schedule.TimeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastEventLocked(staffID)
}

func (m *Memory) lastEventLocked(staffID schedule.StaffID) (*schedule.TimeEvent, error) {
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if ev.StaffID != staffID {
			continue
		}
		if ev.Kind != schedule.EventIn && ev.Kind != schedule.EventOut {
			continue
		}
		return &ev, nil
	}
	return nil, nil
}

func (m *Memory) OpenClockIns(_ context.Context, venueID schedule.VenueID, cutoff time.Time) ([]schedule.TimeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openClockInsLocked(venueID, cutoff)
}

func (m *Memory) openClockInsLocked(venueID schedule.VenueID, cutoff time.Time) ([]schedule.TimeEvent, error) {
	// Track the latest IN/OUT per staff within the venue; an IN left
	// open at or before the cutoff is a candidate missing punch.
	open := make(map[schedule.StaffID]schedule.TimeEvent)
	for _, ev := range m.events {
		if ev.VenueID != venueID {
			continue
		}
		switch ev.Kind {
		case schedule.EventIn:
			open[ev.StaffID] = ev
		case schedule.EventOut:
			delete(open, ev.StaffID)
		}
	}

	var out []schedule.TimeEvent
	for _, ev := range open {
		if !ev.Timestamp.After(cutoff) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) SetEventApproval(_ context.Context, id schedule.EventID, approved bool, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setEventApprovalLocked(id, approved, notes)
}

func (m *Memory) setEventApprovalLocked(id schedule.EventID, approved bool, notes string) error {
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].ManagerApproved = approved
			m.events[i].ManagerNotes = notes
			return nil
		}
	}
	return schedule.ErrNotFound
}

func (m *Memory) FlagEventAnomaly(_ context.Context, id schedule.EventID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flagEventAnomalyLocked(id, reason)
}

func (m *Memory) flagEventAnomalyLocked(id schedule.EventID, reason string) error {
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].AnomalyFlag = true
			m.events[i].AnomalyReason = reason
			return nil
		}
	}
	return schedule.ErrNotFound
}

// =============================================================================
// ANOMALY STORE
// =============================================================================

func (m *Memory) SaveAnomaly(_ context.Context, a schedule.Anomaly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAnomalyLocked(a)
}

func (m *Memory) saveAnomalyLocked(a schedule.Anomaly) error {
	m.anomalies[a.ID] = a
	return nil
}

func (m *Memory) AnomalyByID(_ context.Context, id schedule.AnomalyID) (*schedule.Anomaly, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anomalyByIDLocked(id)
}

func (m *Memory) anomalyByIDLocked(id schedule.AnomalyID) (*schedule.Anomaly, error) {
	a, ok := m.anomalies[id]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	return &a, nil
}

func (m *Memory) AnomaliesByVenue(_ context.Context, venueID schedule.VenueID, from, to time.Time, unresolvedOnly bool) ([]schedule.Anomaly, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anomaliesByVenueLocked(venueID, from, to, unresolvedOnly)
}

func (m *Memory) anomaliesByVenueLocked(venueID schedule.VenueID, from, to time.Time, unresolvedOnly bool) ([]schedule.Anomaly, error) {
	var out []schedule.Anomaly
	for _, a := range m.anomalies {
		if a.VenueID != venueID {
			continue
		}
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		if unresolvedOnly && a.IsResolved {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) MarkAnomalyResolved(_ context.Context, a schedule.Anomaly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markAnomalyResolvedLocked(a)
}

func (m *Memory) markAnomalyResolvedLocked(a schedule.Anomaly) error {
	if _, ok := m.anomalies[a.ID]; !ok {
		return schedule.ErrNotFound
	}
	m.anomalies[a.ID] = a
	return nil
}

func (m *Memory) AnomalyExistsForEvent(_ context.Context, eventID schedule.EventID, typ schedule.AnomalyType) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anomalyExistsForEventLocked(eventID, typ)
}

func (m *Memory) anomalyExistsForEventLocked(eventID schedule.EventID, typ schedule.AnomalyType) (bool, error) {
	for _, a := range m.anomalies {
		if a.TimeEventID == eventID && a.Type == typ {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (m *Memory) InsertSnapshot(_ context.Context, snap schedule.ScheduleSnapshot, previousID schedule.SnapshotID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSnapshotLocked(snap, previousID)
}

func (m *Memory) insertSnapshotLocked(snap schedule.ScheduleSnapshot, previousID schedule.SnapshotID) error {
	if previousID != "" {
		prev, ok := m.snapshots[previousID]
		if !ok {
			return schedule.ErrNotFound
		}
		if !prev.isHead {
			return schedule.ErrStaleVersion
		}
		prev.isHead = false
		m.snapshots[previousID] = prev
	}
	m.snapshots[snap.ID] = snapEntry{snap: copySnapshot(snap), isHead: true}
	return nil
}

func (m *Memory) UpdateSnapshot(_ context.Context, snap schedule.ScheduleSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSnapshotLocked(snap)
}

func (m *Memory) updateSnapshotLocked(snap schedule.ScheduleSnapshot) error {
	entry, ok := m.snapshots[snap.ID]
	if !ok {
		return schedule.ErrNotFound
	}
	entry.snap = copySnapshot(snap)
	m.snapshots[snap.ID] = entry
	return nil
}

func (m *Memory) SnapshotByID(_ context.Context, id schedule.SnapshotID) (*schedule.ScheduleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotByIDLocked(id)
}

func (m *Memory) snapshotByIDLocked(id schedule.SnapshotID) (*schedule.ScheduleSnapshot, error) {
	entry, ok := m.snapshots[id]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	snap := copySnapshot(entry.snap)
	return &snap, nil
}

func (m *Memory) HeadSnapshot(_ context.Context, venueID schedule.VenueID, start, end time.Time) (*schedule.ScheduleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headSnapshotLocked(venueID, start, end)
}

func (m *Memory) headSnapshotLocked(venueID schedule.VenueID, start, end time.Time) (*schedule.ScheduleSnapshot, error) {
	for _, entry := range m.snapshots {
		if !entry.isHead {
			continue
		}
		s := entry.snap
		if s.VenueID == venueID && s.StartDate.Equal(start) && s.EndDate.Equal(end) {
			snap := copySnapshot(s)
			return &snap, nil
		}
	}
	return nil, nil
}

func (m *Memory) OverlappingChainExists(_ context.Context, venueID schedule.VenueID, start, end time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlappingChainExistsLocked(venueID, start, end)
}

func (m *Memory) overlappingChainExistsLocked(venueID schedule.VenueID, start, end time.Time) (bool, error) {
	for _, entry := range m.snapshots {
		s := entry.snap
		if s.VenueID != venueID {
			continue
		}
		if !s.StartDate.After(end) && !s.EndDate.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) DeleteDraftSnapshot(_ context.Context, id schedule.SnapshotID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteDraftSnapshotLocked(id)
}

func (m *Memory) deleteDraftSnapshotLocked(id schedule.SnapshotID) error {
	entry, ok := m.snapshots[id]
	if !ok {
		return schedule.ErrNotFound
	}
	delete(m.snapshots, id)

	if prevID := entry.snap.PreviousSnapshotID; prevID != "" {
		if prev, ok := m.snapshots[prevID]; ok {
			prev.isHead = true
			m.snapshots[prevID] = prev
		}
	}
	return nil
}

func (m *Memory) PlannedShifts(_ context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plannedShiftsLocked(staffID, from, to)
}

func (m *Memory) plannedShiftsLocked(staffID schedule.StaffID, from, to time.Time) ([]schedule.Shift, error) {
	var out []schedule.Shift
	for _, entry := range m.snapshots {
		if !entry.isHead || entry.snap.Status == schedule.SnapshotDraft {
			continue
		}
		for _, sh := range entry.snap.Shifts {
			if sh.StaffID != staffID || sh.Status == schedule.ShiftCancelled {
				continue
			}
			if sh.StartTime.Before(from) || sh.StartTime.After(to) {
				continue
			}
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) ShiftByID(_ context.Context, id schedule.ShiftID) (*schedule.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shiftByIDLocked(id)
}

func (m *Memory) shiftByIDLocked(id schedule.ShiftID) (*schedule.Shift, error) {
	for _, entry := range m.snapshots {
		if !entry.isHead {
			continue
		}
		for _, sh := range entry.snap.Shifts {
			if sh.ID == id {
				shift := sh
				return &shift, nil
			}
		}
	}
	return nil, schedule.ErrNotFound
}

// =============================================================================
// WEEK LOCK STORE
// =============================================================================

func (m *Memory) WeekLockFor(_ context.Context, venueID schedule.VenueID, weekStart time.Time) (*schedule.WeekLock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.weekLockForLocked(venueID, weekStart)
}

func (m *Memory) weekLockForLocked(venueID schedule.VenueID, weekStart time.Time) (*schedule.WeekLock, error) {
	lock, ok := m.locks[lockKey{venueID, weekStart.Unix()}]
	if !ok {
		return nil, nil
	}
	return &lock, nil
}

func (m *Memory) SaveWeekLock(_ context.Context, lock schedule.WeekLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveWeekLockLocked(lock)
}

func (m *Memory) saveWeekLockLocked(lock schedule.WeekLock) error {
	m.locks[lockKey{lock.VenueID, lock.WeekStart.Unix()}] = lock
	return nil
}

// =============================================================================
// EXTRA HOURS STORE
// =============================================================================

func (m *Memory) UpsertExtraHours(_ context.Context, rec schedule.ExtraHoursRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertExtraHoursLocked(rec)
}

func (m *Memory) upsertExtraHoursLocked(rec schedule.ExtraHoursRecord) error {
	m.extras[extraKey{rec.StaffID, rec.VenueID, rec.WeekStart.Unix()}] = rec
	return nil
}

func (m *Memory) ExtraHoursFor(_ context.Context, staffID schedule.StaffID, venueID schedule.VenueID, weekStart time.Time) (*schedule.ExtraHoursRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.extraHoursForLocked(staffID, venueID, weekStart)
}

func (m *Memory) extraHoursForLocked(staffID schedule.StaffID, venueID schedule.VenueID, weekStart time.Time) (*schedule.ExtraHoursRecord, error) {
	rec, ok := m.extras[extraKey{staffID, venueID, weekStart.Unix()}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) ExtraHoursByVenueWeek(_ context.Context, venueID schedule.VenueID, weekStart time.Time, unapprovedOnly bool) ([]schedule.ExtraHoursRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.extraHoursByVenueWeekLocked(venueID, weekStart, unapprovedOnly)
}

func (m *Memory) extraHoursByVenueWeekLocked(venueID schedule.VenueID, weekStart time.Time, unapprovedOnly bool) ([]schedule.ExtraHoursRecord, error) {
	var out []schedule.ExtraHoursRecord
	for k, rec := range m.extras {
		if k.venueID != venueID || k.weekStart != weekStart.Unix() {
			continue
		}
		if unapprovedOnly && rec.IsApproved {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	return out, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry schedule.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, venueID schedule.VenueID, from, to time.Time) ([]schedule.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schedule.AuditEntry
	for _, e := range m.audits {
		if e.VenueID != venueID {
			continue
		}
		if e.At.Before(from) || e.At.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn against the store, simulated with a state snapshot
// and rollback on error. The mutex is held for the whole transaction so
// a rollback can never clobber writes committed by another goroutine in
// between; fn therefore runs against a lock-free view and must not call
// back into the locking Memory methods (nested WithTx deadlocks).
func (m *Memory) WithTx(ctx context.Context, fn func(schedule.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.backupLocked()
	if err := fn(&txView{parent: m}); err != nil {
		m.restoreLocked(backup)
		return err
	}
	return nil
}

type memoryBackup struct {
	events    []schedule.TimeEvent
	eventKeys map[eventKey]bool
	anomalies map[schedule.AnomalyID]schedule.Anomaly
	snapshots map[schedule.SnapshotID]snapEntry
	locks     map[lockKey]schedule.WeekLock
	extras    map[extraKey]schedule.ExtraHoursRecord
	audits    []schedule.AuditEntry
}

func (m *Memory) backupLocked() memoryBackup {
	b := memoryBackup{
		events:    append([]schedule.TimeEvent{}, m.events...),
		eventKeys: make(map[eventKey]bool, len(m.eventKeys)),
		anomalies: make(map[schedule.AnomalyID]schedule.Anomaly, len(m.anomalies)),
		snapshots: make(map[schedule.SnapshotID]snapEntry, len(m.snapshots)),
		locks:     make(map[lockKey]schedule.WeekLock, len(m.locks)),
		extras:    make(map[extraKey]schedule.ExtraHoursRecord, len(m.extras)),
		audits:    append([]schedule.AuditEntry{}, m.audits...),
	}
	for k, v := range m.eventKeys {
		b.eventKeys[k] = v
	}
	for k, v := range m.anomalies {
		b.anomalies[k] = v
	}
	for k, v := range m.snapshots {
		b.snapshots[k] = snapEntry{snap: copySnapshot(v.snap), isHead: v.isHead}
	}
	for k, v := range m.locks {
		b.locks[k] = v
	}
	for k, v := range m.extras {
		b.extras[k] = v
	}
	return b
}

func (m *Memory) restoreLocked(b memoryBackup) {
	m.events = b.events
	m.eventKeys = b.eventKeys
	m.anomalies = b.anomalies
	m.snapshots = b.snapshots
	m.locks = b.locks
	m.extras = b.extras
	m.audits = b.audits
}

// txView delegates to the parent's lock-free methods. WithTx already
// holds the mutex while fn runs, so taking it here would deadlock.
type txView struct {
	parent *Memory
}

func (tv *txView) AppendEvent(_ context.Context, ev schedule.TimeEvent) error {
	return tv.parent.appendEventLocked(ev)
}
func (tv *txView) EventByID(_ context.Context, id schedule.EventID) (*schedule.TimeEvent, error) {
	return tv.parent.eventByIDLocked(id)
}
func (tv *txView) EventsByStaff(_ context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.TimeEvent, error) {
	return tv.parent.eventsByStaffLocked(staffID, from, to), nil
}
func (tv *txView) LastEvent(_ context.Context, staffID schedule.StaffID) (*schedule.TimeEvent, error) {
	return tv.parent.lastEventLocked(staffID)
}
func (tv *txView) OpenClockIns(_ context.Context, venueID schedule.VenueID, cutoff time.Time) ([]schedule.TimeEvent, error) {
	return tv.parent.openClockInsLocked(venueID, cutoff)
}
func (tv *txView) SetEventApproval(_ context.Context, id schedule.EventID, approved bool, notes string) error {
	return tv.parent.setEventApprovalLocked(id, approved, notes)
}
func (tv *txView) FlagEventAnomaly(_ context.Context, id schedule.EventID, reason string) error {
	return tv.parent.flagEventAnomalyLocked(id, reason)
}
func (tv *txView) SaveAnomaly(_ context.Context, a schedule.Anomaly) error {
	return tv.parent.saveAnomalyLocked(a)
}
func (tv *txView) AnomalyByID(_ context.Context, id schedule.AnomalyID) (*schedule.Anomaly, error) {
	return tv.parent.anomalyByIDLocked(id)
}
func (tv *txView) AnomaliesByVenue(_ context.Context, venueID schedule.VenueID, from, to time.Time, unresolvedOnly bool) ([]schedule.Anomaly, error) {
	return tv.parent.anomaliesByVenueLocked(venueID, from, to, unresolvedOnly)
}
func (tv *txView) MarkAnomalyResolved(_ context.Context, a schedule.Anomaly) error {
	return tv.parent.markAnomalyResolvedLocked(a)
}
func (tv *txView) AnomalyExistsForEvent(_ context.Context, eventID schedule.EventID, typ schedule.AnomalyType) (bool, error) {
	return tv.parent.anomalyExistsForEventLocked(eventID, typ)
}
func (tv *txView) InsertSnapshot(_ context.Context, snap schedule.ScheduleSnapshot, previousID schedule.SnapshotID) error {
	return tv.parent.insertSnapshotLocked(snap, previousID)
}
func (tv *txView) UpdateSnapshot(_ context.Context, snap schedule.ScheduleSnapshot) error {
	return tv.parent.updateSnapshotLocked(snap)
}
func (tv *txView) SnapshotByID(_ context.Context, id schedule.SnapshotID) (*schedule.ScheduleSnapshot, error) {
	return tv.parent.snapshotByIDLocked(id)
}
func (tv *txView) HeadSnapshot(_ context.Context, venueID schedule.VenueID, start, end time.Time) (*schedule.ScheduleSnapshot, error) {
	return tv.parent.headSnapshotLocked(venueID, start, end)
}
func (tv *txView) OverlappingChainExists(_ context.Context, venueID schedule.VenueID, start, end time.Time) (bool, error) {
	return tv.parent.overlappingChainExistsLocked(venueID, start, end)
}
func (tv *txView) DeleteDraftSnapshot(_ context.Context, id schedule.SnapshotID) error {
	return tv.parent.deleteDraftSnapshotLocked(id)
}
func (tv *txView) PlannedShifts(_ context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.Shift, error) {
	return tv.parent.plannedShiftsLocked(staffID, from, to)
}
func (tv *txView) ShiftByID(_ context.Context, id schedule.ShiftID) (*schedule.Shift, error) {
	return tv.parent.shiftByIDLocked(id)
}
func (tv *txView) WeekLockFor(_ context.Context, venueID schedule.VenueID, weekStart time.Time) (*schedule.WeekLock, error) {
	return tv.parent.weekLockForLocked(venueID, weekStart)
}
func (tv *txView) SaveWeekLock(_ context.Context, lock schedule.WeekLock) error {
	return tv.parent.saveWeekLockLocked(lock)
}
func (tv *txView) UpsertExtraHours(_ context.Context, rec schedule.ExtraHoursRecord) error {
	return tv.parent.upsertExtraHoursLocked(rec)
}
func (tv *txView) ExtraHoursFor(_ context.Context, staffID schedule.StaffID, venueID schedule.VenueID, weekStart time.Time) (*schedule.ExtraHoursRecord, error) {
	return tv.parent.extraHoursForLocked(staffID, venueID, weekStart)
}
func (tv *txView) ExtraHoursByVenueWeek(_ context.Context, venueID schedule.VenueID, weekStart time.Time, unapprovedOnly bool) ([]schedule.ExtraHoursRecord, error) {
	return tv.parent.extraHoursByVenueWeekLocked(venueID, weekStart, unapprovedOnly)
}

func copySnapshot(s schedule.ScheduleSnapshot) schedule.ScheduleSnapshot {
	out := s
	out.Shifts = append([]schedule.Shift{}, s.Shifts...)
	return out
}
