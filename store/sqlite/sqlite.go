/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements schedule.TxStore and schedule.AuditLog using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  schedule.TxStore:  Clock ledger, anomalies, snapshot chains, week
                     locks, extra hours, with transaction support
  schedule.AuditLog: Append-only audit trail

APPEND-ONLY ENFORCEMENT:
  The time_events table has no general UPDATE and no DELETE. The two
  narrow exceptions are the manager-adjudication columns (set once by
  anomaly resolution) and the anomaly-flag columns (set by the
  missing-punch sweep).

KEY TABLES:
  time_events:     Immutable clock ledger
  anomalies:       Deviations awaiting manager adjudication
  snapshots:       Versioned schedule plans with head tracking
  snapshot_shifts: Shifts owned by each snapshot version
  week_locks:      One row per venue+ISO-week, created lazily
  extra_hours:     Weekly worked-beyond-planned records
  audit_log:       Who did what when

HEAD TRACKING:
  Each snapshot chain has exactly one is_head row. InsertSnapshot
  demotes the stated predecessor and promotes the new version in one
  transaction; a demote that affects zero rows means somebody else got
  there first and the insert fails with StaleVersionError.

INDEXES:
  - idx_events_unique: (staff_id, kind, timestamp) makes punch retries safe
  - idx_events_staff_time: status derivation and interval pairing (hot path)
  - idx_snapshots_chain_version: one row per chain version
  - idx_locks_unique: one lock row per venue+week
  - idx_extra_unique: one extra-hours row per staff+venue+week

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/shifts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/brigade/shift-engine/schedule"
)

// Store implements schedule.TxStore and schedule.AuditLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ schedule.TxStore = (*Store)(nil)
var _ schedule.AuditLog = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pool connection gets its own in-memory database, so the
		// pool must stay at one connection or tables vanish mid-request.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Time events (append-only clock ledger)
	CREATE TABLE IF NOT EXISTS time_events (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL,
		venue_id TEXT NOT NULL,
		shift_id TEXT,
		timestamp TEXT NOT NULL,
		kind TEXT NOT NULL,
		source TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		anomaly_flag BOOLEAN NOT NULL DEFAULT FALSE,
		anomaly_reason TEXT NOT NULL DEFAULT '',
		manager_approved BOOLEAN NOT NULL DEFAULT FALSE,
		manager_notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- CRITICAL: makes a retried punch a detectable duplicate instead of
	-- a second ledger entry
	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_unique
		ON time_events(staff_id, kind, timestamp);

	-- Status derivation and interval pairing (hot path)
	CREATE INDEX IF NOT EXISTS idx_events_staff_time
		ON time_events(staff_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_venue_time
		ON time_events(venue_id, timestamp);

	-- Anomalies
	CREATE TABLE IF NOT EXISTS anomalies (
		id TEXT PRIMARY KEY,
		time_event_id TEXT NOT NULL,
		staff_id TEXT NOT NULL,
		venue_id TEXT NOT NULL,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		diff_minutes INTEGER NOT NULL DEFAULT 0,
		is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		resolved_by TEXT NOT NULL DEFAULT '',
		resolved_at TEXT,
		resolution_notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_anomalies_venue_date
		ON anomalies(venue_id, date);
	CREATE INDEX IF NOT EXISTS idx_anomalies_event_type
		ON anomalies(time_event_id, type);

	-- Snapshots (version chains with head tracking)
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		venue_id TEXT NOT NULL,
		snapshot_date TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		previous_snapshot_id TEXT NOT NULL DEFAULT '',
		checksum TEXT NOT NULL,
		total_shifts INTEGER NOT NULL DEFAULT 0,
		total_hours TEXT NOT NULL DEFAULT '0',
		is_head BOOLEAN NOT NULL DEFAULT FALSE,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		published_by TEXT NOT NULL DEFAULT '',
		published_at TEXT
	);

	-- One row per chain version
	CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_chain_version
		ON snapshots(venue_id, start_date, end_date, version);
	CREATE INDEX IF NOT EXISTS idx_snapshots_head
		ON snapshots(venue_id, is_head);

	CREATE TABLE IF NOT EXISTS snapshot_shifts (
		snapshot_id TEXT NOT NULL,
		shift_id TEXT NOT NULL,
		staff_id TEXT NOT NULL,
		phase_id TEXT NOT NULL DEFAULT '',
		phase_name TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (snapshot_id, shift_id)
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_staff_time
		ON snapshot_shifts(staff_id, start_time);

	-- Week locks (one per venue+ISO-week, created lazily)
	CREATE TABLE IF NOT EXISTS week_locks (
		id TEXT PRIMARY KEY,
		venue_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		week_end TEXT NOT NULL,
		status TEXT NOT NULL,
		locked_by TEXT NOT NULL DEFAULT '',
		locked_at TEXT,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_locks_unique
		ON week_locks(venue_id, week_start);

	-- Extra hours (one per staff+venue+week)
	CREATE TABLE IF NOT EXISTS extra_hours (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL,
		venue_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		week_end TEXT NOT NULL,
		planned_hours TEXT NOT NULL DEFAULT '0',
		actual_hours TEXT NOT NULL DEFAULT '0',
		extra_hours TEXT NOT NULL DEFAULT '0',
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		disposition TEXT NOT NULL DEFAULT '',
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_extra_unique
		ON extra_hours(staff_id, venue_id, week_start);
	CREATE INDEX IF NOT EXISTS idx_extra_venue_week
		ON extra_hours(venue_id, week_start);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		venue_id TEXT NOT NULL DEFAULT '',
		staff_id TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_venue_at
		ON audit_log(venue_id, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (schedule.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store schedule.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every Store method against an open transaction.
type txStore struct {
	tx *sql.Tx
}

var _ schedule.Store = (*txStore)(nil)

func (ts *txStore) AppendEvent(ctx context.Context, ev schedule.TimeEvent) error {
	return appendEvent(ctx, ts.tx, ev)
}
func (ts *txStore) EventByID(ctx context.Context, id schedule.EventID) (*schedule.TimeEvent, error) {
	return eventByID(ctx, ts.tx, id)
}
func (ts *txStore) EventsByStaff(ctx context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.TimeEvent, error) {
	return eventsByStaff(ctx, ts.tx, staffID, from, to)
}
func (ts *txStore) LastEvent(ctx context.Context, staffID schedule.StaffID) (*schedule.TimeEvent, error) {
	return lastEvent(ctx, ts.tx, staffID)
}
func (ts *txStore) OpenClockIns(ctx context.Context, venueID schedule.VenueID, cutoff time.Time) ([]schedule.TimeEvent, error) {
	return openClockIns(ctx, ts.tx, venueID, cutoff)
}
func (ts *txStore) SetEventApproval(ctx context.Context, id schedule.EventID, approved bool, notes string) error {
	return setEventApproval(ctx, ts.tx, id, approved, notes)
}
func (ts *txStore) FlagEventAnomaly(ctx context.Context, id schedule.EventID, reason string) error {
	return flagEventAnomaly(ctx, ts.tx, id, reason)
}
func (ts *txStore) SaveAnomaly(ctx context.Context, a schedule.Anomaly) error {
	return saveAnomaly(ctx, ts.tx, a)
}
func (ts *txStore) AnomalyByID(ctx context.Context, id schedule.AnomalyID) (*schedule.Anomaly, error) {
	return anomalyByID(ctx, ts.tx, id)
}
func (ts *txStore) AnomaliesByVenue(ctx context.Context, venueID schedule.VenueID, from, to time.Time, unresolvedOnly bool) ([]schedule.Anomaly, error) {
	return anomaliesByVenue(ctx, ts.tx, venueID, from, to, unresolvedOnly)
}
func (ts *txStore) MarkAnomalyResolved(ctx context.Context, a schedule.Anomaly) error {
	return markAnomalyResolved(ctx, ts.tx, a)
}
func (ts *txStore) AnomalyExistsForEvent(ctx context.Context, eventID schedule.EventID, typ schedule.AnomalyType) (bool, error) {
	return anomalyExistsForEvent(ctx, ts.tx, eventID, typ)
}
func (ts *txStore) InsertSnapshot(ctx context.Context, snap schedule.ScheduleSnapshot, previousID schedule.SnapshotID) error {
	return insertSnapshot(ctx, ts.tx, snap, previousID)
}
func (ts *txStore) UpdateSnapshot(ctx context.Context, snap schedule.ScheduleSnapshot) error {
	return updateSnapshot(ctx, ts.tx, snap)
}
func (ts *txStore) SnapshotByID(ctx context.Context, id schedule.SnapshotID) (*schedule.ScheduleSnapshot, error) {
	return snapshotByID(ctx, ts.tx, id)
}
func (ts *txStore) HeadSnapshot(ctx context.Context, venueID schedule.VenueID, start, end time.Time) (*schedule.ScheduleSnapshot, error) {
	return headSnapshot(ctx, ts.tx, venueID, start, end)
}
func (ts *txStore) OverlappingChainExists(ctx context.Context, venueID schedule.VenueID, start, end time.Time) (bool, error) {
	return overlappingChainExists(ctx, ts.tx, venueID, start, end)
}
func (ts *txStore) DeleteDraftSnapshot(ctx context.Context, id schedule.SnapshotID) error {
	return deleteDraftSnapshot(ctx, ts.tx, id)
}
func (ts *txStore) PlannedShifts(ctx context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.Shift, error) {
	return plannedShifts(ctx, ts.tx, staffID, from, to)
}
func (ts *txStore) ShiftByID(ctx context.Context, id schedule.ShiftID) (*schedule.Shift, error) {
	return shiftByID(ctx, ts.tx, id)
}
func (ts *txStore) WeekLockFor(ctx context.Context, venueID schedule.VenueID, weekStart time.Time) (*schedule.WeekLock, error) {
	return weekLockFor(ctx, ts.tx, venueID, weekStart)
}
func (ts *txStore) SaveWeekLock(ctx context.Context, lock schedule.WeekLock) error {
	return saveWeekLock(ctx, ts.tx, lock)
}
func (ts *txStore) UpsertExtraHours(ctx context.Context, rec schedule.ExtraHoursRecord) error {
	return upsertExtraHours(ctx, ts.tx, rec)
}
func (ts *txStore) ExtraHoursFor(ctx context.Context, staffID schedule.StaffID, venueID schedule.VenueID, weekStart time.Time) (*schedule.ExtraHoursRecord, error) {
	return extraHoursFor(ctx, ts.tx, staffID, venueID, weekStart)
}
func (ts *txStore) ExtraHoursByVenueWeek(ctx context.Context, venueID schedule.VenueID, weekStart time.Time, unapprovedOnly bool) ([]schedule.ExtraHoursRecord, error) {
	return extraHoursByVenueWeek(ctx, ts.tx, venueID, weekStart, unapprovedOnly)
}

// =============================================================================
// EVENT STORE (direct, non-transactional entry points)
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, ev schedule.TimeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEvent(ctx, s.db, ev)
}

func (s *Store) EventByID(ctx context.Context, id schedule.EventID) (*schedule.TimeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return eventByID(ctx, s.db, id)
}

func (s *Store) EventsByStaff(ctx context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.TimeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return eventsByStaff(ctx, s.db, staffID, from, to)
}

func (s *Store) LastEvent(ctx context.Context, staffID schedule.StaffID) (*schedule.TimeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastEvent(ctx, s.db, staffID)
}

func (s *Store) OpenClockIns(ctx context.Context, venueID schedule.VenueID, cutoff time.Time) ([]schedule.TimeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return openClockIns(ctx, s.db, venueID, cutoff)
}

// ActiveVenues returns every venue with clock events since the given
// time. The background sweep uses it to know which venues to visit.
func (s *Store) ActiveVenues(ctx context.Context, since time.Time) ([]schedule.VenueID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT venue_id FROM time_events WHERE timestamp >= ? ORDER BY venue_id`,
		fmtTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query active venues: %w", err)
	}
	defer rows.Close()

	var venues []schedule.VenueID
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		venues = append(venues, schedule.VenueID(v))
	}
	return venues, rows.Err()
}

func (s *Store) SetEventApproval(ctx context.Context, id schedule.EventID, approved bool, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setEventApproval(ctx, s.db, id, approved, notes)
}

func (s *Store) FlagEventAnomaly(ctx context.Context, id schedule.EventID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flagEventAnomaly(ctx, s.db, id, reason)
}

func appendEvent(ctx context.Context, db dbtx, ev schedule.TimeEvent) error {
	query := `
		INSERT INTO time_events
		(id, staff_id, venue_id, shift_id, timestamp, kind, source, latitude, longitude,
		 anomaly_flag, anomaly_reason, manager_approved, manager_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		ev.ID, ev.StaffID, ev.VenueID, ev.ShiftID,
		fmtTime(ev.Timestamp), ev.Kind, ev.Source,
		ev.Latitude, ev.Longitude,
		ev.AnomalyFlag, ev.AnomalyReason,
		ev.ManagerApproved, ev.ManagerNotes,
		fmtTime(ev.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("event for staff %s at %s: %w",
				ev.StaffID, ev.Timestamp.Format(time.RFC3339), schedule.ErrDuplicateEvent)
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const eventColumns = `id, staff_id, venue_id, shift_id, timestamp, kind, source,
	latitude, longitude, anomaly_flag, anomaly_reason, manager_approved, manager_notes, created_at`

func eventByID(ctx context.Context, db dbtx, id schedule.EventID) (*schedule.TimeEvent, error) {
	events, err := queryEvents(ctx, db,
		`SELECT `+eventColumns+` FROM time_events WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event %s: %w", id, schedule.ErrNotFound)
	}
	return &events[0], nil
}

func eventsByStaff(ctx context.Context, db dbtx, staffID schedule.StaffID, from, to time.Time) ([]schedule.TimeEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM time_events
		WHERE staff_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, created_at ASC
	`
	return queryEvents(ctx, db, query, staffID, fmtTime(from), fmtTime(to))
}

func lastEvent(ctx context.Context, db dbtx, staffID schedule.StaffID) (*schedule.TimeEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM time_events
		WHERE staff_id = ? AND kind IN ('IN', 'OUT')
		ORDER BY timestamp DESC
		LIMIT 1
	`
	events, err := queryEvents(ctx, db, query, staffID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func openClockIns(ctx context.Context, db dbtx, venueID schedule.VenueID, cutoff time.Time) ([]schedule.TimeEvent, error) {
	// An IN is open when no later OUT exists for the same staff member.
	query := `
		SELECT ` + eventColumns + `
		FROM time_events e
		WHERE e.venue_id = ? AND e.kind = 'IN' AND e.timestamp <= ?
		  AND NOT EXISTS (
			SELECT 1 FROM time_events o
			WHERE o.staff_id = e.staff_id AND o.kind = 'OUT' AND o.timestamp > e.timestamp
		  )
		ORDER BY e.timestamp ASC
	`
	return queryEvents(ctx, db, query, venueID, fmtTime(cutoff))
}

func setEventApproval(ctx context.Context, db dbtx, id schedule.EventID, approved bool, notes string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE time_events SET manager_approved = ?, manager_notes = ? WHERE id = ?`,
		approved, notes, id)
	if err != nil {
		return fmt.Errorf("failed to set event approval: %w", err)
	}
	return requireRow(res, "event", string(id))
}

func flagEventAnomaly(ctx context.Context, db dbtx, id schedule.EventID, reason string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE time_events SET anomaly_flag = TRUE, anomaly_reason = ? WHERE id = ?`,
		reason, id)
	if err != nil {
		return fmt.Errorf("failed to flag event: %w", err)
	}
	return requireRow(res, "event", string(id))
}

func queryEvents(ctx context.Context, db dbtx, query string, args ...any) ([]schedule.TimeEvent, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []schedule.TimeEvent
	for rows.Next() {
		var ev schedule.TimeEvent
		var timestamp, createdAt string
		var lat, lng sql.NullFloat64
		if err := rows.Scan(
			&ev.ID, &ev.StaffID, &ev.VenueID, &ev.ShiftID,
			&timestamp, &ev.Kind, &ev.Source, &lat, &lng,
			&ev.AnomalyFlag, &ev.AnomalyReason,
			&ev.ManagerApproved, &ev.ManagerNotes, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Timestamp = parseTime(timestamp)
		ev.CreatedAt = parseTime(createdAt)
		if lat.Valid {
			v := lat.Float64
			ev.Latitude = &v
		}
		if lng.Valid {
			v := lng.Float64
			ev.Longitude = &v
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// ANOMALY STORE
// =============================================================================

func (s *Store) SaveAnomaly(ctx context.Context, a schedule.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAnomaly(ctx, s.db, a)
}

func (s *Store) AnomalyByID(ctx context.Context, id schedule.AnomalyID) (*schedule.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return anomalyByID(ctx, s.db, id)
}

func (s *Store) AnomaliesByVenue(ctx context.Context, venueID schedule.VenueID, from, to time.Time, unresolvedOnly bool) ([]schedule.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return anomaliesByVenue(ctx, s.db, venueID, from, to, unresolvedOnly)
}

func (s *Store) MarkAnomalyResolved(ctx context.Context, a schedule.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markAnomalyResolved(ctx, s.db, a)
}

func (s *Store) AnomalyExistsForEvent(ctx context.Context, eventID schedule.EventID, typ schedule.AnomalyType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return anomalyExistsForEvent(ctx, s.db, eventID, typ)
}

func saveAnomaly(ctx context.Context, db dbtx, a schedule.Anomaly) error {
	query := `
		INSERT INTO anomalies
		(id, time_event_id, staff_id, venue_id, date, type, severity, description,
		 diff_minutes, is_resolved, approved, resolved_by, resolved_at, resolution_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		a.ID, a.TimeEventID, a.StaffID, a.VenueID, fmtTime(a.Date),
		a.Type, a.Severity, a.Description, a.DiffMinutes,
		a.IsResolved, a.Approved, a.ResolvedBy, fmtTimePtr(a.ResolvedAt),
		a.ResolutionNotes, fmtTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save anomaly: %w", err)
	}
	return nil
}

const anomalyColumns = `id, time_event_id, staff_id, venue_id, date, type, severity,
	description, diff_minutes, is_resolved, approved, resolved_by, resolved_at,
	resolution_notes, created_at`

func anomalyByID(ctx context.Context, db dbtx, id schedule.AnomalyID) (*schedule.Anomaly, error) {
	anomalies, err := queryAnomalies(ctx, db,
		`SELECT `+anomalyColumns+` FROM anomalies WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(anomalies) == 0 {
		return nil, fmt.Errorf("anomaly %s: %w", id, schedule.ErrNotFound)
	}
	return &anomalies[0], nil
}

func anomaliesByVenue(ctx context.Context, db dbtx, venueID schedule.VenueID, from, to time.Time, unresolvedOnly bool) ([]schedule.Anomaly, error) {
	query := `
		SELECT ` + anomalyColumns + `
		FROM anomalies
		WHERE venue_id = ? AND date >= ? AND date <= ?
	`
	if unresolvedOnly {
		query += ` AND is_resolved = FALSE`
	}
	query += ` ORDER BY date ASC, created_at ASC`
	return queryAnomalies(ctx, db, query, venueID, fmtTime(from), fmtTime(to))
}

func markAnomalyResolved(ctx context.Context, db dbtx, a schedule.Anomaly) error {
	res, err := db.ExecContext(ctx, `
		UPDATE anomalies
		SET is_resolved = ?, approved = ?, resolved_by = ?, resolved_at = ?, resolution_notes = ?
		WHERE id = ?`,
		a.IsResolved, a.Approved, a.ResolvedBy, fmtTimePtr(a.ResolvedAt), a.ResolutionNotes, a.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve anomaly: %w", err)
	}
	return requireRow(res, "anomaly", string(a.ID))
}

func anomalyExistsForEvent(ctx context.Context, db dbtx, eventID schedule.EventID, typ schedule.AnomalyType) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM anomalies WHERE time_event_id = ? AND type = ?`,
		eventID, typ,
	).Scan(&count)
	return count > 0, err
}

func queryAnomalies(ctx context.Context, db dbtx, query string, args ...any) ([]schedule.Anomaly, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []schedule.Anomaly
	for rows.Next() {
		var a schedule.Anomaly
		var date, createdAt string
		var resolvedAt sql.NullString
		if err := rows.Scan(
			&a.ID, &a.TimeEventID, &a.StaffID, &a.VenueID, &date,
			&a.Type, &a.Severity, &a.Description, &a.DiffMinutes,
			&a.IsResolved, &a.Approved, &a.ResolvedBy, &resolvedAt,
			&a.ResolutionNotes, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		a.Date = parseTime(date)
		a.CreatedAt = parseTime(createdAt)
		a.ResolvedAt = parseTimePtr(resolvedAt)
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (s *Store) InsertSnapshot(ctx context.Context, snap schedule.ScheduleSnapshot, previousID schedule.SnapshotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Head demotion and insert must be atomic even outside WithTx.
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertSnapshot(ctx, sqlTx, snap, previousID); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) UpdateSnapshot(ctx context.Context, snap schedule.ScheduleSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := updateSnapshot(ctx, sqlTx, snap); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) SnapshotByID(ctx context.Context, id schedule.SnapshotID) (*schedule.ScheduleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotByID(ctx, s.db, id)
}

func (s *Store) HeadSnapshot(ctx context.Context, venueID schedule.VenueID, start, end time.Time) (*schedule.ScheduleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return headSnapshot(ctx, s.db, venueID, start, end)
}

func (s *Store) OverlappingChainExists(ctx context.Context, venueID schedule.VenueID, start, end time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return overlappingChainExists(ctx, s.db, venueID, start, end)
}

func (s *Store) DeleteDraftSnapshot(ctx context.Context, id schedule.SnapshotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := deleteDraftSnapshot(ctx, sqlTx, id); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) PlannedShifts(ctx context.Context, staffID schedule.StaffID, from, to time.Time) ([]schedule.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return plannedShifts(ctx, s.db, staffID, from, to)
}

func (s *Store) ShiftByID(ctx context.Context, id schedule.ShiftID) (*schedule.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return shiftByID(ctx, s.db, id)
}

func insertSnapshot(ctx context.Context, db dbtx, snap schedule.ScheduleSnapshot, previousID schedule.SnapshotID) error {
	if previousID != "" {
		// Demoting zero rows means the stated predecessor is no longer
		// head: a concurrent writer won.
		res, err := db.ExecContext(ctx,
			`UPDATE snapshots SET is_head = FALSE WHERE id = ? AND is_head = TRUE`,
			previousID)
		if err != nil {
			return fmt.Errorf("failed to demote head: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			head, _ := headSnapshot(ctx, db, snap.VenueID, snap.StartDate, snap.EndDate)
			stale := &schedule.StaleVersionError{PreviousID: previousID}
			if head != nil {
				stale.HeadID = head.ID
				stale.HeadVersion = head.Version
			}
			return stale
		}
	}

	query := `
		INSERT INTO snapshots
		(id, venue_id, snapshot_date, start_date, end_date, status, version,
		 previous_snapshot_id, checksum, total_shifts, total_hours, is_head,
		 created_by, created_at, published_by, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		snap.ID, snap.VenueID, fmtTime(snap.SnapshotDate),
		fmtTime(snap.StartDate), fmtTime(snap.EndDate),
		snap.Status, snap.Version, snap.PreviousSnapshotID, snap.Checksum,
		snap.TotalShifts, snap.TotalHours.String(),
		snap.CreatedBy, fmtTime(snap.CreatedAt),
		snap.PublishedBy, fmtTimePtr(snap.PublishedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("snapshot version %d for venue %s: %w",
				snap.Version, snap.VenueID, schedule.ErrConflict)
		}
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return insertShifts(ctx, db, snap.ID, snap.Shifts)
}

func updateSnapshot(ctx context.Context, db dbtx, snap schedule.ScheduleSnapshot) error {
	res, err := db.ExecContext(ctx, `
		UPDATE snapshots
		SET status = ?, checksum = ?, total_shifts = ?, total_hours = ?,
		    published_by = ?, published_at = ?
		WHERE id = ?`,
		snap.Status, snap.Checksum, snap.TotalShifts, snap.TotalHours.String(),
		snap.PublishedBy, fmtTimePtr(snap.PublishedAt), snap.ID)
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	if err := requireRow(res, "snapshot", string(snap.ID)); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM snapshot_shifts WHERE snapshot_id = ?`, snap.ID); err != nil {
		return fmt.Errorf("failed to replace shifts: %w", err)
	}
	return insertShifts(ctx, db, snap.ID, snap.Shifts)
}

func insertShifts(ctx context.Context, db dbtx, snapID schedule.SnapshotID, shifts []schedule.Shift) error {
	for _, sh := range shifts {
		_, err := db.ExecContext(ctx, `
			INSERT INTO snapshot_shifts
			(snapshot_id, shift_id, staff_id, phase_id, phase_name, start_time, end_time, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snapID, sh.ID, sh.StaffID, sh.PhaseID, sh.PhaseName,
			fmtTime(sh.StartTime), fmtTime(sh.EndTime), sh.Status)
		if err != nil {
			return fmt.Errorf("failed to insert shift: %w", err)
		}
	}
	return nil
}

const snapshotColumns = `id, venue_id, snapshot_date, start_date, end_date, status, version,
	previous_snapshot_id, checksum, total_shifts, total_hours, created_by, created_at,
	published_by, published_at`

func snapshotByID(ctx context.Context, db dbtx, id schedule.SnapshotID) (*schedule.ScheduleSnapshot, error) {
	snaps, err := querySnapshots(ctx, db,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("snapshot %s: %w", id, schedule.ErrNotFound)
	}
	return &snaps[0], nil
}

func headSnapshot(ctx context.Context, db dbtx, venueID schedule.VenueID, start, end time.Time) (*schedule.ScheduleSnapshot, error) {
	snaps, err := querySnapshots(ctx, db, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE venue_id = ? AND start_date = ? AND end_date = ? AND is_head = TRUE`,
		venueID, fmtTime(start), fmtTime(end))
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

func overlappingChainExists(ctx context.Context, db dbtx, venueID schedule.VenueID, start, end time.Time) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM snapshots
		WHERE venue_id = ? AND is_head = TRUE AND start_date <= ? AND end_date >= ?`,
		venueID, fmtTime(end), fmtTime(start),
	).Scan(&count)
	return count > 0, err
}

func deleteDraftSnapshot(ctx context.Context, db dbtx, id schedule.SnapshotID) error {
	var status, previousID string
	err := db.QueryRowContext(ctx,
		`SELECT status, previous_snapshot_id FROM snapshots WHERE id = ?`, id,
	).Scan(&status, &previousID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("snapshot %s: %w", id, schedule.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if schedule.SnapshotStatus(status) != schedule.SnapshotDraft {
		return &schedule.StateError{Entity: "snapshot", From: status, Op: "delete"}
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM snapshot_shifts WHERE snapshot_id = ?`, id); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return err
	}
	if previousID != "" {
		if _, err := db.ExecContext(ctx,
			`UPDATE snapshots SET is_head = TRUE WHERE id = ?`, previousID); err != nil {
			return err
		}
	}
	return nil
}

func plannedShifts(ctx context.Context, db dbtx, staffID schedule.StaffID, from, to time.Time) ([]schedule.Shift, error) {
	query := `
		SELECT sh.shift_id, sh.staff_id, sh.phase_id, sh.phase_name, sh.start_time, sh.end_time, sh.status
		FROM snapshot_shifts sh
		JOIN snapshots s ON s.id = sh.snapshot_id
		WHERE s.is_head = TRUE
		  AND s.status IN ('PUBLISHED', 'LOCKED', 'ARCHIVED')
		  AND sh.staff_id = ?
		  AND sh.status != 'CANCELLED'
		  AND sh.start_time >= ? AND sh.start_time <= ?
		ORDER BY sh.start_time ASC
	`
	return queryShifts(ctx, db, query, staffID, fmtTime(from), fmtTime(to))
}

func shiftByID(ctx context.Context, db dbtx, id schedule.ShiftID) (*schedule.Shift, error) {
	query := `
		SELECT sh.shift_id, sh.staff_id, sh.phase_id, sh.phase_name, sh.start_time, sh.end_time, sh.status
		FROM snapshot_shifts sh
		JOIN snapshots s ON s.id = sh.snapshot_id
		WHERE s.is_head = TRUE AND sh.shift_id = ?
		LIMIT 1
	`
	shifts, err := queryShifts(ctx, db, query, id)
	if err != nil {
		return nil, err
	}
	if len(shifts) == 0 {
		return nil, fmt.Errorf("shift %s: %w", id, schedule.ErrNotFound)
	}
	return &shifts[0], nil
}

func querySnapshots(ctx context.Context, db dbtx, query string, args ...any) ([]schedule.ScheduleSnapshot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []schedule.ScheduleSnapshot
	for rows.Next() {
		var snap schedule.ScheduleSnapshot
		var snapDate, startDate, endDate, createdAt, totalHours string
		var publishedAt sql.NullString
		if err := rows.Scan(
			&snap.ID, &snap.VenueID, &snapDate, &startDate, &endDate,
			&snap.Status, &snap.Version, &snap.PreviousSnapshotID, &snap.Checksum,
			&snap.TotalShifts, &totalHours, &snap.CreatedBy, &createdAt,
			&snap.PublishedBy, &publishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.SnapshotDate = parseTime(snapDate)
		snap.StartDate = parseTime(startDate)
		snap.EndDate = parseTime(endDate)
		snap.CreatedAt = parseTime(createdAt)
		snap.PublishedAt = parseTimePtr(publishedAt)
		snap.TotalHours, _ = decimal.NewFromString(totalHours)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range snaps {
		shifts, err := queryShifts(ctx, db, `
			SELECT shift_id, staff_id, phase_id, phase_name, start_time, end_time, status
			FROM snapshot_shifts WHERE snapshot_id = ?
			ORDER BY start_time ASC`, snaps[i].ID)
		if err != nil {
			return nil, err
		}
		snaps[i].Shifts = shifts
	}
	return snaps, nil
}

func queryShifts(ctx context.Context, db dbtx, query string, args ...any) ([]schedule.Shift, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []schedule.Shift
	for rows.Next() {
		var sh schedule.Shift
		var start, end string
		if err := rows.Scan(&sh.ID, &sh.StaffID, &sh.PhaseID, &sh.PhaseName,
			&start, &end, &sh.Status); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		sh.StartTime = parseTime(start)
		sh.EndTime = parseTime(end)
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

// =============================================================================
// WEEK LOCK STORE
// =============================================================================

func (s *Store) WeekLockFor(ctx context.Context, venueID schedule.VenueID, weekStart time.Time) (*schedule.WeekLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return weekLockFor(ctx, s.db, venueID, weekStart)
}

func (s *Store) SaveWeekLock(ctx context.Context, lock schedule.WeekLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveWeekLock(ctx, s.db, lock)
}

func weekLockFor(ctx context.Context, db dbtx, venueID schedule.VenueID, weekStart time.Time) (*schedule.WeekLock, error) {
	var lock schedule.WeekLock
	var start, end string
	var lockedAt sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT id, venue_id, week_start, week_end, status, locked_by, locked_at, notes
		FROM week_locks WHERE venue_id = ? AND week_start = ?`,
		venueID, fmtTime(weekStart),
	).Scan(&lock.ID, &lock.VenueID, &start, &end, &lock.Status,
		&lock.LockedBy, &lockedAt, &lock.Notes)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query week lock: %w", err)
	}

	lock.WeekStart = parseTime(start)
	lock.WeekEnd = parseTime(end)
	lock.LockedAt = parseTimePtr(lockedAt)
	return &lock, nil
}

func saveWeekLock(ctx context.Context, db dbtx, lock schedule.WeekLock) error {
	query := `
		INSERT INTO week_locks (id, venue_id, week_start, week_end, status, locked_by, locked_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue_id, week_start) DO UPDATE SET
			status = excluded.status,
			locked_by = excluded.locked_by,
			locked_at = excluded.locked_at,
			notes = excluded.notes
	`
	_, err := db.ExecContext(ctx, query,
		lock.ID, lock.VenueID, fmtTime(lock.WeekStart), fmtTime(lock.WeekEnd),
		lock.Status, lock.LockedBy, fmtTimePtr(lock.LockedAt), lock.Notes)
	if err != nil {
		return fmt.Errorf("failed to save week lock: %w", err)
	}
	return nil
}

// =============================================================================
// EXTRA HOURS STORE
// =============================================================================

func (s *Store) UpsertExtraHours(ctx context.Context, rec schedule.ExtraHoursRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertExtraHours(ctx, s.db, rec)
}

func (s *Store) ExtraHoursFor(ctx context.Context, staffID schedule.StaffID, venueID schedule.VenueID, weekStart time.Time) (*schedule.ExtraHoursRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return extraHoursFor(ctx, s.db, staffID, venueID, weekStart)
}

func (s *Store) ExtraHoursByVenueWeek(ctx context.Context, venueID schedule.VenueID, weekStart time.Time, unapprovedOnly bool) ([]schedule.ExtraHoursRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return extraHoursByVenueWeek(ctx, s.db, venueID, weekStart, unapprovedOnly)
}

func upsertExtraHours(ctx context.Context, db dbtx, rec schedule.ExtraHoursRecord) error {
	query := `
		INSERT INTO extra_hours
		(id, staff_id, venue_id, week_start, week_end, planned_hours, actual_hours, extra_hours,
		 is_approved, disposition, approved_by, approved_at, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(staff_id, venue_id, week_start) DO UPDATE SET
			planned_hours = excluded.planned_hours,
			actual_hours = excluded.actual_hours,
			extra_hours = excluded.extra_hours,
			is_approved = excluded.is_approved,
			disposition = excluded.disposition,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		rec.ID, rec.StaffID, rec.VenueID,
		fmtTime(rec.WeekStart), fmtTime(rec.WeekEnd),
		rec.PlannedHours.String(), rec.ActualHours.String(), rec.ExtraHours.String(),
		rec.IsApproved, rec.Disposition, rec.ApprovedBy, fmtTimePtr(rec.ApprovedAt),
		rec.Notes, fmtTime(rec.CreatedAt), fmtTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert extra hours: %w", err)
	}
	return nil
}

const extraColumns = `id, staff_id, venue_id, week_start, week_end, planned_hours,
	actual_hours, extra_hours, is_approved, disposition, approved_by, approved_at,
	notes, created_at, updated_at`

func extraHoursFor(ctx context.Context, db dbtx, staffID schedule.StaffID, venueID schedule.VenueID, weekStart time.Time) (*schedule.ExtraHoursRecord, error) {
	recs, err := queryExtraHours(ctx, db, `
		SELECT `+extraColumns+`
		FROM extra_hours WHERE staff_id = ? AND venue_id = ? AND week_start = ?`,
		staffID, venueID, fmtTime(weekStart))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func extraHoursByVenueWeek(ctx context.Context, db dbtx, venueID schedule.VenueID, weekStart time.Time, unapprovedOnly bool) ([]schedule.ExtraHoursRecord, error) {
	query := `
		SELECT ` + extraColumns + `
		FROM extra_hours WHERE venue_id = ? AND week_start = ?
	`
	if unapprovedOnly {
		query += ` AND is_approved = FALSE`
	}
	query += ` ORDER BY staff_id ASC`
	return queryExtraHours(ctx, db, query, venueID, fmtTime(weekStart))
}

func queryExtraHours(ctx context.Context, db dbtx, query string, args ...any) ([]schedule.ExtraHoursRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query extra hours: %w", err)
	}
	defer rows.Close()

	var recs []schedule.ExtraHoursRecord
	for rows.Next() {
		var rec schedule.ExtraHoursRecord
		var weekStart, weekEnd, planned, actual, extra, createdAt, updatedAt string
		var approvedAt sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.StaffID, &rec.VenueID, &weekStart, &weekEnd,
			&planned, &actual, &extra,
			&rec.IsApproved, &rec.Disposition, &rec.ApprovedBy, &approvedAt,
			&rec.Notes, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan extra hours: %w", err)
		}
		rec.WeekStart = parseTime(weekStart)
		rec.WeekEnd = parseTime(weekEnd)
		rec.PlannedHours, _ = decimal.NewFromString(planned)
		rec.ActualHours, _ = decimal.NewFromString(actual)
		rec.ExtraHours, _ = decimal.NewFromString(extra)
		rec.ApprovedAt = parseTimePtr(approvedAt)
		rec.CreatedAt = parseTime(createdAt)
		rec.UpdatedAt = parseTime(updatedAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// AUDIT LOG (schedule.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry schedule.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, _ := json.Marshal(entry.Payload)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, venue_id, staff_id, subject, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, fmtTime(entry.At), entry.ActorID, entry.Action,
		entry.VenueID, entry.StaffID, entry.Subject, string(payloadJSON))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, venueID schedule.VenueID, from, to time.Time) ([]schedule.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, actor_id, action, venue_id, staff_id, subject, payload_json
		FROM audit_log
		WHERE venue_id = ? AND at >= ? AND at <= ?
		ORDER BY at ASC`,
		venueID, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []schedule.AuditEntry
	for rows.Next() {
		var e schedule.AuditEntry
		var at string
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &e.Action,
			&e.VenueID, &e.StaffID, &e.Subject, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.At = parseTime(at)
		if payload.Valid && payload.String != "" {
			json.Unmarshal([]byte(payload.String), &e.Payload)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"time_events", "anomalies", "snapshot_shifts", "snapshots",
		"week_locks", "extra_hours", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

// timeLayout is fixed-width (nanoseconds always padded to nine digits,
// UTC always "Z"), so the lexicographic ORDER BY on timestamp columns
// is chronological. RFC3339Nano trims trailing zeros and would not be.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t.UTC()
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, schedule.ErrNotFound)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
