package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brigade/shift-engine/schedule"
	"github.com/brigade/shift-engine/schedule/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func testEvent(staffID schedule.StaffID, kind schedule.EventKind, ts time.Time) schedule.TimeEvent {
	return schedule.TimeEvent{
		ID:        schedule.EventID(string(staffID) + "-" + string(kind) + "-" + ts.Format(time.RFC3339)),
		StaffID:   staffID,
		VenueID:   "venue-1",
		Timestamp: ts,
		Kind:      kind,
		Source:    schedule.SourceApp,
		CreatedAt: ts,
	}
}

func testAnomaly(id schedule.AnomalyID) schedule.Anomaly {
	return schedule.Anomaly{
		ID:        id,
		StaffID:   "staff-alice",
		VenueID:   "venue-1",
		Date:      monday,
		Type:      schedule.AnomalyLateArrival,
		CreatedAt: monday,
	}
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestWithTx_ErrorRollsBackAllWrites(t *testing.T) {
	// GIVEN: A transaction that writes an event and an anomaly, then fails
	// THEN: Neither write is visible afterward

	mem := store.NewMemory()
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := mem.WithTx(ctx, func(st schedule.Store) error {
		if err := st.AppendEvent(ctx, testEvent("staff-alice", schedule.EventIn, monday.Add(9*time.Hour))); err != nil {
			return err
		}
		if err := st.SaveAnomaly(ctx, testAnomaly("anom-1")); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	events, err := mem.EventsByStaff(ctx, "staff-alice", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, events)
	_, err = mem.AnomalyByID(ctx, "anom-1")
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestWithTx_CommitKeepsWrites(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.WithTx(ctx, func(st schedule.Store) error {
		return st.AppendEvent(ctx, testEvent("staff-alice", schedule.EventIn, monday.Add(9*time.Hour)))
	})
	require.NoError(t, err)

	events, err := mem.EventsByStaff(ctx, "staff-alice", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWithTx_RollbackAfterDuplicateEvent(t *testing.T) {
	// GIVEN: A pre-existing event
	// WHEN: A transaction saves an anomaly and then re-appends the event
	// THEN: The duplicate error rolls back the anomaly; the original event stays

	mem := store.NewMemory()
	ctx := context.Background()
	ev := testEvent("staff-alice", schedule.EventIn, monday.Add(9*time.Hour))
	require.NoError(t, mem.AppendEvent(ctx, ev))

	err := mem.WithTx(ctx, func(st schedule.Store) error {
		if err := st.SaveAnomaly(ctx, testAnomaly("anom-1")); err != nil {
			return err
		}
		return st.AppendEvent(ctx, ev)
	})
	require.ErrorIs(t, err, schedule.ErrDuplicateEvent)

	_, err = mem.AnomalyByID(ctx, "anom-1")
	assert.ErrorIs(t, err, schedule.ErrNotFound)
	events, err := mem.EventsByStaff(ctx, "staff-alice", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWithTx_RollbackLeavesConcurrentCommitIntact(t *testing.T) {
	// GIVEN: A failing transaction in flight and a concurrent writer
	// WHEN: The writer appends an event while the transaction runs
	// THEN: The rollback undoes only the transaction's own writes;
	//       the concurrent append survives

	mem := store.NewMemory()
	ctx := context.Background()

	inTx := make(chan struct{})
	appended := make(chan error, 1)
	go func() {
		<-inTx
		appended <- mem.AppendEvent(ctx, testEvent("staff-bob", schedule.EventIn, monday.Add(10*time.Hour)))
	}()

	errBoom := errors.New("boom")
	err := mem.WithTx(ctx, func(st schedule.Store) error {
		if err := st.SaveAnomaly(ctx, testAnomaly("anom-tx")); err != nil {
			return err
		}
		close(inTx)
		// Give the concurrent writer time to contend for the store
		// before the rollback happens.
		time.Sleep(20 * time.Millisecond)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	require.NoError(t, <-appended)

	_, err = mem.AnomalyByID(ctx, "anom-tx")
	assert.ErrorIs(t, err, schedule.ErrNotFound)

	events, err := mem.EventsByStaff(ctx, "staff-bob", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Len(t, events, 1, "a rolled-back transaction must not erase another writer's commit")
}

func TestWithTx_ReadsSeeOwnWrites(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.WithTx(ctx, func(st schedule.Store) error {
		if err := st.AppendEvent(ctx, testEvent("staff-alice", schedule.EventIn, monday.Add(9*time.Hour))); err != nil {
			return err
		}
		events, err := st.EventsByStaff(ctx, "staff-alice", monday, monday.AddDate(0, 0, 7))
		if err != nil {
			return err
		}
		assert.Len(t, events, 1)
		return nil
	})
	require.NoError(t, err)
}
