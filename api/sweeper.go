/*
sweeper.go - Automated missing-punch sweeper

PURPOSE:
  Periodically scans for clock-ins with no matching clock-out past the
  cutoff and turns them into MISSING_PUNCH anomalies, so forgotten
  punches surface in the weekly admin view without anyone asking.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Visits every venue that has recent clock activity
  - The sweep itself is idempotent: re-running never duplicates
    anomalies for the same open clock-in
  - Locked weeks are skipped, not failed

CONFIGURATION:
  - Interval: How often to sweep (default: 15 minutes)
  - Enabled:  Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewMissingPunchSweeper(store, punchService, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - punch/service.go: SweepMissingPunches (the actual sweep logic)
  - factory/rules.go: sweep_interval_minutes
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brigade/shift-engine/punch"
	"github.com/brigade/shift-engine/schedule"
)

// venueLister is satisfied by the sqlite store. Without it the sweeper
// has no way to enumerate venues and stays idle.
type venueLister interface {
	ActiveVenues(ctx context.Context, since time.Time) ([]schedule.VenueID, error)
}

// lookback bounds venue discovery. A venue with no punches for two
// weeks has nothing an open-punch sweep could find.
const sweeperLookback = 14 * 24 * time.Hour

// MissingPunchSweeper handles automated missing-punch detection.
type MissingPunchSweeper struct {
	Venues   venueLister
	Punch    *punch.Service
	Interval time.Duration
	Enabled  bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMissingPunchSweeper creates a new sweeper.
func NewMissingPunchSweeper(venues venueLister, p *punch.Service, logger *zap.Logger) *MissingPunchSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MissingPunchSweeper{
		Venues:   venues,
		Punch:    p,
		Interval: 15 * time.Minute,
		Enabled:  true,
		logger:   logger,
		stop:     make(chan bool),
	}
}

// Start begins the sweeper.
func (ms *MissingPunchSweeper) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled {
		ms.logger.Info("sweeper disabled, not starting")
		return
	}
	if ms.Venues == nil {
		ms.logger.Warn("sweeper has no venue source, not starting")
		return
	}

	ms.ticker = time.NewTicker(ms.Interval)
	ms.wg.Add(1)

	go ms.run()

	ms.logger.Info("sweeper started", zap.Duration("interval", ms.Interval))
}

// Stop stops the sweeper.
func (ms *MissingPunchSweeper) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ticker != nil {
		ms.ticker.Stop()
		close(ms.stop)
		ms.wg.Wait()
		ms.logger.Info("sweeper stopped")
	}
}

func (ms *MissingPunchSweeper) run() {
	defer ms.wg.Done()

	// Run immediately on start
	ms.sweep()

	for {
		select {
		case <-ms.ticker.C:
			ms.sweep()
		case <-ms.stop:
			return
		}
	}
}

func (ms *MissingPunchSweeper) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	venues, err := ms.Venues.ActiveVenues(ctx, now.Add(-sweeperLookback))
	if err != nil {
		ms.logger.Error("sweeper failed to list venues", zap.Error(err))
		return
	}

	flagged := 0
	for _, venueID := range venues {
		anomalies, err := ms.Punch.SweepMissingPunches(ctx, venueID, now)
		if err != nil {
			ms.logger.Error("sweep failed",
				zap.String("venue_id", string(venueID)),
				zap.Error(err))
			continue
		}
		flagged += len(anomalies)
	}

	if flagged > 0 {
		ms.logger.Info("sweep completed",
			zap.Int("venues", len(venues)),
			zap.Int("flagged", flagged))
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ms *MissingPunchSweeper) RunNow() {
	ms.sweep()
}
