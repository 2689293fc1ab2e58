package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brigade/shift-engine/schedule"
)

// =============================================================================
// CANONICAL CHECKSUM - Order-independent hash over a shift set
// =============================================================================

// Checksum computes the canonical hash of a shift set. Shifts are sorted
// by (staffID, startTime, endTime, phaseID) before hashing, so
// semantically identical sets produce identical checksums regardless of
// input order. Shift IDs are deliberately excluded: two versions with
// the same plan but regenerated IDs must still hash the same.
func Checksum(shifts []schedule.Shift) string {
	sorted := make([]schedule.Shift, len(shifts))
	copy(sorted, shifts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.StaffID != b.StaffID {
			return a.StaffID < b.StaffID
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if !a.EndTime.Equal(b.EndTime) {
			return a.EndTime.Before(b.EndTime)
		}
		return a.PhaseID < b.PhaseID
	})

	var sb strings.Builder
	for _, s := range sorted {
		fmt.Fprintf(&sb, "%s|%s|%s|%s|%s\n",
			s.StaffID,
			s.StartTime.UTC().Format(time.RFC3339),
			s.EndTime.UTC().Format(time.RFC3339),
			s.PhaseID,
			s.Status)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Totals returns the shift count and summed planned hours, excluding
// cancelled shifts from both.
func Totals(shifts []schedule.Shift) (int, decimal.Decimal) {
	count := 0
	hours := decimal.Zero
	for _, s := range shifts {
		if s.Status == schedule.ShiftCancelled {
			continue
		}
		count++
		hours = hours.Add(s.Hours())
	}
	return count, hours
}

// Verify recomputes a snapshot's checksum and returns an IntegrityError
// on mismatch. Every read that claims a version goes through this.
func Verify(snap *schedule.ScheduleSnapshot) error {
	computed := Checksum(snap.Shifts)
	if computed != snap.Checksum {
		return &schedule.IntegrityError{
			SnapshotID: snap.ID,
			Stored:     snap.Checksum,
			Computed:   computed,
		}
	}
	return nil
}
