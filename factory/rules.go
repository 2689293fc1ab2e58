/*
Package factory provides JSON to Go rules conversion.

PURPOSE:
  Converts JSON rule definitions into punch.Rules and reconcile.Options.
  This enables venue-level tuning without code changes - operations
  staff can define grace windows in JSON, and the factory creates the
  proper Go structs.

WHY JSON?
  - Non-developers can tune grace windows and thresholds
  - Easy integration with an admin UI
  - Version control for venue rule definitions
  - Database storage of rule configs

JSON SCHEMA:
  {
    "late_grace_minutes": 10,
    "early_grace_minutes": 10,
    "overtime_threshold_minutes": 30,
    "missing_punch_cutoff_hours": 24,
    "critical_after_minutes": 60,
    "sweep_interval_minutes": 15,
    "reconcile": {
      "epsilon_hours": 0.01,
      "count_rejected_hours": false
    }
  }

KEY FEATURES:
  - Validates values (negative durations are rejected)
  - Absent fields fall back to the package defaults
  - Round-trips back to JSON for admin display

USAGE:
  cfg, err := factory.ParseRules(jsonString)
  svc := punch.NewService(store, cfg.Punch, audit, logger)
  rec := reconcile.NewReconciler(store, cfg.Reconcile, audit, logger)

SEE ALSO:
  - punch/service.go: Rules consumers
  - reconcile/reconciler.go: Options consumers
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brigade/shift-engine/punch"
	"github.com/brigade/shift-engine/reconcile"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesJSON is the JSON representation of venue rules.
type RulesJSON struct {
	LateGraceMinutes         *int           `json:"late_grace_minutes,omitempty"`
	EarlyGraceMinutes        *int           `json:"early_grace_minutes,omitempty"`
	OvertimeThresholdMinutes *int           `json:"overtime_threshold_minutes,omitempty"`
	MissingPunchCutoffHours  *int           `json:"missing_punch_cutoff_hours,omitempty"`
	CriticalAfterMinutes     *int           `json:"critical_after_minutes,omitempty"`
	SweepIntervalMinutes     *int           `json:"sweep_interval_minutes,omitempty"`
	Reconcile                *ReconcileJSON `json:"reconcile,omitempty"`
}

// ReconcileJSON represents reconciliation tuning.
type ReconcileJSON struct {
	EpsilonHours       *float64 `json:"epsilon_hours,omitempty"`
	CountRejectedHours bool     `json:"count_rejected_hours,omitempty"`
}

// Config is the parsed result: everything the services need at startup.
type Config struct {
	Punch     punch.Rules
	Reconcile reconcile.Options
	// SweepInterval is how often the background missing-punch sweep runs.
	SweepInterval time.Duration
}

// DefaultConfig returns the configuration used when no JSON is supplied.
func DefaultConfig() Config {
	return Config{
		Punch:         punch.DefaultRules(),
		Reconcile:     reconcile.DefaultOptions(),
		SweepInterval: 15 * time.Minute,
	}
}

// =============================================================================
// PARSING
// =============================================================================

// ParseRules parses a JSON string into a Config. Absent fields keep
// their defaults; present fields are validated.
func ParseRules(jsonStr string) (Config, error) {
	var rj RulesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return Config{}, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return FromJSON(rj)
}

// FromJSON converts RulesJSON to a Config.
func FromJSON(rj RulesJSON) (Config, error) {
	cfg := DefaultConfig()

	if err := applyMinutes(&cfg.Punch.LateGrace, rj.LateGraceMinutes, "late_grace_minutes"); err != nil {
		return Config{}, err
	}
	if err := applyMinutes(&cfg.Punch.EarlyGrace, rj.EarlyGraceMinutes, "early_grace_minutes"); err != nil {
		return Config{}, err
	}
	if err := applyMinutes(&cfg.Punch.OvertimeThreshold, rj.OvertimeThresholdMinutes, "overtime_threshold_minutes"); err != nil {
		return Config{}, err
	}
	if err := applyMinutes(&cfg.Punch.CriticalAfter, rj.CriticalAfterMinutes, "critical_after_minutes"); err != nil {
		return Config{}, err
	}
	if err := applyMinutes(&cfg.SweepInterval, rj.SweepIntervalMinutes, "sweep_interval_minutes"); err != nil {
		return Config{}, err
	}

	if rj.MissingPunchCutoffHours != nil {
		if *rj.MissingPunchCutoffHours <= 0 {
			return Config{}, fmt.Errorf("missing_punch_cutoff_hours must be positive, got %d", *rj.MissingPunchCutoffHours)
		}
		cfg.Punch.MissingPunchCutoff = time.Duration(*rj.MissingPunchCutoffHours) * time.Hour
	}

	if rj.Reconcile != nil {
		if rj.Reconcile.EpsilonHours != nil {
			if *rj.Reconcile.EpsilonHours < 0 {
				return Config{}, fmt.Errorf("epsilon_hours must not be negative, got %v", *rj.Reconcile.EpsilonHours)
			}
			cfg.Reconcile.Epsilon = decimal.NewFromFloat(*rj.Reconcile.EpsilonHours)
		}
		cfg.Reconcile.CountRejectedHours = rj.Reconcile.CountRejectedHours
	}

	return cfg, nil
}

func applyMinutes(dst *time.Duration, src *int, field string) error {
	if src == nil {
		return nil
	}
	if *src < 0 {
		return fmt.Errorf("%s must not be negative, got %d", field, *src)
	}
	*dst = time.Duration(*src) * time.Minute
	return nil
}

// ToJSON converts a Config back to RulesJSON for admin display.
func ToJSON(cfg Config) RulesJSON {
	late := int(cfg.Punch.LateGrace.Minutes())
	early := int(cfg.Punch.EarlyGrace.Minutes())
	overtime := int(cfg.Punch.OvertimeThreshold.Minutes())
	cutoff := int(cfg.Punch.MissingPunchCutoff.Hours())
	critical := int(cfg.Punch.CriticalAfter.Minutes())
	sweep := int(cfg.SweepInterval.Minutes())
	epsilon, _ := cfg.Reconcile.Epsilon.Float64()

	return RulesJSON{
		LateGraceMinutes:         &late,
		EarlyGraceMinutes:        &early,
		OvertimeThresholdMinutes: &overtime,
		MissingPunchCutoffHours:  &cutoff,
		CriticalAfterMinutes:     &critical,
		SweepIntervalMinutes:     &sweep,
		Reconcile: &ReconcileJSON{
			EpsilonHours:       &epsilon,
			CountRejectedHours: cfg.Reconcile.CountRejectedHours,
		},
	}
}

// =============================================================================
// PRESETS
// =============================================================================

// StrictRulesJSON is a preset with no arrival/departure tolerance.
func StrictRulesJSON() string {
	return `{
		"late_grace_minutes": 0,
		"early_grace_minutes": 0,
		"overtime_threshold_minutes": 15,
		"missing_punch_cutoff_hours": 12,
		"critical_after_minutes": 30
	}`
}

// RelaxedRulesJSON is a preset for venues with loose scheduling.
func RelaxedRulesJSON() string {
	return `{
		"late_grace_minutes": 20,
		"early_grace_minutes": 20,
		"overtime_threshold_minutes": 60,
		"missing_punch_cutoff_hours": 36,
		"critical_after_minutes": 120
	}`
}
