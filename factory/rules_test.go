package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brigade/shift-engine/factory"
)

func TestParseRules_EmptyObject_KeepsDefaults(t *testing.T) {
	cfg, err := factory.ParseRules(`{}`)

	require.NoError(t, err)
	assert.Equal(t, factory.DefaultConfig(), cfg)
}

func TestParseRules_PartialOverride(t *testing.T) {
	// GIVEN: Only the late grace is overridden
	// THEN: Everything else keeps its default

	cfg, err := factory.ParseRules(`{"late_grace_minutes": 5}`)

	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Punch.LateGrace)
	assert.Equal(t, 10*time.Minute, cfg.Punch.EarlyGrace)
	assert.Equal(t, 30*time.Minute, cfg.Punch.OvertimeThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Punch.MissingPunchCutoff)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
}

func TestParseRules_FullOverride(t *testing.T) {
	cfg, err := factory.ParseRules(`{
		"late_grace_minutes": 2,
		"early_grace_minutes": 3,
		"overtime_threshold_minutes": 45,
		"missing_punch_cutoff_hours": 12,
		"critical_after_minutes": 90,
		"sweep_interval_minutes": 5,
		"reconcile": {
			"epsilon_hours": 0.05,
			"count_rejected_hours": true
		}
	}`)

	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Punch.LateGrace)
	assert.Equal(t, 3*time.Minute, cfg.Punch.EarlyGrace)
	assert.Equal(t, 45*time.Minute, cfg.Punch.OvertimeThreshold)
	assert.Equal(t, 12*time.Hour, cfg.Punch.MissingPunchCutoff)
	assert.Equal(t, 90*time.Minute, cfg.Punch.CriticalAfter)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "0.05", cfg.Reconcile.Epsilon.String())
	assert.True(t, cfg.Reconcile.CountRejectedHours)
}

func TestParseRules_ZeroGrace_IsValid(t *testing.T) {
	// Zero tolerance is a legitimate policy, not an absent field.

	cfg, err := factory.ParseRules(`{"late_grace_minutes": 0, "early_grace_minutes": 0}`)

	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Punch.LateGrace)
	assert.Equal(t, time.Duration(0), cfg.Punch.EarlyGrace)
}

func TestParseRules_NegativeValues_Rejected(t *testing.T) {
	cases := []string{
		`{"late_grace_minutes": -1}`,
		`{"early_grace_minutes": -5}`,
		`{"overtime_threshold_minutes": -30}`,
		`{"critical_after_minutes": -10}`,
		`{"sweep_interval_minutes": -15}`,
		`{"missing_punch_cutoff_hours": 0}`,
		`{"reconcile": {"epsilon_hours": -0.01}}`,
	}
	for _, tc := range cases {
		_, err := factory.ParseRules(tc)
		assert.Error(t, err, tc)
	}
}

func TestParseRules_MalformedJSON_Rejected(t *testing.T) {
	_, err := factory.ParseRules(`{"late_grace_minutes": `)

	assert.Error(t, err)
}

func TestToJSON_RoundTrip(t *testing.T) {
	cfg, err := factory.ParseRules(`{
		"late_grace_minutes": 7,
		"missing_punch_cutoff_hours": 18,
		"reconcile": {"count_rejected_hours": true}
	}`)
	require.NoError(t, err)

	rj := factory.ToJSON(cfg)
	back, err := factory.FromJSON(rj)

	require.NoError(t, err)
	assert.Equal(t, cfg.Punch, back.Punch)
	assert.Equal(t, cfg.SweepInterval, back.SweepInterval)
	assert.True(t, cfg.Reconcile.Epsilon.Equal(back.Reconcile.Epsilon))
	assert.Equal(t, cfg.Reconcile.CountRejectedHours, back.Reconcile.CountRejectedHours)
}

func TestPresets_Parse(t *testing.T) {
	strict, err := factory.ParseRules(factory.StrictRulesJSON())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), strict.Punch.LateGrace)
	assert.Equal(t, 12*time.Hour, strict.Punch.MissingPunchCutoff)

	relaxed, err := factory.ParseRules(factory.RelaxedRulesJSON())
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, relaxed.Punch.LateGrace)
	assert.Equal(t, 2*time.Hour, relaxed.Punch.CriticalAfter)
}
