package scheduler

import (
	"strings"
	"testing"
	"time"

	"github.com/Guizzs26/sample-outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestApplyUpsertInsert(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	row := ApplyUpsert(nil, UpsertParams{
		SampleID: "S1",
		Scenario: models.ScenarioShipped,
		Region:   "MX",
		MaxRuns:  1,
		Now:      now,
	})

	require.NotEmpty(t, row.ID)
	assert.Equal(t, strings.ToUpper(row.ID), row.ID)
	assert.Equal(t, "S1", row.SampleID)
	assert.True(t, row.Active)
	assert.Equal(t, 0, row.RunCount)
	assert.Equal(t, 1, row.MaxRuns)
	assert.Nil(t, row.IntervalDays)
	assert.Equal(t, now, row.NextRunTime)
}

func TestApplyUpsertActiveRowIsNoOp(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	existing := models.ScheduleRow{
		ID:           "ROW-1",
		SampleID:     "S1",
		Scenario:     models.ScenarioNoContentPosted,
		IntervalDays: intPtr(5),
		MaxRuns:      4,
		RunCount:     2,
		NextRunTime:  now.Add(48 * time.Hour),
		Active:       true,
	}

	row := ApplyUpsert(&existing, UpsertParams{
		SampleID:     "S1",
		Scenario:     models.ScenarioNoContentPosted,
		IntervalDays: intPtr(5),
		MaxRuns:      4,
		Now:          later,
	})

	assert.Equal(t, existing.NextRunTime, row.NextRunTime, "cadence untouched while active")
	assert.Equal(t, existing.RunCount, row.RunCount)
	assert.Equal(t, existing.MaxRuns, row.MaxRuns)
	assert.True(t, row.Active)
	assert.Equal(t, later, row.UpdatedAt)
}

func TestApplyUpsertReactivatesInactiveWithRunsRemaining(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	existing := models.ScheduleRow{
		ID:           "ROW-1",
		SampleID:     "S1",
		Scenario:     models.ScenarioMissingAdCode,
		IntervalDays: intPtr(3),
		MaxRuns:      4,
		RunCount:     2,
		NextRunTime:  now.Add(-72 * time.Hour),
		Active:       false,
	}

	row := ApplyUpsert(&existing, UpsertParams{
		SampleID:     "S1",
		Scenario:     models.ScenarioMissingAdCode,
		IntervalDays: intPtr(3),
		MaxRuns:      4,
		Now:          now,
	})

	assert.True(t, row.Active)
	assert.Equal(t, now, row.NextRunTime)
}

func TestApplyUpsertExhaustedRowStaysInactive(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	existing := models.ScheduleRow{
		ID:       "ROW-1",
		SampleID: "S1",
		Scenario: models.ScenarioShipped,
		MaxRuns:  1,
		RunCount: 1,
		Active:   false,
	}

	row := ApplyUpsert(&existing, UpsertParams{
		SampleID: "S1",
		Scenario: models.ScenarioShipped,
		MaxRuns:  1,
		Now:      now,
	})

	assert.False(t, row.Active, "a fully executed row must never reactivate")
	assert.Equal(t, 1, row.RunCount)
}

func TestApplyUpsertFillsMissingIntervalAndGrowsMaxRuns(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	existing := models.ScheduleRow{
		ID:       "ROW-1",
		SampleID: "S1",
		Scenario: models.ScenarioNoContentPosted,
		MaxRuns:  2,
		RunCount: 0,
		Active:   true,
	}

	row := ApplyUpsert(&existing, UpsertParams{
		SampleID:     "S1",
		Scenario:     models.ScenarioNoContentPosted,
		IntervalDays: intPtr(5),
		MaxRuns:      4,
		Now:          now,
	})

	require.NotNil(t, row.IntervalDays)
	assert.Equal(t, 5, *row.IntervalDays)
	assert.Equal(t, 4, row.MaxRuns)

	// But an already-set interval is never overwritten.
	row2 := ApplyUpsert(&row, UpsertParams{
		SampleID:     "S1",
		Scenario:     models.ScenarioNoContentPosted,
		IntervalDays: intPtr(9),
		MaxRuns:      4,
		Now:          now,
	})
	assert.Equal(t, 5, *row2.IntervalDays)
}

func TestApplyExecutionAdvancesRepeatingRow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	row := models.ScheduleRow{
		ID:           "ROW-1",
		IntervalDays: intPtr(5),
		MaxRuns:      4,
		RunCount:     1,
		NextRunTime:  now.Add(-time.Minute),
		Active:       true,
	}

	got := ApplyExecution(row, now)

	assert.Equal(t, 2, got.RunCount)
	assert.True(t, got.Active)
	assert.Equal(t, now.Add(5*24*time.Hour), got.NextRunTime)
	require.NotNil(t, got.LastRunTime)
	assert.Equal(t, now, *got.LastRunTime)
}

func TestApplyExecutionFinalRunDeactivates(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Minute)
	row := models.ScheduleRow{
		ID:           "ROW-1",
		IntervalDays: intPtr(5),
		MaxRuns:      4,
		RunCount:     3,
		NextRunTime:  before,
		Active:       true,
	}

	got := ApplyExecution(row, now)

	assert.Equal(t, 4, got.RunCount)
	assert.False(t, got.Active)
	assert.Equal(t, before, got.NextRunTime, "no further scheduling after the last run")
}

func TestApplyExecutionOneShotDeactivatesImmediately(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	row := models.ScheduleRow{ID: "ROW-1", MaxRuns: 1, RunCount: 0, Active: true}

	got := ApplyExecution(row, now)

	assert.Equal(t, 1, got.RunCount)
	assert.False(t, got.Active)
}

func TestApplyExecutionRunCountNeverExceedsMax(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	row := models.ScheduleRow{ID: "ROW-1", IntervalDays: intPtr(3), MaxRuns: 4, Active: true}

	for i := 0; i < 4; i++ {
		assert.True(t, row.RunsRemaining())
		row = ApplyExecution(row, now)
		assert.Equal(t, i+1, row.RunCount)
		assert.LessOrEqual(t, row.RunCount, row.MaxRuns)
	}
	assert.False(t, row.Active)
	assert.False(t, row.RunsRemaining())
}
