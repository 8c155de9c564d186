package scheduler

import (
	"strings"
	"time"

	"github.com/Guizzs26/sample-outreach/internal/models"
	"github.com/google/uuid"
)

// Reminder cadence policy. REPEAT_TIMES reminders follow the first send, so a
// repeating schedule gets RepeatTimes+1 total runs.
const (
	NoContentIntervalDays     = 5
	MissingAdCodeIntervalDays = 3
	RepeatTimes               = 3
)

// Decision is what the publisher reports back for a claimed due row.
type Decision int

const (
	// DecisionExecute marks the run as performed: run_count advances and the
	// row is rescheduled or retired per ApplyExecution.
	DecisionExecute Decision = iota
	// DecisionDeactivate retires the row without counting a run (condition no
	// longer holds, unsupported region, missing sample).
	DecisionDeactivate
)

// UpsertParams carries one observed trigger for a (sample, scenario) pair.
type UpsertParams struct {
	SampleID     string
	Scenario     models.Scenario
	Region       string
	IntervalDays *int // nil = one-shot
	MaxRuns      int
	Now          time.Time
}

// NewRowID generates a schedule row id (uppercase UUID, same form as task ids
// on the wire).
func NewRowID() string {
	return strings.ToUpper(uuid.NewString())
}

// ApplyUpsert is the single source of truth for the conditional upsert: given
// the currently stored row (nil if none) and an observed trigger, it returns
// the row as it must be persisted.
//
// The rules, in order:
//   - no existing row: insert a fresh active row due immediately;
//   - existing row, inactive with runs remaining: reactivate and make it due;
//   - existing row otherwise: cadence fields stay untouched, except that a
//     missing interval is filled in and max_runs only ever grows.
//
// Re-observing a trigger while a schedule is already active is therefore a
// no-op on everything but updated_at.
func ApplyUpsert(existing *models.ScheduleRow, p UpsertParams) models.ScheduleRow {
	if existing == nil {
		return models.ScheduleRow{
			ID:           NewRowID(),
			SampleID:     p.SampleID,
			Scenario:     p.Scenario,
			Region:       p.Region,
			IntervalDays: p.IntervalDays,
			MaxRuns:      p.MaxRuns,
			RunCount:     0,
			NextRunTime:  p.Now,
			Active:       true,
			CreatedAt:    p.Now,
			UpdatedAt:    p.Now,
		}
	}

	row := *existing
	if !row.Active && row.RunsRemaining() {
		row.Active = true
		row.NextRunTime = p.Now
	}
	if row.IntervalDays == nil {
		row.IntervalDays = p.IntervalDays
	}
	if p.MaxRuns > row.MaxRuns {
		row.MaxRuns = p.MaxRuns
	}
	row.UpdatedAt = p.Now
	return row
}

// ApplyExecution advances a row after one successful publish: run_count goes
// up by one, and the row either deactivates (quota reached, next_run_time left
// as-is) or is rescheduled interval days ahead. One-shot rows always
// deactivate on first execution.
func ApplyExecution(row models.ScheduleRow, now time.Time) models.ScheduleRow {
	row.RunCount++
	row.LastRunTime = &now
	row.UpdatedAt = now

	if row.RunCount >= row.MaxRuns {
		row.Active = false
		return row
	}

	if row.IntervalDays != nil {
		row.NextRunTime = now.Add(time.Duration(*row.IntervalDays) * 24 * time.Hour)
	} else {
		row.NextRunTime = now
	}
	return row
}
