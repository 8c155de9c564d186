package models

import "time"

// Scenario is the reason a reminder is scheduled. The set is closed; unknown
// values are treated as "nothing to send".
type Scenario string

const (
	ScenarioShipped         Scenario = "shipped"
	ScenarioContentPending  Scenario = "content_pending"
	ScenarioNoContentPosted Scenario = "no_content_posted"
	ScenarioMissingAdCode   Scenario = "missing_ad_code"
)

// Lifecycle status values the detector reacts to (normalized form).
const (
	StatusShipped        = "shipped"
	StatusContentPending = "content pending"
	StatusCompleted      = "completed"
)

// ScheduleRow is the durable unit of future work. At most one row exists per
// (sample_id, scenario) pair, enforced by a uniqueness constraint.
type ScheduleRow struct {
	ID           string     `db:"id"`
	SampleID     string     `db:"sample_id"`
	Scenario     Scenario   `db:"scenario"`
	Region       string     `db:"region"`
	IntervalDays *int       `db:"interval_days"` // nil = one-shot
	MaxRuns      int        `db:"max_runs"`
	RunCount     int        `db:"run_count"`
	NextRunTime  time.Time  `db:"next_run_time"`
	LastRunTime  *time.Time `db:"last_run_time"`
	Active       bool       `db:"active"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// RunsRemaining reports whether the row may still be executed.
func (r ScheduleRow) RunsRemaining() bool {
	return r.RunCount < r.MaxRuns
}
