package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Guizzs26/sample-outreach/internal/models"
	"github.com/Guizzs26/sample-outreach/internal/scheduler"

	"github.com/jackc/pgx/v5"
)

const scheduleColumns = `
	id, sample_id, scenario, region, interval_days, max_runs,
	run_count, next_run_time, last_run_time, active, created_at, updated_at`

func scanScheduleRow(row pgx.Row) (models.ScheduleRow, error) {
	var s models.ScheduleRow
	err := row.Scan(
		&s.ID,
		&s.SampleID,
		&s.Scenario,
		&s.Region,
		&s.IntervalDays,
		&s.MaxRuns,
		&s.RunCount,
		&s.NextRunTime,
		&s.LastRunTime,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

// ScheduleOnce records a one-shot trigger for a (sample, scenario) pair.
func (r *PostgresRepository) ScheduleOnce(ctx context.Context, sampleID string, scenario models.Scenario, region string) error {
	return r.upsertSchedule(ctx, scheduler.UpsertParams{
		SampleID: sampleID,
		Scenario: scenario,
		Region:   region,
		MaxRuns:  1,
		Now:      time.Now().UTC(),
	})
}

// ScheduleRepeating records a repeating trigger with its cadence.
func (r *PostgresRepository) ScheduleRepeating(ctx context.Context, sampleID string, scenario models.Scenario, region string, intervalDays, maxRuns int) error {
	return r.upsertSchedule(ctx, scheduler.UpsertParams{
		SampleID:     sampleID,
		Scenario:     scenario,
		Region:       region,
		IntervalDays: &intervalDays,
		MaxRuns:      maxRuns,
		Now:          time.Now().UTC(),
	})
}

// upsertSchedule locks the stored row for the pair (if any), applies the
// transition in Go, and persists the result. Keeping the conditional logic in
// scheduler.ApplyUpsert means the store stays portable and the rules stay
// testable without a database.
func (r *PostgresRepository) upsertSchedule(ctx context.Context, p scheduler.UpsertParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin schedule upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT ` + scheduleColumns + `
		FROM sample_chatbot_schedules
		WHERE sample_id = $1 AND scenario = $2
		FOR UPDATE
	`

	var existing *models.ScheduleRow
	current, err := scanScheduleRow(tx.QueryRow(ctx, query, p.SampleID, p.Scenario))
	switch {
	case err == nil:
		existing = &current
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return fmt.Errorf("failed to lock schedule row: %w", err)
	}

	next := scheduler.ApplyUpsert(existing, p)

	if existing == nil {
		insert := `
			INSERT INTO sample_chatbot_schedules
				(id, sample_id, scenario, region, interval_days, max_runs,
				 run_count, next_run_time, last_run_time, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		_, err = tx.Exec(ctx, insert,
			next.ID, next.SampleID, next.Scenario, next.Region,
			next.IntervalDays, next.MaxRuns, next.RunCount,
			next.NextRunTime, next.LastRunTime, next.Active,
			next.CreatedAt, next.UpdatedAt,
		)
	} else {
		err = r.updateScheduleTx(ctx, tx, next)
	}
	if err != nil {
		return fmt.Errorf("failed to persist schedule row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit schedule upsert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) updateScheduleTx(ctx context.Context, tx pgx.Tx, row models.ScheduleRow) error {
	query := `
		UPDATE sample_chatbot_schedules
		SET region = $2,
		    interval_days = $3,
		    max_runs = $4,
		    run_count = $5,
		    next_run_time = $6,
		    last_run_time = $7,
		    active = $8,
		    updated_at = $9
		WHERE id = $1
	`
	_, err := tx.Exec(ctx, query,
		row.ID, row.Region, row.IntervalDays, row.MaxRuns,
		row.RunCount, row.NextRunTime, row.LastRunTime,
		row.Active, row.UpdatedAt,
	)
	return err
}

// Deactivate retires the schedule for a pair without touching its run count.
// Missing rows are fine; the trigger may never have fired.
func (r *PostgresRepository) Deactivate(ctx context.Context, sampleID string, scenario models.Scenario) error {
	query := `
		UPDATE sample_chatbot_schedules
		SET active = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE sample_id = $1 AND scenario = $2 AND active
	`
	_, err := r.pool.Exec(ctx, query, sampleID, scenario)
	if err != nil {
		return fmt.Errorf("failed to deactivate schedule: %w", err)
	}
	return nil
}

// WithDueRow claims the oldest due schedule row and runs fn over it inside the
// claiming transaction. SKIP LOCKED keeps concurrent publishers off each
// other's rows. The reported decision is applied and committed atomically with
// whatever fn did; an error from fn rolls everything back, so the row stays
// due and the run is not counted.
//
// Returns false when no due row exists.
func (r *PostgresRepository) WithDueRow(ctx context.Context, fn func(context.Context, models.ScheduleRow) (scheduler.Decision, error)) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin due-row claim: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT ` + scheduleColumns + `
		FROM sample_chatbot_schedules
		WHERE active
		  AND next_run_time <= CURRENT_TIMESTAMP
		  AND run_count < max_runs
		ORDER BY next_run_time ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	row, err := scanScheduleRow(tx.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim due schedule row: %w", err)
	}

	decision, err := fn(ctx, row)
	if err != nil {
		return true, err
	}

	now := time.Now().UTC()
	switch decision {
	case scheduler.DecisionExecute:
		err = r.updateScheduleTx(ctx, tx, scheduler.ApplyExecution(row, now))
	case scheduler.DecisionDeactivate:
		row.Active = false
		row.UpdatedAt = now
		err = r.updateScheduleTx(ctx, tx, row)
	default:
		err = fmt.Errorf("unknown decision %d", decision)
	}
	if err != nil {
		return true, fmt.Errorf("failed to settle claimed row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return true, fmt.Errorf("failed to commit due-row claim: %w", err)
	}
	return true, nil
}
