package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Guizzs26/sample-outreach/internal/detector"
	"github.com/Guizzs26/sample-outreach/internal/models"
)

// ScheduleStore is the persistence contract the reconciler drives. Every
// method is an idempotent upsert or a safe no-op on missing rows.
type ScheduleStore interface {
	ScheduleOnce(ctx context.Context, sampleID string, scenario models.Scenario, region string) error
	ScheduleRepeating(ctx context.Context, sampleID string, scenario models.Scenario, region string, intervalDays, maxRuns int) error
	Deactivate(ctx context.Context, sampleID string, scenario models.Scenario) error
}

// CrawlLogChecker answers whether the crawler has ever observed a sample's
// (product, creator) pair.
type CrawlLogChecker interface {
	HasCrawlLog(ctx context.Context, platformProductID, creatorDisplayName string) (bool, error)
}

// Reconciler turns raw snapshot changes into durable reminder schedules.
type Reconciler struct {
	store  ScheduleStore
	logs   CrawlLogChecker
	logger *slog.Logger
}

func NewReconciler(store ScheduleStore, logs CrawlLogChecker, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, logs: logs, logger: logger}
}

// ApplySnapshot runs the diff detector over a snapshot pair and applies the
// resulting events to the schedule store. Calling it twice with the same
// arguments leaves the store in the same state as calling it once.
func (r *Reconciler) ApplySnapshot(ctx context.Context, previous *models.SampleSnapshot, current models.SampleSnapshot) error {
	observed, err := r.sampleObserved(ctx, current)
	if err != nil {
		return fmt.Errorf("crawl log check failed: %w", err)
	}

	for _, event := range detector.Detect(previous, current, observed) {
		if err := r.applyEvent(ctx, current, event); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) applyEvent(ctx context.Context, sample models.SampleSnapshot, event detector.Event) error {
	l := r.logger.With(
		"sample_id", sample.SampleID,
		"scenario", event.Scenario,
	)

	switch event.Kind {
	case detector.TriggerOneShot:
		l.Info("Status transition detected, scheduling one-shot reminder")
		if err := r.store.ScheduleOnce(ctx, sample.SampleID, event.Scenario, sample.Region); err != nil {
			return fmt.Errorf("schedule once failed: %w", err)
		}

	case detector.TriggerRepeating:
		if !event.Holds {
			// Safe no-op when no row exists.
			if err := r.store.Deactivate(ctx, sample.SampleID, event.Scenario); err != nil {
				return fmt.Errorf("deactivate failed: %w", err)
			}
			return nil
		}

		interval, maxRuns := repeatingCadence(event.Scenario)
		l.Info("Repeating condition holds, scheduling reminders", "interval_days", interval)
		if err := r.store.ScheduleRepeating(ctx, sample.SampleID, event.Scenario, sample.Region, interval, maxRuns); err != nil {
			return fmt.Errorf("schedule repeating failed: %w", err)
		}
	}
	return nil
}

func (r *Reconciler) sampleObserved(ctx context.Context, sample models.SampleSnapshot) (bool, error) {
	if sample.PlatformProductID == "" || sample.PlatformCreatorDisplayName == "" {
		return false, nil
	}
	return r.logs.HasCrawlLog(ctx, sample.PlatformProductID, sample.PlatformCreatorDisplayName)
}

func repeatingCadence(scenario models.Scenario) (intervalDays, maxRuns int) {
	switch scenario {
	case models.ScenarioMissingAdCode:
		return MissingAdCodeIntervalDays, RepeatTimes + 1
	default:
		return NoContentIntervalDays, RepeatTimes + 1
	}
}
