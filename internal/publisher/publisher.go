package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Guizzs26/sample-outreach/internal/detector"
	"github.com/Guizzs26/sample-outreach/internal/messages"
	"github.com/Guizzs26/sample-outreach/internal/models"
	"github.com/Guizzs26/sample-outreach/internal/scheduler"
	"github.com/Guizzs26/sample-outreach/pkg/metrics"
)

// ScheduleClaimer claims one due schedule row at a time and settles it with
// whatever the callback decides, atomically.
type ScheduleClaimer interface {
	WithDueRow(ctx context.Context, fn func(context.Context, models.ScheduleRow) (scheduler.Decision, error)) (bool, error)
}

// SampleRepository is the read side the publisher needs to validate a due row
// and render its messages.
type SampleRepository interface {
	GetSampleSnapshot(ctx context.Context, sampleID string) (*models.SampleSnapshot, error)
	LoadCreatorWhatsapp(ctx context.Context, platformCreatorID string) (string, error)
	LoadProductName(ctx context.Context, platformProductID string) (string, error)
}

// BrokerClient abstracts the publishing side of the message broker
type BrokerClient interface {
	PublishDispatchTask(ctx context.Context, task models.DispatchTask) error
	IsHealthy() bool
}

type Options struct {
	SupportedRegion string
	LinkTemplate    string
	BatchSize       int
}

// Publisher drains due schedule rows into dispatch tasks on the broker.
type Publisher struct {
	store   ScheduleClaimer
	samples SampleRepository
	broker  BrokerClient
	opts    Options
	logger  *slog.Logger
}

func NewPublisher(store ScheduleClaimer, samples SampleRepository, broker BrokerClient, opts Options, logger *slog.Logger) *Publisher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.SupportedRegion == "" {
		opts.SupportedRegion = "MX"
	}
	return &Publisher{
		store:   store,
		samples: samples,
		broker:  broker,
		opts:    opts,
		logger:  logger,
	}
}

// ProcessDueOnce claims and settles up to BatchSize due rows, one transaction
// each. It returns how many rows it handled; the caller decides whether to
// poll again immediately (full batch) or sleep (drained).
func (p *Publisher) ProcessDueOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.PublishCycleDuration.Observe(time.Since(start).Seconds())
	}()

	processed := 0
	for processed < p.opts.BatchSize {
		if !p.broker.IsHealthy() {
			return processed, fmt.Errorf("broker connection is unhealthy")
		}

		claimed, err := p.store.WithDueRow(ctx, p.settleRow)
		if err != nil {
			return processed, err
		}
		if !claimed {
			break
		}
		processed++
	}

	metrics.DueBacklog.Set(float64(processed))
	return processed, nil
}

// settleRow runs inside the row's claiming transaction: re-validate the
// condition against current sample state, render the messages, publish, and
// only then count the run. Any error here rolls the row back to due.
func (p *Publisher) settleRow(ctx context.Context, row models.ScheduleRow) (scheduler.Decision, error) {
	l := p.logger.With(
		"schedule_id", row.ID,
		"sample_id", row.SampleID,
		"scenario", row.Scenario,
	)

	sample, err := p.samples.GetSampleSnapshot(ctx, row.SampleID)
	if err != nil {
		return 0, fmt.Errorf("failed to load sample for due row: %w", err)
	}
	if sample == nil {
		l.Warn("Sample no longer exists, retiring schedule")
		return p.deactivated(row), nil
	}

	region := resolveRegion(row, *sample)
	if region != p.opts.SupportedRegion {
		l.Info("Region not handled by this deployment, retiring schedule", "region", region)
		return p.deactivated(row), nil
	}

	if !detector.ConditionHolds(row.Scenario, *sample) {
		l.Info("Condition no longer holds, retiring schedule")
		return p.deactivated(row), nil
	}

	if sample.PlatformCreatorID == "" {
		l.Warn("Sample has no platform creator id, retiring schedule")
		return p.deactivated(row), nil
	}

	whatsapp, err := p.samples.LoadCreatorWhatsapp(ctx, sample.PlatformCreatorID)
	if err != nil {
		return 0, fmt.Errorf("failed to load creator whatsapp: %w", err)
	}

	var productName string
	if sample.PlatformProductID != "" {
		productName, err = p.samples.LoadProductName(ctx, sample.PlatformProductID)
		if err != nil {
			return 0, fmt.Errorf("failed to load product name: %w", err)
		}
	}

	msgs := messages.Build(row.Scenario, *sample, productName, whatsapp, p.opts.LinkTemplate)
	if len(msgs) == 0 {
		l.Warn("No messages rendered for scenario, retiring schedule")
		return p.deactivated(row), nil
	}

	task := models.DispatchTask{
		SampleID:          sample.SampleID,
		Region:            region,
		PlatformCreatorID: sample.PlatformCreatorID,
		PlatformProductID: sample.PlatformProductID,
		Messages:          msgs,
	}

	if err := p.broker.PublishDispatchTask(ctx, task); err != nil {
		// Row stays due and retries next cycle
		return 0, fmt.Errorf("failed to publish dispatch task: %w", err)
	}

	l.Info("✅ Dispatch task published", "run_count", row.RunCount+1, "max_runs", row.MaxRuns)
	metrics.SchedulesPublished.WithLabelValues(string(row.Scenario), "published").Inc()
	return scheduler.DecisionExecute, nil
}

func (p *Publisher) deactivated(row models.ScheduleRow) scheduler.Decision {
	metrics.SchedulesPublished.WithLabelValues(string(row.Scenario), "deactivated").Inc()
	return scheduler.DecisionDeactivate
}

// resolveRegion prefers the row's region, then the sample's, then MX.
func resolveRegion(row models.ScheduleRow, sample models.SampleSnapshot) string {
	for _, candidate := range []string{row.Region, sample.Region} {
		if r := strings.ToUpper(strings.TrimSpace(candidate)); r != "" {
			return r
		}
	}
	return "MX"
}
