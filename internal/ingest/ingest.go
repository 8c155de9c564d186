package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Guizzs26/sample-outreach/internal/models"
)

// SampleRepository is the write side of crawl ingestion.
type SampleRepository interface {
	GetSampleSnapshot(ctx context.Context, sampleID string) (*models.SampleSnapshot, error)
	UpsertSample(ctx context.Context, sample models.SampleSnapshot) error
	AppendCrawlLog(ctx context.Context, platformProductID, creatorDisplayName string) error
}

// SnapshotApplier reconciles schedule state from a snapshot pair.
type SnapshotApplier interface {
	ApplySnapshot(ctx context.Context, previous *models.SampleSnapshot, current models.SampleSnapshot) error
}

// CrawlBatch is the wire payload produced by the crawler side.
type CrawlBatch struct {
	OperatorID string                  `json:"operatorId"`
	Samples    []models.SampleSnapshot `json:"samples"`
}

type Service struct {
	repo          SampleRepository
	applier       SnapshotApplier
	defaultRegion string
	logger        *slog.Logger
}

func NewService(repo SampleRepository, applier SnapshotApplier, defaultRegion string, logger *slog.Logger) *Service {
	if defaultRegion == "" {
		defaultRegion = "MX"
	}
	return &Service{
		repo:          repo,
		applier:       applier,
		defaultRegion: strings.ToUpper(defaultRegion),
		logger:        logger,
	}
}

// HandleMessage implements broker.Handler. Malformed payloads are fatal;
// storage failures are not, so the delivery dead-letters or redelivers per
// the consumer's ack mode.
func (s *Service) HandleMessage(ctx context.Context, messageID string, body []byte) error {
	var batch CrawlBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return fmt.Errorf("FATAL: invalid crawl batch payload: %v", err)
	}
	if len(batch.Samples) == 0 {
		return fmt.Errorf("FATAL: crawl batch %s has no samples", messageID)
	}
	return s.IngestBatch(ctx, batch)
}

// IngestBatch persists each crawled snapshot and reconciles its schedules
// against the previously stored state. The schedule update is best-effort:
// a reconciliation failure must not lose the crawled data, so it is logged
// and the batch continues (the condition re-triggers on the next crawl).
func (s *Service) IngestBatch(ctx context.Context, batch CrawlBatch) error {
	for _, current := range batch.Samples {
		if strings.TrimSpace(current.SampleID) == "" {
			s.logger.Warn("Skipping crawled sample without id", "operator_id", batch.OperatorID)
			continue
		}
		current.Region = s.normalizeRegion(current.Region)

		previous, err := s.repo.GetSampleSnapshot(ctx, current.SampleID)
		if err != nil {
			return fmt.Errorf("failed to load previous snapshot: %w", err)
		}

		if err := s.repo.UpsertSample(ctx, current); err != nil {
			return fmt.Errorf("failed to upsert sample: %w", err)
		}

		if err := s.repo.AppendCrawlLog(ctx, current.PlatformProductID, current.PlatformCreatorDisplayName); err != nil {
			return fmt.Errorf("failed to append crawl log: %w", err)
		}

		if err := s.applier.ApplySnapshot(ctx, previous, current); err != nil {
			s.logger.Warn("Failed to update chatbot schedules (ignored)",
				"sample_id", current.SampleID, "error", err)
		}
	}

	s.logger.Info("Crawl batch ingested", "operator_id", batch.OperatorID, "samples", len(batch.Samples))
	return nil
}

func (s *Service) normalizeRegion(region string) string {
	if r := strings.ToUpper(strings.TrimSpace(region)); r != "" {
		return r
	}
	return s.defaultRegion
}
