package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/Guizzs26/sample-outreach/internal/models"

	"github.com/jackc/pgx/v5"
)

// GetSampleSnapshot returns the stored snapshot for a sample, or nil when the
// sample has never been ingested.
func (r *PostgresRepository) GetSampleSnapshot(ctx context.Context, sampleID string) (*models.SampleSnapshot, error) {
	query := `
		SELECT sample_id, region, status, content_summary, ad_code,
		       platform_product_id, platform_creator_id,
		       platform_creator_username, platform_creator_display_name
		FROM samples
		WHERE sample_id = $1
	`

	var s models.SampleSnapshot
	err := r.pool.QueryRow(ctx, query, sampleID).Scan(
		&s.SampleID,
		&s.Region,
		&s.Status,
		&s.ContentSummary,
		&s.AdCode,
		&s.PlatformProductID,
		&s.PlatformCreatorID,
		&s.PlatformCreatorUsername,
		&s.PlatformCreatorDisplayName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %s: %w", sampleID, err)
	}
	return &s, nil
}

// UpsertSample writes the latest crawled state for a sample. content_summary
// is a jsonb column; pgx encodes the entry slice directly.
func (r *PostgresRepository) UpsertSample(ctx context.Context, s models.SampleSnapshot) error {
	query := `
		INSERT INTO samples
			(sample_id, region, status, content_summary, ad_code,
			 platform_product_id, platform_creator_id,
			 platform_creator_username, platform_creator_display_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP)
		ON CONFLICT (sample_id) DO UPDATE SET
			region = EXCLUDED.region,
			status = EXCLUDED.status,
			content_summary = EXCLUDED.content_summary,
			ad_code = EXCLUDED.ad_code,
			platform_product_id = EXCLUDED.platform_product_id,
			platform_creator_id = EXCLUDED.platform_creator_id,
			platform_creator_username = EXCLUDED.platform_creator_username,
			platform_creator_display_name = EXCLUDED.platform_creator_display_name,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.pool.Exec(ctx, query,
		s.SampleID, s.Region, s.Status, s.ContentSummary, s.AdCode,
		s.PlatformProductID, s.PlatformCreatorID,
		s.PlatformCreatorUsername, s.PlatformCreatorDisplayName,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sample %s: %w", s.SampleID, err)
	}
	return nil
}

// AppendCrawlLog records one crawler observation of a (product, creator)
// subject. The log is append-only; HasCrawlLog only cares about existence.
func (r *PostgresRepository) AppendCrawlLog(ctx context.Context, platformProductID, creatorDisplayName string) error {
	if platformProductID == "" || creatorDisplayName == "" {
		return nil
	}
	query := `
		INSERT INTO crawl_logs (platform_product_id, creator_display_name, observed_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
	`
	_, err := r.pool.Exec(ctx, query, platformProductID, creatorDisplayName)
	if err != nil {
		return fmt.Errorf("failed to append crawl log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) HasCrawlLog(ctx context.Context, platformProductID, creatorDisplayName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM crawl_logs
			WHERE platform_product_id = $1 AND creator_display_name = $2
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, platformProductID, creatorDisplayName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check crawl log: %w", err)
	}
	return exists, nil
}

// LoadCreatorWhatsapp returns the stored WhatsApp number for a creator, empty
// when the creator is unknown or has never shared one.
func (r *PostgresRepository) LoadCreatorWhatsapp(ctx context.Context, platformCreatorID string) (string, error) {
	query := `SELECT COALESCE(whatsapp, '') FROM creators WHERE platform_creator_id = $1`

	var whatsapp string
	err := r.pool.QueryRow(ctx, query, platformCreatorID).Scan(&whatsapp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load creator whatsapp: %w", err)
	}
	return whatsapp, nil
}

// LoadProductName returns the display name for a platform product, empty when
// unknown. Message templates fall back to the bare product id.
func (r *PostgresRepository) LoadProductName(ctx context.Context, platformProductID string) (string, error) {
	query := `SELECT name FROM products WHERE platform_product_id = $1`

	var name string
	err := r.pool.QueryRow(ctx, query, platformProductID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load product name: %w", err)
	}
	return name, nil
}

// CreatorHistory returns past interaction outcomes for a creator, newest
// first. The outreach decision policy consumes this; nothing in the scheduling
// path does.
func (r *PostgresRepository) CreatorHistory(ctx context.Context, platformCreatorID string) ([]models.InteractionRecord, error) {
	query := `
		SELECT brand_name, did_connect, did_reply
		FROM creator_interactions
		WHERE platform_creator_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, platformCreatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator history: %w", err)
	}
	defer rows.Close()

	var records []models.InteractionRecord
	for rows.Next() {
		var rec models.InteractionRecord
		if err := rows.Scan(&rec.BrandName, &rec.DidConnect, &rec.DidReply); err != nil {
			return nil, fmt.Errorf("failed to scan interaction record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
