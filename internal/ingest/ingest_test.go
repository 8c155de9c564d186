package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Guizzs26/sample-outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	stored    map[string]models.SampleSnapshot
	crawlLogs [][2]string
	upsertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stored: make(map[string]models.SampleSnapshot)}
}

func (r *fakeRepo) GetSampleSnapshot(_ context.Context, id string) (*models.SampleSnapshot, error) {
	if s, ok := r.stored[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *fakeRepo) UpsertSample(_ context.Context, s models.SampleSnapshot) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.stored[s.SampleID] = s
	return nil
}

func (r *fakeRepo) AppendCrawlLog(_ context.Context, productID, displayName string) error {
	r.crawlLogs = append(r.crawlLogs, [2]string{productID, displayName})
	return nil
}

type recordingApplier struct {
	calls []struct {
		previous *models.SampleSnapshot
		current  models.SampleSnapshot
	}
	err error
}

func (a *recordingApplier) ApplySnapshot(_ context.Context, previous *models.SampleSnapshot, current models.SampleSnapshot) error {
	a.calls = append(a.calls, struct {
		previous *models.SampleSnapshot
		current  models.SampleSnapshot
	}{previous, current})
	return a.err
}

func newTestService(repo SampleRepository, applier SnapshotApplier) *Service {
	return NewService(repo, applier, "MX", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	s := newTestService(newFakeRepo(), &recordingApplier{})

	err := s.HandleMessage(context.Background(), "M1", []byte("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FATAL:")

	err = s.HandleMessage(context.Background(), "M2", []byte(`{"operatorId":"op","samples":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FATAL:")
}

func TestIngestBatchFirstObservation(t *testing.T) {
	repo := newFakeRepo()
	applier := &recordingApplier{}
	s := newTestService(repo, applier)

	batch := CrawlBatch{
		OperatorID: "op",
		Samples: []models.SampleSnapshot{{
			SampleID:                   "S1",
			Status:                     "shipped",
			PlatformProductID:          "P1",
			PlatformCreatorDisplayName: "Creator One",
		}},
	}
	require.NoError(t, s.IngestBatch(context.Background(), batch))

	require.Len(t, applier.calls, 1)
	assert.Nil(t, applier.calls[0].previous, "first ingest has no previous snapshot")
	assert.Equal(t, "MX", applier.calls[0].current.Region, "empty region defaults")
	assert.Equal(t, "S1", repo.stored["S1"].SampleID)
	require.Len(t, repo.crawlLogs, 1)
	assert.Equal(t, [2]string{"P1", "Creator One"}, repo.crawlLogs[0])
}

func TestIngestBatchPassesPreviousSnapshot(t *testing.T) {
	repo := newFakeRepo()
	repo.stored["S1"] = models.SampleSnapshot{SampleID: "S1", Status: "content pending"}
	applier := &recordingApplier{}
	s := newTestService(repo, applier)

	batch := CrawlBatch{Samples: []models.SampleSnapshot{{SampleID: "S1", Status: "shipped"}}}
	require.NoError(t, s.IngestBatch(context.Background(), batch))

	require.Len(t, applier.calls, 1)
	require.NotNil(t, applier.calls[0].previous)
	assert.Equal(t, "content pending", applier.calls[0].previous.Status)
	assert.Equal(t, "shipped", applier.calls[0].current.Status)
}

func TestIngestBatchSkipsSamplesWithoutID(t *testing.T) {
	repo := newFakeRepo()
	applier := &recordingApplier{}
	s := newTestService(repo, applier)

	batch := CrawlBatch{Samples: []models.SampleSnapshot{
		{SampleID: "  "},
		{SampleID: "S2", Status: "completed"},
	}}
	require.NoError(t, s.IngestBatch(context.Background(), batch))

	assert.Len(t, applier.calls, 1)
	assert.Len(t, repo.stored, 1)
}

func TestIngestBatchScheduleFailureIsNotFatal(t *testing.T) {
	repo := newFakeRepo()
	applier := &recordingApplier{err: errors.New("schedule store down")}
	s := newTestService(repo, applier)

	batch := CrawlBatch{Samples: []models.SampleSnapshot{{SampleID: "S1"}}}
	assert.NoError(t, s.IngestBatch(context.Background(), batch), "crawled data must still land")
	assert.Len(t, repo.stored, 1)
}

func TestIngestBatchStorageFailurePropagates(t *testing.T) {
	repo := newFakeRepo()
	repo.upsertErr = errors.New("db down")
	s := newTestService(repo, &recordingApplier{})

	batch := CrawlBatch{Samples: []models.SampleSnapshot{{SampleID: "S1"}}}
	err := s.IngestBatch(context.Background(), batch)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "FATAL:", "storage errors are retryable")
}
