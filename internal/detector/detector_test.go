package detector

import (
	"testing"

	"github.com/Guizzs26/sample-outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findEvent(events []Event, scenario models.Scenario) (Event, bool) {
	for _, e := range events {
		if e.Scenario == scenario {
			return e, true
		}
	}
	return Event{}, false
}

func TestIsEmptyContentSummary(t *testing.T) {
	tests := []struct {
		name    string
		entries []models.ContentEntry
		want    bool
	}{
		{"nil summary", nil, true},
		{"empty slice", []models.ContentEntry{}, true},
		{"logistics only", []models.ContentEntry{{Type: "logistics"}}, true},
		{"logistics with promotion fields", []models.ContentEntry{{Type: "logistics", PromotionName: "x"}}, true},
		{"untyped without promotion", []models.ContentEntry{{}}, true},
		{"untyped with promotion name", []models.ContentEntry{{PromotionName: "spring sale"}}, false},
		{"untyped with promotion time", []models.ContentEntry{{PromotionTime: "2026-01-01"}}, false},
		{"video entry", []models.ContentEntry{{Type: "video"}}, false},
		{"live entry mixed with logistics", []models.ContentEntry{{Type: "logistics"}, {Type: "live"}}, false},
		{"case-insensitive type", []models.ContentEntry{{Type: " Logistics "}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmptyContentSummary(tt.entries))
		})
	}
}

func TestHasVideo(t *testing.T) {
	assert.False(t, HasVideo(nil))
	assert.False(t, HasVideo([]models.ContentEntry{{Type: "logistics"}, {Type: "live"}}))
	assert.True(t, HasVideo([]models.ContentEntry{{Type: "logistics"}, {Type: "video"}}))
	assert.True(t, HasVideo([]models.ContentEntry{{Type: "VIDEO"}}))
}

func TestDetectNoPreviousSnapshotNeverFiresOneShot(t *testing.T) {
	curr := models.SampleSnapshot{SampleID: "S1", Status: "Shipped"}

	events := Detect(nil, curr, false)

	for _, e := range events {
		assert.NotEqual(t, TriggerOneShot, e.Kind, "first ingest must not fire one-shot events")
	}
}

func TestDetectStatusTransitions(t *testing.T) {
	tests := []struct {
		name     string
		prev     string
		curr     string
		scenario models.Scenario
		fired    bool
	}{
		{"to shipped", "content pending", "Shipped", models.ScenarioShipped, true},
		{"to content pending", "shipped", "Content Pending", models.ScenarioContentPending, true},
		{"unchanged status", "shipped", "shipped", models.ScenarioShipped, false},
		{"unchanged modulo case", "Shipped", " shipped ", models.ScenarioShipped, false},
		{"to unrelated status", "shipped", "cancelled", models.ScenarioShipped, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := &models.SampleSnapshot{SampleID: "S1", Status: tt.prev}
			curr := models.SampleSnapshot{SampleID: "S1", Status: tt.curr}

			events := Detect(prev, curr, false)

			e, ok := findEvent(events, tt.scenario)
			if tt.fired {
				require.True(t, ok)
				assert.Equal(t, TriggerOneShot, e.Kind)
			} else if ok {
				assert.NotEqual(t, TriggerOneShot, e.Kind)
			}
		})
	}
}

func TestDetectNoContentPosted(t *testing.T) {
	curr := models.SampleSnapshot{SampleID: "S1", Status: "completed"}

	e, ok := findEvent(Detect(nil, curr, false), models.ScenarioNoContentPosted)
	require.True(t, ok)
	assert.Equal(t, TriggerRepeating, e.Kind)
	assert.True(t, e.Holds)

	// Condition resolves once real content shows up.
	curr.ContentSummary = []models.ContentEntry{{Type: "video"}}
	e, ok = findEvent(Detect(nil, curr, false), models.ScenarioNoContentPosted)
	require.True(t, ok)
	assert.False(t, e.Holds)

	// Not completed yet: nothing overdue.
	curr = models.SampleSnapshot{SampleID: "S1", Status: "shipped"}
	e, _ = findEvent(Detect(nil, curr, false), models.ScenarioNoContentPosted)
	assert.False(t, e.Holds)
}

func TestDetectMissingAdCode(t *testing.T) {
	curr := models.SampleSnapshot{
		SampleID:       "S1",
		Status:         "completed",
		ContentSummary: []models.ContentEntry{{Type: "video"}},
	}

	e, ok := findEvent(Detect(nil, curr, true), models.ScenarioMissingAdCode)
	require.True(t, ok)
	assert.True(t, e.Holds)

	// Unobserved samples are gated out even when the data looks right.
	e, _ = findEvent(Detect(nil, curr, false), models.ScenarioMissingAdCode)
	assert.False(t, e.Holds)

	// No video means no ad code to ask for.
	noVideo := curr
	noVideo.ContentSummary = []models.ContentEntry{{Type: "logistics"}}
	e, _ = findEvent(Detect(nil, noVideo, true), models.ScenarioMissingAdCode)
	assert.False(t, e.Holds)

	// Ad code present: resolved.
	withCode := curr
	withCode.AdCode = "AD-123"
	e, _ = findEvent(Detect(nil, withCode, true), models.ScenarioMissingAdCode)
	assert.False(t, e.Holds)
}

func TestConditionHolds(t *testing.T) {
	tests := []struct {
		name     string
		scenario models.Scenario
		sample   models.SampleSnapshot
		want     bool
	}{
		{"shipped still shipped", models.ScenarioShipped, models.SampleSnapshot{Status: "Shipped"}, true},
		{"shipped moved on", models.ScenarioShipped, models.SampleSnapshot{Status: "completed"}, false},
		{"content pending holds", models.ScenarioContentPending, models.SampleSnapshot{Status: "content pending"}, true},
		{"no content holds", models.ScenarioNoContentPosted, models.SampleSnapshot{Status: "completed"}, true},
		{
			"no content resolved",
			models.ScenarioNoContentPosted,
			models.SampleSnapshot{Status: "completed", ContentSummary: []models.ContentEntry{{Type: "video"}}},
			false,
		},
		{"missing ad code holds", models.ScenarioMissingAdCode, models.SampleSnapshot{}, true},
		{"missing ad code resolved", models.ScenarioMissingAdCode, models.SampleSnapshot{AdCode: "AD-1"}, false},
		{"unknown scenario", models.Scenario("mystery"), models.SampleSnapshot{Status: "shipped"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConditionHolds(tt.scenario, tt.sample))
		})
	}
}
