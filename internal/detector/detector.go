package detector

import (
	"strings"

	"github.com/Guizzs26/sample-outreach/internal/models"
)

// TriggerKind classifies how a scenario was raised: edge-triggered status
// transitions fire once, level-triggered conditions are re-evaluated on every
// snapshot and carry a Holds flag.
type TriggerKind string

const (
	TriggerOneShot   TriggerKind = "one_shot"
	TriggerRepeating TriggerKind = "repeating"
)

// Event is one scheduling decision derived from a snapshot pair.
type Event struct {
	Scenario models.Scenario
	Kind     TriggerKind

	// Holds is meaningful for repeating events only: true means the condition
	// is currently true (schedule), false means it resolved (deactivate).
	Holds bool
}

// NormalizeStatus lowercases and trims a lifecycle status for comparison.
// Statuses are free text upstream, so all matching goes through here.
func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// IsEmptyContentSummary reports whether a content summary contains no
// published content. Logistics snapshots only describe shipping and never
// qualify; any other typed entry, or any entry carrying promotion fields,
// counts as content.
func IsEmptyContentSummary(entries []models.ContentEntry) bool {
	for _, e := range entries {
		t := NormalizeStatus(e.Type)
		if t != "" && t != "logistics" {
			return false
		}
		hasPromotion := strings.TrimSpace(e.PromotionName) != "" ||
			strings.TrimSpace(e.PromotionTime) != ""
		if hasPromotion && t != "logistics" {
			return false
		}
	}
	return true
}

// IsAdCodeEmpty reports whether the sample has no ad code yet.
func IsAdCodeEmpty(adCode string) bool {
	return strings.TrimSpace(adCode) == ""
}

// HasVideo reports whether the content summary contains at least one video
// entry. The missing_ad_code reminder only makes sense once a video exists.
func HasVideo(entries []models.ContentEntry) bool {
	for _, e := range entries {
		if NormalizeStatus(e.Type) == "video" {
			return true
		}
	}
	return false
}

// Detect compares the previous and current snapshot of one sample and returns
// the scheduling events that apply.
//
// One-shot events fire only on a status transition, which requires a previous
// snapshot: the very first ingest of a sample never fires them. The repeating
// conditions are evaluated against the current snapshot alone and are always
// emitted, with Holds carrying the verdict, so the caller can deactivate a
// schedule whose condition resolved out-of-band.
//
// observed tells whether the sample was previously seen by the crawler (the
// crawl-log gate); missing_ad_code never holds for unobserved samples.
func Detect(previous *models.SampleSnapshot, current models.SampleSnapshot, observed bool) []Event {
	events := make([]Event, 0, 4)

	currStatus := NormalizeStatus(current.Status)
	if previous != nil {
		prevStatus := NormalizeStatus(previous.Status)
		if currStatus != "" && currStatus != prevStatus {
			switch currStatus {
			case models.StatusShipped:
				events = append(events, Event{Scenario: models.ScenarioShipped, Kind: TriggerOneShot})
			case models.StatusContentPending:
				events = append(events, Event{Scenario: models.ScenarioContentPending, Kind: TriggerOneShot})
			}
		}
	}

	noContent := currStatus == models.StatusCompleted && IsEmptyContentSummary(current.ContentSummary)
	events = append(events, Event{
		Scenario: models.ScenarioNoContentPosted,
		Kind:     TriggerRepeating,
		Holds:    noContent,
	})

	missingAdCode := observed && HasVideo(current.ContentSummary) && IsAdCodeEmpty(current.AdCode)
	events = append(events, Event{
		Scenario: models.ScenarioMissingAdCode,
		Kind:     TriggerRepeating,
		Holds:    missingAdCode,
	})

	return events
}

// ConditionHolds re-checks a scheduled scenario against the current snapshot.
// The publisher calls this right before sending: time may have passed since
// scheduling and the condition may have resolved.
func ConditionHolds(scenario models.Scenario, sample models.SampleSnapshot) bool {
	status := NormalizeStatus(sample.Status)
	switch scenario {
	case models.ScenarioShipped:
		return status == models.StatusShipped
	case models.ScenarioContentPending:
		return status == models.StatusContentPending
	case models.ScenarioNoContentPosted:
		return status == models.StatusCompleted && IsEmptyContentSummary(sample.ContentSummary)
	case models.ScenarioMissingAdCode:
		return IsAdCodeEmpty(sample.AdCode)
	default:
		return false
	}
}
