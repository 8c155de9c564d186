package models

// ContentEntry is one posted-content record inside a sample's content summary.
// The crawler emits logistics snapshots alongside real content; only video/live
// entries count as published content.
type ContentEntry struct {
	Type          string `json:"type"`
	PromotionName string `json:"promotion_name,omitempty"`
	PromotionTime string `json:"promotion_time,omitempty"`
}

// SampleSnapshot is a point-in-time view of one sample. Snapshots are never
// mutated: every ingest produces a new one which is compared against the
// previous snapshot of the same sample.
type SampleSnapshot struct {
	SampleID                   string         `json:"sampleId"`
	Region                     string         `json:"region,omitempty"`
	Status                     string         `json:"status,omitempty"`
	ContentSummary             []ContentEntry `json:"contentSummary,omitempty"`
	AdCode                     string         `json:"adCode,omitempty"`
	PlatformProductID          string         `json:"platformProductId,omitempty"`
	PlatformCreatorID          string         `json:"platformCreatorId,omitempty"`
	PlatformCreatorUsername    string         `json:"platformCreatorUsername,omitempty"`
	PlatformCreatorDisplayName string         `json:"platformCreatorDisplayName,omitempty"`
}
