package dto

import "time"

// ExtractionRequest is everything the structured-extraction upstream needs
// for one (watch item, signal) pair.
type ExtractionRequest struct {
	WatchItemName  string           `json:"watch_item_name"`
	Portfolio      []string         `json:"portfolio"`
	Signal         SearchItem       `json:"signal"`
	Entities       []NamedEntity    `json:"entities"`
	Context        []ContextSnippet `json:"context"`
	CorrectiveNote string           `json:"corrective_note,omitempty"`
}

// ExtractionPayload is the JSON document the extraction upstream must
// return. Validate rejects anything outside the closed schema before the
// payload reaches the rest of the pipeline.
type ExtractionPayload struct {
	EventCategory    string              `json:"event_category"`
	Summary          string              `json:"summary"`
	AffectedProducts []string            `json:"affected_products"`
	Impacts          []AxisImpact        `json:"impacts"`
	Recommendations  []RecommendedAction `json:"recommendations"`
	CitedSources     []CitedSource       `json:"cited_sources"`
	Confidence       float64             `json:"confidence"`
}

// AxisImpact is one (axis, level, rationale) impact tuple.
type AxisImpact struct {
	Axis      string `json:"axis"`
	Level     string `json:"level"`
	Rationale string `json:"rationale"`
}

// RecommendedAction is one recommended action with owner and timeline.
type RecommendedAction struct {
	Owner    string `json:"owner"`
	Action   string `json:"action"`
	DueDays  int    `json:"due_days"`
	Priority string `json:"priority"`
}

// CitedSource is one evidence source with provenance. Tier and credibility
// are attached by the pipeline, not trusted from the upstream.
type CitedSource struct {
	Title            string     `json:"title"`
	URL              string     `json:"url"`
	SourceName       string     `json:"source_name"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	CredibilityTier  int        `json:"credibility_tier"`
	CredibilityScore float64    `json:"credibility_score"`
}
