package dto

import (
	"encoding/json"
	"time"
)

// ImpactCardResponse is the API view of an assembled impact card. The jsonb
// columns are passed through verbatim; their shapes are fixed at assembly
// time and never rewritten afterwards.
type ImpactCardResponse struct {
	ID              uint            `json:"id"`
	WatchItemID     uint            `json:"watch_item_id"`
	EventCategory   string          `json:"event_category,omitempty"`
	Summary         string          `json:"summary"`
	RiskScore       float64         `json:"risk_score"`
	RiskLevel       string          `json:"risk_level"`
	RiskBreakdown   json.RawMessage `json:"risk_breakdown,omitempty"`
	ConfidenceScore float64         `json:"confidence_score"`
	ConfidenceParts json.RawMessage `json:"confidence_parts,omitempty"`
	Actions         json.RawMessage `json:"actions,omitempty"`
	Sources         json.RawMessage `json:"sources,omitempty"`
	Delayed         bool            `json:"delayed"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	AcknowledgedAt  *time.Time      `json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ListImpactCardsQuery carries the supported impact card list filters.
type ListImpactCardsQuery struct {
	WatchItemID uint   `query:"watch_item_id"`
	RiskLevel   string `query:"risk_level"`
	Limit       int    `query:"limit"`
}
