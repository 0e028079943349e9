package dto

import (
	"encoding/json"
	"time"
)

// ResearchReportResponse is the API view of a deep-research report. Reused
// marks responses served from an earlier report that is still inside its
// cache window.
type ResearchReportResponse struct {
	ID           uint            `json:"id"`
	ImpactCardID uint            `json:"impact_card_id"`
	Status       string          `json:"status"`
	Sections     json.RawMessage `json:"sections,omitempty"`
	SourceCount  int             `json:"source_count"`
	ReportBody   string          `json:"report_body,omitempty"`
	Degraded     bool            `json:"degraded"`
	GenerationMs int64           `json:"generation_ms"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Reused       bool            `json:"reused,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
