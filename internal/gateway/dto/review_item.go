package dto

import (
	"encoding/json"
	"time"
)

// ReviewItemResponse is the API view of a queued manual-review item.
type ReviewItemResponse struct {
	ID                 uint            `json:"id"`
	Kind               string          `json:"kind"`
	SignalID           uint            `json:"signal_id"`
	WatchItemID        uint            `json:"watch_item_id"`
	ExtractionResultID *uint           `json:"extraction_result_id,omitempty"`
	Stage              string          `json:"stage,omitempty"`
	Reason             string          `json:"reason"`
	Context            json.RawMessage `json:"context,omitempty"`
	Status             string          `json:"status"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}
