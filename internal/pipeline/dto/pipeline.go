package dto

import "time"

// IngestTaskPayload is the message published to the watch-ingest stream.
type IngestTaskPayload struct {
	RunID       uint `json:"run_id"`
	WatchItemID uint `json:"watch_item_id"`
}

// ResearchTaskPayload is the message published to the card-research stream.
type ResearchTaskPayload struct {
	ReportID     uint `json:"report_id"`
	ImpactCardID uint `json:"impact_card_id"`
}

// ProgressEvent is emitted on the progress channel as a run advances through
// the pipeline stages.
type ProgressEvent struct {
	RunID       uint      `json:"run_id"`
	WatchItemID uint      `json:"watch_item_id"`
	Stage       string    `json:"stage"`
	Delayed     bool      `json:"delayed,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
