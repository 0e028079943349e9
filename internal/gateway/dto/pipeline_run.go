package dto

import "time"

// PipelineRunResponse is the API view of a card-generation run.
type PipelineRunResponse struct {
	ID             uint       `json:"id"`
	WatchItemID    uint       `json:"watch_item_id"`
	Status         string     `json:"status"`
	Stage          string     `json:"stage,omitempty"`
	Delayed        bool       `json:"delayed"`
	SignalsFound   int        `json:"signals_found"`
	SignalsDropped int        `json:"signals_dropped"`
	CardsCreated   int        `json:"cards_created"`
	FailureStage   string     `json:"failure_stage,omitempty"`
	FailureDetail  string     `json:"failure_detail,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TriggerRunResponse is returned when a card-generation run is requested.
// Debounced means a recent request already covers this watch item and Run
// points at that earlier run instead of a fresh one.
type TriggerRunResponse struct {
	Run       *PipelineRunResponse `json:"run,omitempty"`
	Debounced bool                 `json:"debounced"`
}
