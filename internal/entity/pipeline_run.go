package entity

import (
	"time"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Progress stages reported while a run moves through the pipeline.
const (
	StageQueued     = "queued"
	StageIngesting  = "ingesting"
	StageEnriching  = "enriching"
	StageExtracting = "extracting"
	StageVerifying  = "verifying"
	StageScoring    = "scoring"
	StageAssembling = "assembling"
	StageDone       = "done"
	StageFailed     = "failed"
)

// PipelineRun is the async handle for one card-generation run of a watch
// item.
type PipelineRun struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	WatchItemID    uint       `gorm:"not null;index" json:"watch_item_id"`
	Status         string     `gorm:"type:varchar(20);not null" json:"status"`
	Stage          string     `gorm:"type:varchar(20)" json:"stage"`
	Delayed        bool       `gorm:"default:false" json:"delayed"`
	SignalsFound   int        `json:"signals_found"`
	SignalsDropped int        `json:"signals_dropped"`
	CardsCreated   int        `json:"cards_created"`
	FailureStage   string     `gorm:"type:varchar(20)" json:"failure_stage,omitempty"`
	FailureDetail  string     `gorm:"type:text" json:"failure_detail,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the PipelineRun model.
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
