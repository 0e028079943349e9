package entity

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ReviewKindExtractionFailure  = "extraction_failure"
	ReviewKindVerificationReview = "verification_review"

	ReviewStatusOpen     = "open"
	ReviewStatusResolved = "resolved"
)

// ReviewItem queues a signal for manual handling: extractions that failed
// schema validation twice, and verifications that landed in the borderline
// margin. Context preserves the evidence present at failure time so nothing
// fails silently.
type ReviewItem struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Kind               string         `gorm:"type:varchar(30);not null" json:"kind"`
	SignalID           uint           `gorm:"not null;index" json:"signal_id"`
	WatchItemID        uint           `gorm:"not null;index" json:"watch_item_id"`
	ExtractionResultID *uint          `json:"extraction_result_id,omitempty"`
	Stage              string         `gorm:"type:varchar(20)" json:"stage"`
	Reason             string         `gorm:"type:varchar(100);not null" json:"reason"`
	Context            datatypes.JSON `gorm:"type:jsonb" json:"context"`
	Status             string         `gorm:"type:varchar(20);not null" json:"status"`
	ResolvedAt         *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the ReviewItem model.
func (ReviewItem) TableName() string {
	return "review_items"
}
