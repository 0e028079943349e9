package entity

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ResearchStatusPending   = "pending"
	ResearchStatusRunning   = "running"
	ResearchStatusCompleted = "completed"
	ResearchStatusFailed    = "failed"
)

// ResearchReport is an on-demand deep-dive attached to an impact card,
// cached until ExpiresAt. Degraded marks reports assembled from cached
// context only after the synthesis upstream failed.
type ResearchReport struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ImpactCardID uint           `gorm:"not null;index" json:"impact_card_id"`
	ImpactCard   ImpactCard     `gorm:"foreignKey:ImpactCardID" json:"impact_card,omitempty"`
	Status       string         `gorm:"type:varchar(20);not null" json:"status"`
	Sections     datatypes.JSON `gorm:"type:jsonb" json:"sections"`
	SourceCount  int            `json:"source_count"`
	ReportBody   string         `gorm:"type:text" json:"report_body"`
	Degraded     bool           `gorm:"default:false" json:"degraded"`
	GenerationMs int64          `json:"generation_ms"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the ResearchReport model.
func (ResearchReport) TableName() string {
	return "research_reports"
}
