package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Risk levels derived from the weighted risk score.
const (
	RiskLevelCritical = "Critical"
	RiskLevelHigh     = "High"
	RiskLevelMedium   = "Medium"
	RiskLevelLow      = "Low"
)

// ValidRiskLevel reports whether level is one of the four risk levels.
func ValidRiskLevel(level string) bool {
	switch level {
	case RiskLevelCritical, RiskLevelHigh, RiskLevelMedium, RiskLevelLow:
		return true
	}
	return false
}

// ImpactCard is the externally visible artifact: a verified, scored,
// source-backed assessment of one competitive event. Its analytical content
// is immutable; AcknowledgedAt is the only field a user may set.
type ImpactCard struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	ExtractionResultID uint             `gorm:"not null;uniqueIndex" json:"extraction_result_id"`
	ExtractionResult   ExtractionResult `gorm:"foreignKey:ExtractionResultID" json:"extraction_result,omitempty"`
	WatchItemID        uint             `gorm:"not null;index" json:"watch_item_id"`
	Summary            string           `gorm:"type:text;not null" json:"summary"`
	RiskScore          float64          `gorm:"not null" json:"risk_score"`
	RiskLevel          string           `gorm:"type:varchar(20);not null" json:"risk_level"`
	RiskBreakdown      datatypes.JSON   `gorm:"type:jsonb" json:"risk_breakdown"`
	ConfidenceScore    float64          `gorm:"not null" json:"confidence_score"`
	ConfidenceParts    datatypes.JSON   `gorm:"type:jsonb" json:"confidence_parts"`
	Actions            datatypes.JSON   `gorm:"type:jsonb" json:"actions"`
	Sources            datatypes.JSON   `gorm:"type:jsonb" json:"sources"`
	Delayed            bool             `gorm:"default:false" json:"delayed"`
	ExpiresAt          *time.Time       `json:"expires_at,omitempty"`
	AcknowledgedAt     *time.Time       `json:"acknowledged_at,omitempty"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the ImpactCard model.
func (ImpactCard) TableName() string {
	return "impact_cards"
}
