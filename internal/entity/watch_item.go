package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WatchItem represents a tracked competitor or market entity. LastRunAt and
// NextRunAt are scheduler bookkeeping for items with a cron Schedule.
type WatchItem struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`
	Keywords       pq.StringArray `gorm:"type:text[];not null" json:"keywords"`
	GeographyCodes pq.StringArray `gorm:"type:text[]" json:"geography_codes"`
	Products       pq.StringArray `gorm:"type:text[]" json:"products"`
	RiskThresholds datatypes.JSON `gorm:"type:jsonb" json:"risk_thresholds"`
	Schedule       string         `gorm:"type:varchar(100)" json:"schedule"`
	Active         bool           `gorm:"default:true" json:"active"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName specifies the table name for the WatchItem model.
func (WatchItem) TableName() string {
	return "watch_items"
}
