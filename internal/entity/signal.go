package entity

import (
	"time"
)

const (
	SignalStatusIngested = "ingested"
	SignalStatusDropped  = "dropped"
)

// Signal represents one raw ingested news/search item. Signals are append
// only: once written they are never mutated. Dedup happens on the normalized
// URL and on the content hash, so resyndicated copies of the same article
// collapse into one record.
type Signal struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	SourceName       string     `gorm:"type:varchar(255);not null" json:"source_name"`
	Title            string     `gorm:"not null" json:"title"`
	URL              string     `gorm:"not null" json:"url"`
	NormalizedURL    string     `gorm:"uniqueIndex;not null" json:"normalized_url"`
	RawText          string     `gorm:"type:text" json:"raw_text"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	ContentHash      string     `gorm:"uniqueIndex;not null" json:"content_hash"`
	CredibilityTier  int        `gorm:"not null" json:"credibility_tier"`
	CredibilityScore float64    `gorm:"not null" json:"credibility_score"`
	Status           string     `gorm:"type:varchar(20);not null" json:"status"`
	DropReason       string     `gorm:"type:varchar(100)" json:"drop_reason,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Signal model.
func (Signal) TableName() string {
	return "signals"
}
