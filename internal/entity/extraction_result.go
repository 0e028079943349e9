package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Event categories an extraction may produce. The set is closed; anything
// else fails schema validation.
const (
	EventCategoryLaunch           = "launch"
	EventCategoryPricingChange    = "pricing_change"
	EventCategoryPartnership      = "partnership"
	EventCategoryAcquisition      = "acquisition"
	EventCategoryRegulatoryAction = "regulatory_action"
	EventCategoryOutage           = "outage"
	EventCategoryLeadershipChange = "leadership_change"
	EventCategoryFunding          = "funding"
	EventCategoryMarketExpansion  = "market_expansion"
)

// EventCategories lists every valid event category.
var EventCategories = []string{
	EventCategoryLaunch,
	EventCategoryPricingChange,
	EventCategoryPartnership,
	EventCategoryAcquisition,
	EventCategoryRegulatoryAction,
	EventCategoryOutage,
	EventCategoryLeadershipChange,
	EventCategoryFunding,
	EventCategoryMarketExpansion,
}

// Risk axes along which impact is assessed.
const (
	AxisMarket     = "market"
	AxisProduct    = "product"
	AxisPricing    = "pricing"
	AxisRegulatory = "regulatory"
	AxisBrand      = "brand"
)

// RiskAxes lists every valid impact axis.
var RiskAxes = []string{AxisMarket, AxisProduct, AxisPricing, AxisRegulatory, AxisBrand}

// ValidEventCategory reports whether category belongs to the closed enum.
func ValidEventCategory(category string) bool {
	for _, c := range EventCategories {
		if c == category {
			return true
		}
	}
	return false
}

// ValidAxis reports whether axis is one of the five risk axes.
func ValidAxis(axis string) bool {
	for _, a := range RiskAxes {
		if a == axis {
			return true
		}
	}
	return false
}

// Impact levels per axis.
const (
	ImpactLevelHigh   = "high"
	ImpactLevelMedium = "medium"
	ImpactLevelLow    = "low"
)

// ValidImpactLevel reports whether level is an allowed per-axis level.
func ValidImpactLevel(level string) bool {
	return level == ImpactLevelHigh || level == ImpactLevelMedium || level == ImpactLevelLow
}

// Verification verdicts.
const (
	VerdictApproved            = "approved"
	VerdictRejected            = "rejected"
	VerdictPendingManualReview = "pending_manual_review"
)

// ExtractionResult is the validated structured output of one extraction call
// for a (watch item, signal) pair, together with the verification verdict
// later computed over it. Analytical content is immutable once written.
type ExtractionResult struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SignalID         uint           `gorm:"not null;uniqueIndex:idx_extraction_watch_signal" json:"signal_id"`
	Signal           Signal         `gorm:"foreignKey:SignalID" json:"signal,omitempty"`
	WatchItemID      uint           `gorm:"not null;uniqueIndex:idx_extraction_watch_signal" json:"watch_item_id"`
	EventCategory    string         `gorm:"type:varchar(50);not null" json:"event_category"`
	Summary          string         `gorm:"type:text" json:"summary"`
	AffectedProducts pq.StringArray `gorm:"type:text[]" json:"affected_products"`
	Impacts          datatypes.JSON `gorm:"type:jsonb" json:"impacts"`
	Recommendations  datatypes.JSON `gorm:"type:jsonb" json:"recommendations"`
	CitedSources     datatypes.JSON `gorm:"type:jsonb" json:"cited_sources"`
	RawConfidence    float64        `gorm:"not null" json:"raw_confidence"`

	Verdict       string    `gorm:"type:varchar(30)" json:"verdict,omitempty"`
	VerdictRule   string    `gorm:"type:varchar(100)" json:"verdict_rule,omitempty"`
	VerdictDetail string    `gorm:"type:text" json:"verdict_detail,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the ExtractionResult model.
func (ExtractionResult) TableName() string {
	return "extraction_results"
}
