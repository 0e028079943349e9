package dto

import "time"

// CreateWatchItemRequest is the payload for registering a new watch item.
type CreateWatchItemRequest struct {
	Name           string             `json:"name"`
	Keywords       []string           `json:"keywords"`
	GeographyCodes []string           `json:"geography_codes"`
	Products       []string           `json:"products"`
	RiskThresholds map[string]float64 `json:"risk_thresholds"`
	Schedule       string             `json:"schedule"`
	Active         *bool              `json:"active"`
}

// UpdateWatchItemRequest is the payload for editing an existing watch item.
type UpdateWatchItemRequest struct {
	Name           string             `json:"name"`
	Keywords       []string           `json:"keywords"`
	GeographyCodes []string           `json:"geography_codes"`
	Products       []string           `json:"products"`
	RiskThresholds map[string]float64 `json:"risk_thresholds"`
	Schedule       string             `json:"schedule"`
	Active         *bool              `json:"active"`
}

// WatchItemResponse is the API view of a watch item.
type WatchItemResponse struct {
	ID             uint               `json:"id"`
	Name           string             `json:"name"`
	Keywords       []string           `json:"keywords"`
	GeographyCodes []string           `json:"geography_codes,omitempty"`
	Products       []string           `json:"products,omitempty"`
	RiskThresholds map[string]float64 `json:"risk_thresholds,omitempty"`
	Schedule       string             `json:"schedule,omitempty"`
	Active         bool               `json:"active"`
	LastRunAt      *time.Time         `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time         `json:"next_run_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
