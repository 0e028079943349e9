package dto

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
