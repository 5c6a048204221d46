// Package dto defines the HTTP request and response shapes for API v1.
package dto

// IDResponse returns a created resource identifier.
type IDResponse struct {
	ID string `json:"id"`
}

// SuccessResponse reports a simple operation result.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
