package client

import "github.com/loykin/loungeclock/internal/record"

// SaveRequest replaces the remote snapshot.
type SaveRequest struct {
	Clients     []record.Record `json:"clients"`
	Password    string          `json:"password"`
	Description string          `json:"description"`
}

// PasswordRequest asks the remote store to validate a secret.
type PasswordRequest struct {
	Password string `json:"password"`
}

// PasswordResponse is the answer to PasswordRequest.
type PasswordResponse struct {
	Valid bool `json:"valid"`
}

// AutoPauseRequest records an automatic expiry.
type AutoPauseRequest struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
