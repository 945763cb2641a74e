package schemas

import "time"

// -- Common Schemas --

// ErrorResponse is returned for requests that fail before reaching a handler's own envelope,
// such as malformed JSON or an unknown session.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SessionRequest carries only a session identifier (test, disconnect, close).
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// SuccessResponse acknowledges an operation with no payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is served by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ContentRecord is the canonical post/tweet shape shared by every platform.
type ContentRecord struct {
	ExternalID  string `json:"external_id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Author      string `json:"author,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}
