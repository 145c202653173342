package domain

import "time"

// Event is a telemetry record emitted by the auth server (RPC outcomes) and the email worker (job lifecycle).
// Empty string fields are omitted by sinks.
type Event struct {
	EventType string            `json:"event_type"`
	Source    string            `json:"source"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	JobID     string            `json:"job_id,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Metadata  []byte            `json:"metadata,omitempty"` // JSON
	CreatedAt time.Time         `json:"created_at"`
}
