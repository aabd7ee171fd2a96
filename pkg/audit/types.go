package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypeRegister    EventType = "auth.register"
	EventTypeLogin       EventType = "auth.login"
	EventTypeTokenVerify EventType = "auth.token_verify"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry. It never carries a password, a token
// or a password hash.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	Subject string `json:"subject,omitempty"`
	Email   string `json:"email,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Reason is the failure class: a verification gate, "duplicate", ...
	Reason string `json:"reason,omitempty"`
}
