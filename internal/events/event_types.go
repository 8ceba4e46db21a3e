package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConfirmationEmailRequested EventType = "confirmation_email_requested"
	EventPasswordResetRequested     EventType = "password_reset_requested"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType EventType, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ConfirmationEmailPayload asks for a confirmation link to be mailed.
type ConfirmationEmailPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	BaseURL  string `json:"base_url"`
}

// PasswordResetPayload carries an already issued reset token.
type PasswordResetPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}
