package event

import (
	"time"
)

// Event type constants
const (
	TypeMessageReceived = "message.received"
	TypeMessageSent     = "message.sent"
	TypeReplyGenerated  = "reply.generated"
	TypeReplySkipped    = "reply.skipped"
	TypeReplyFailed     = "reply.failed"
)

// Event is one assistant lifecycle notification
type Event struct {
	Type      string    `json:"type"`
	ContactID string    `json:"contact_id,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	Content   string    `json:"content,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event stamped with the current time
func New(eventType, contactID, platform, content string) *Event {
	return &Event{
		Type:      eventType,
		ContactID: contactID,
		Platform:  platform,
		Content:   content,
		Timestamp: time.Now(),
	}
}
