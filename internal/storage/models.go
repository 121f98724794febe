package storage

import (
	"time"
)

// Contact is the persisted form of an authorized contact profile
type Contact struct {
	ContactID          string    `gorm:"primaryKey" json:"contact_id"`
	Name               string    `json:"name"`
	Enabled            bool      `json:"enabled"`
	Platforms          string    `json:"platforms"` // JSON array of platform tags
	ExpiresAt          time.Time `json:"expires_at"`
	PreferredStyle     string    `json:"preferred_style"`
	CustomInstructions string    `json:"custom_instructions"`
	ResponseDelay      int       `json:"response_delay"` // seconds
	MaxResponseLength  int       `json:"max_response_length"`
	IncludeSignature   bool      `json:"include_signature"`
	Signature          string    `json:"signature"`
	LastAccessed       time.Time `json:"last_accessed"`
	InteractionCount   int       `json:"interaction_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ConversationEntry is one message in a contact's conversation history
type ConversationEntry struct {
	ID                string    `gorm:"primaryKey" json:"id"`
	ContactID         string    `gorm:"index" json:"contact_id"`
	Content           string    `json:"content"`
	FromContact       bool      `json:"from_contact"`
	Platform          string    `json:"platform"`
	AssistantResponse bool      `json:"assistant_response"`
	Timestamp         time.Time `json:"timestamp"`
}

// ConnectorRecord stores per-platform connector credentials
type ConnectorRecord struct {
	Platform    string    `gorm:"primaryKey" json:"platform"`
	Credentials string    `json:"credentials"` // JSON object
	Configured  bool      `json:"configured"`
	UpdatedAt   time.Time `json:"updated_at"`
}
