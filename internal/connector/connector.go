package connector

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Platform identifies one of the supported messaging channels
type Platform string

const (
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformTelegram  Platform = "telegram"
	PlatformSMS       Platform = "sms"
	PlatformEmail     Platform = "email"
	PlatformSlack     Platform = "slack"
	PlatformDiscord   Platform = "discord"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
)

func (p Platform) String() string { return string(p) }

// ParsePlatform normalizes a raw platform tag
func ParsePlatform(raw string) (Platform, error) {
	p := Platform(strings.TrimSpace(strings.ToLower(raw)))
	switch p {
	case PlatformWhatsApp, PlatformTelegram, PlatformSMS, PlatformEmail,
		PlatformSlack, PlatformDiscord, PlatformFacebook, PlatformInstagram,
		PlatformLinkedIn, PlatformTwitter:
		return p, nil
	}
	return "", fmt.Errorf("unsupported platform: %s", raw)
}

// Message is the normalized inbound message shape shared by all connectors
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Platform  Platform  `json:"platform"`
}

// Receipt is returned by a successful send
type Receipt struct {
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionInfo describes a verified connection
type ConnectionInfo struct {
	Account string `json:"account"`
	Detail  string `json:"detail,omitempty"`
}

// InboundHandler receives normalized messages from connectors that listen
// on their own transport (WhatsApp socket, Telegram long poll, MQTT)
type InboundHandler func(ctx context.Context, msg Message)

// Connector is implemented once per platform. The core depends only on
// this shape; everything platform-specific stays behind it.
type Connector interface {
	Platform() Platform
	// Initialize loads credentials and prepares the client. Idempotent.
	Initialize(ctx context.Context) error
	IsConfigured() bool
	TestConnection(ctx context.Context) (ConnectionInfo, error)
	SendMessage(ctx context.Context, recipient, text string) (Receipt, error)
	// HandleWebhook parses a raw webhook payload into a normalized message
	HandleWebhook(raw []byte) (Message, error)
}

// Listener is implemented by connectors that push inbound messages
// instead of (or in addition to) receiving webhooks
type Listener interface {
	Listen(ctx context.Context, handler InboundHandler) error
}
