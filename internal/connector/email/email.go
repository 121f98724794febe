// Package email implements the email connector: SMTP for outbound
// replies, a normalized inbound-mail webhook for incoming messages.
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoreply/internal/connector"
)

// Connector sends mail through a configured SMTP relay
type Connector struct {
	mu    sync.RWMutex
	creds map[string]string
}

// New creates an email connector. Expected credentials: smtp_host,
// smtp_port, username, password, from_address.
func New(credentials map[string]string) *Connector {
	if credentials == nil {
		credentials = map[string]string{}
	}
	return &Connector{creds: credentials}
}

func (c *Connector) Platform() connector.Platform { return connector.PlatformEmail }

// Initialize is a no-op; SMTP connections are per-send
func (c *Connector) Initialize(ctx context.Context) error { return nil }

// IsConfigured reports whether the SMTP relay settings are present
func (c *Connector) IsConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds["smtp_host"] != "" && c.creds["from_address"] != ""
}

// UpdateCredentials swaps the credential map (config hot reload)
func (c *Connector) UpdateCredentials(credentials map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = credentials
}

// TestConnection dials the SMTP relay and says hello
func (c *Connector) TestConnection(ctx context.Context) (connector.ConnectionInfo, error) {
	if !c.IsConfigured() {
		return connector.ConnectionInfo{}, fmt.Errorf("email connector is not configured")
	}
	addr := c.smtpAddr()

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return connector.ConnectionInfo{}, fmt.Errorf("SMTP dial failed: %v", err)
	}
	client, err := smtp.NewClient(conn, c.credential("smtp_host"))
	if err != nil {
		conn.Close()
		return connector.ConnectionInfo{}, fmt.Errorf("SMTP handshake failed: %v", err)
	}
	defer client.Quit()

	return connector.ConnectionInfo{Account: c.credential("from_address"), Detail: addr}, nil
}

// SendMessage sends a plain-text mail to the recipient address
func (c *Connector) SendMessage(ctx context.Context, recipient, text string) (connector.Receipt, error) {
	if !c.IsConfigured() {
		return connector.Receipt{}, fmt.Errorf("email connector is not configured")
	}

	from := c.credential("from_address")
	msgID := uuid.New().String()
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: Re: your message\r\n")
	fmt.Fprintf(&msg, "Message-ID: <%s@autoreply>\r\n", msgID)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(text)

	var auth smtp.Auth
	if user := c.credential("username"); user != "" {
		auth = smtp.PlainAuth("", user, c.credential("password"), c.credential("smtp_host"))
	}

	if err := smtp.SendMail(c.smtpAddr(), auth, from, []string{recipient}, []byte(msg.String())); err != nil {
		return connector.Receipt{}, fmt.Errorf("SMTP send failed: %v", err)
	}
	return connector.Receipt{MessageID: msgID, Timestamp: time.Now()}, nil
}

// HandleWebhook parses an inbound-mail notification. Mail receiving
// services (or the Gmail forwarder) post {id, from, subject, body,
// timestamp}.
func (c *Connector) HandleWebhook(raw []byte) (connector.Message, error) {
	var payload struct {
		ID        string `json:"id"`
		From      string `json:"from"`
		Subject   string `json:"subject"`
		Body      string `json:"body"`
		Timestamp int64  `json:"timestamp"` // unix seconds
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return connector.Message{}, fmt.Errorf("malformed email payload: %v", err)
	}
	if payload.From == "" || payload.Body == "" {
		return connector.Message{}, fmt.Errorf("email payload missing from or body")
	}

	content := payload.Body
	if payload.Subject != "" {
		content = payload.Subject + "\n\n" + payload.Body
	}
	ts := time.Now()
	if payload.Timestamp > 0 {
		ts = time.Unix(payload.Timestamp, 0)
	}
	return connector.Message{
		ID:        payload.ID,
		From:      normalizeAddress(payload.From),
		Content:   content,
		Timestamp: ts,
		Platform:  connector.PlatformEmail,
	}, nil
}

func (c *Connector) credential(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds[key]
}

func (c *Connector) smtpAddr() string {
	port := c.credential("smtp_port")
	if port == "" {
		port = "587"
	}
	return net.JoinHostPort(c.credential("smtp_host"), port)
}

// normalizeAddress strips a display name from "Name <addr>" forms
func normalizeAddress(from string) string {
	if start := strings.Index(from, "<"); start >= 0 {
		if end := strings.Index(from[start:], ">"); end > 0 {
			return strings.TrimSpace(from[start+1 : start+end])
		}
	}
	return strings.TrimSpace(from)
}
