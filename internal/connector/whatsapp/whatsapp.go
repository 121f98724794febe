// Package whatsapp implements the WhatsApp connector over whatsmeow.
// First run pairs the device with a QR code; the session is kept in a
// local sqlite store, so later runs reconnect silently.
package whatsapp

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"

	"autoreply/internal/connector"
)

// Connector drives a paired WhatsApp device
type Connector struct {
	mu      sync.RWMutex
	creds   map[string]string
	client  *whatsmeow.Client
	handler connector.InboundHandler
}

// New creates a WhatsApp connector. Optional credentials: session_db
// (sqlite path, defaults to whatsapp.db).
func New(credentials map[string]string) *Connector {
	if credentials == nil {
		credentials = map[string]string{}
	}
	return &Connector{creds: credentials}
}

func (c *Connector) Platform() connector.Platform { return connector.PlatformWhatsApp }

// Initialize opens the session store and connects, pairing with a QR code
// when no session exists. Idempotent.
func (c *Connector) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		return nil
	}

	dbPath := c.creds["session_db"]
	if dbPath == "" {
		dbPath = "whatsapp.db"
	}

	dbLog := waLog.Stdout("Database", "WARN", true)
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), dbLog)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	clientLog := waLog.Stdout("Client", "WARN", true)
	client := whatsmeow.NewClient(deviceStore, clientLog)
	client.AddEventHandler(c.handleEvent)

	if client.Store.ID == nil {
		log.Println("[WhatsApp] No session found, displaying QR code...")
		qrChan, _ := client.GetQRChannel(ctx)
		if err := client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				log.Println("[WhatsApp] Scan this QR code:")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			} else {
				log.Printf("[WhatsApp] Login event: %s", evt.Event)
			}
		}
	} else {
		if err := client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
	}

	c.client = client
	log.Printf("[WhatsApp] Connected as %s", client.Store.ID.String())
	return nil
}

// IsConfigured reports whether the connector is enabled or already paired
func (c *Connector) IsConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client != nil && c.client.Store.ID != nil {
		return true
	}
	return c.creds["enabled"] == "true"
}

// UpdateCredentials swaps the credential map; the next Initialize call
// reopens the session store
func (c *Connector) UpdateCredentials(credentials map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Disconnect()
	}
	c.client = nil
	c.creds = credentials
}

// TestConnection verifies the socket is up
func (c *Connector) TestConnection(ctx context.Context) (connector.ConnectionInfo, error) {
	if err := c.Initialize(ctx); err != nil {
		return connector.ConnectionInfo{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.client.IsConnected() {
		return connector.ConnectionInfo{}, fmt.Errorf("not connected to WhatsApp")
	}
	return connector.ConnectionInfo{Account: c.client.Store.ID.User}, nil
}

// Listen connects and forwards inbound direct messages until the context
// is canceled
func (c *Connector) Listen(ctx context.Context, handler connector.InboundHandler) error {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	if err := c.Initialize(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client != nil {
		client.Disconnect()
	}
	return nil
}

// SendMessage sends a text message to a phone number or JID
func (c *Connector) SendMessage(ctx context.Context, recipient, text string) (connector.Receipt, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return connector.Receipt{}, fmt.Errorf("whatsapp connector is not connected")
	}

	jid, err := parseRecipient(recipient)
	if err != nil {
		return connector.Receipt{}, err
	}

	resp, err := client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return connector.Receipt{}, fmt.Errorf("whatsapp send failed: %v", err)
	}
	return connector.Receipt{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

// HandleWebhook is not supported; inbound messages arrive over the socket
func (c *Connector) HandleWebhook(raw []byte) (connector.Message, error) {
	return connector.Message{}, fmt.Errorf("whatsapp has no webhook surface; messages arrive over the socket")
}

func (c *Connector) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		c.handleIncoming(v)
	case *events.Connected:
		log.Println("[WhatsApp] Connected to WhatsApp")
	case *events.Disconnected:
		log.Println("[WhatsApp] Disconnected from WhatsApp")
	case *events.LoggedOut:
		log.Println("[WhatsApp] Logged out from WhatsApp")
	}
}

func (c *Connector) handleIncoming(evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	text := evt.Message.GetConversation()
	if text == "" {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}

	handler(context.Background(), connector.Message{
		ID:        evt.Info.ID,
		From:      evt.Info.Chat.User,
		Content:   text,
		Timestamp: evt.Info.Timestamp,
		Platform:  connector.PlatformWhatsApp,
	})
}

// parseRecipient accepts a bare phone number or a full JID
func parseRecipient(recipient string) (types.JID, error) {
	if strings.Contains(recipient, "@") {
		jid, err := types.ParseJID(recipient)
		if err != nil {
			return types.JID{}, fmt.Errorf("invalid JID %q: %v", recipient, err)
		}
		return jid, nil
	}
	phone := strings.TrimPrefix(recipient, "+")
	if phone == "" {
		return types.JID{}, fmt.Errorf("empty recipient")
	}
	return types.NewJID(phone, types.DefaultUserServer), nil
}
