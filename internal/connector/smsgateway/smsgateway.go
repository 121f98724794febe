// Package smsgateway implements the SMS connector. Messages flow through
// an MQTT broker bridged to an SMS gateway device: outbound texts are
// published to <prefix>/send, inbound texts arrive on <prefix>/received.
package smsgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"autoreply/internal/connector"
)

const defaultTopicPrefix = "sms"

// outboundPayload is published to the gateway's send topic
type outboundPayload struct {
	ID   string `json:"id"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// inboundPayload arrives on the gateway's received topic
type inboundPayload struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

// Connector bridges SMS through an MQTT broker
type Connector struct {
	mu     sync.RWMutex
	creds  map[string]string
	client mqtt.Client
}

// New creates an SMS gateway connector. Expected credentials: broker
// (tcp://host:1883), optional client_id, username, password, topic_prefix.
func New(credentials map[string]string) *Connector {
	if credentials == nil {
		credentials = map[string]string{}
	}
	return &Connector{creds: credentials}
}

func (c *Connector) Platform() connector.Platform { return connector.PlatformSMS }

// Initialize connects to the broker. Idempotent.
func (c *Connector) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		return nil
	}
	broker := c.creds["broker"]
	if broker == "" {
		return fmt.Errorf("sms connector is not configured")
	}

	clientID := c.creds["client_id"]
	if clientID == "" {
		clientID = "autoreply-sms-" + uuid.New().String()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	if user := c.creds["username"]; user != "" {
		opts.SetUsername(user)
		opts.SetPassword(c.creds["password"])
	}
	opts.OnConnect = func(mqtt.Client) {
		log.Printf("[SMS] Connected to broker %s", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("[SMS] Connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return fmt.Errorf("timed out connecting to broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker %s: %v", broker, err)
	}
	c.client = client
	return nil
}

// IsConfigured reports whether a broker address is present
func (c *Connector) IsConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds["broker"] != ""
}

// UpdateCredentials swaps the credential map; the next Initialize call
// reconnects with the new settings
func (c *Connector) UpdateCredentials(credentials map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	c.client = nil
	c.creds = credentials
}

// TestConnection verifies the broker session
func (c *Connector) TestConnection(ctx context.Context) (connector.ConnectionInfo, error) {
	if err := c.Initialize(ctx); err != nil {
		return connector.ConnectionInfo{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil || !c.client.IsConnected() {
		return connector.ConnectionInfo{}, fmt.Errorf("not connected to broker")
	}
	return connector.ConnectionInfo{Account: c.creds["client_id"], Detail: c.creds["broker"]}, nil
}

// Listen subscribes to the gateway's received topic and forwards inbound
// texts until the context is canceled
func (c *Connector) Listen(ctx context.Context, handler connector.InboundHandler) error {
	if err := c.Initialize(ctx); err != nil {
		return err
	}

	topic := c.topicPrefix() + "/received"
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	token := client.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		msg, err := parseInbound(m.Payload())
		if err != nil {
			log.Printf("[SMS] Dropping malformed inbound payload: %v", err)
			return
		}
		handler(ctx, msg)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %v", topic, err)
	}
	log.Printf("[SMS] Subscribed to %s", topic)

	<-ctx.Done()
	client.Unsubscribe(topic)
	return nil
}

// SendMessage publishes one outbound text to the gateway
func (c *Connector) SendMessage(ctx context.Context, recipient, text string) (connector.Receipt, error) {
	if err := c.Initialize(ctx); err != nil {
		return connector.Receipt{}, err
	}

	payload := outboundPayload{
		ID:   uuid.New().String(),
		To:   recipient,
		Body: text,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return connector.Receipt{}, err
	}

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	token := client.Publish(c.topicPrefix()+"/send", 1, false, data)
	if !token.WaitTimeout(10 * time.Second) {
		return connector.Receipt{}, fmt.Errorf("timed out publishing to broker")
	}
	if err := token.Error(); err != nil {
		return connector.Receipt{}, fmt.Errorf("publish failed: %v", err)
	}
	return connector.Receipt{MessageID: payload.ID, Timestamp: time.Now()}, nil
}

// HandleWebhook accepts the same payload shape as the received topic, for
// gateways that POST instead of publishing
func (c *Connector) HandleWebhook(raw []byte) (connector.Message, error) {
	return parseInbound(raw)
}

func (c *Connector) topicPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefix := c.creds["topic_prefix"]
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return prefix
}

func parseInbound(raw []byte) (connector.Message, error) {
	var payload inboundPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return connector.Message{}, fmt.Errorf("malformed sms payload: %v", err)
	}
	if payload.From == "" || payload.Body == "" {
		return connector.Message{}, fmt.Errorf("sms payload missing from or body")
	}
	ts := time.Now()
	if payload.Timestamp > 0 {
		ts = time.Unix(payload.Timestamp, 0)
	}
	if payload.ID == "" {
		payload.ID = uuid.New().String()
	}
	return connector.Message{
		ID:        payload.ID,
		From:      payload.From,
		Content:   payload.Body,
		Timestamp: ts,
		Platform:  connector.PlatformSMS,
	}, nil
}
