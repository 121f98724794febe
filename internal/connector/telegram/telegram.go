// Package telegram implements the Telegram connector on the Bot API,
// long polling for inbound messages.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autoreply/internal/connector"
)

// Connector drives a Telegram bot
type Connector struct {
	mu    sync.RWMutex
	creds map[string]string
	bot   *tgbotapi.BotAPI
}

// New creates a Telegram connector. Expected credentials: bot_token.
func New(credentials map[string]string) *Connector {
	if credentials == nil {
		credentials = map[string]string{}
	}
	return &Connector{creds: credentials}
}

func (c *Connector) Platform() connector.Platform { return connector.PlatformTelegram }

// Initialize authenticates the bot token. Idempotent.
func (c *Connector) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bot != nil {
		return nil
	}
	token := c.creds["bot_token"]
	if token == "" {
		return fmt.Errorf("telegram connector is not configured")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("telegram auth failed: %v", err)
	}
	c.bot = bot
	log.Printf("[Telegram] Authorized as @%s", bot.Self.UserName)
	return nil
}

// IsConfigured reports whether a bot token is present
func (c *Connector) IsConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds["bot_token"] != ""
}

// UpdateCredentials swaps the credential map; the next Initialize call
// re-authenticates
func (c *Connector) UpdateCredentials(credentials map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = credentials
	c.bot = nil
}

// TestConnection verifies the bot token against the Bot API
func (c *Connector) TestConnection(ctx context.Context) (connector.ConnectionInfo, error) {
	if err := c.Initialize(ctx); err != nil {
		return connector.ConnectionInfo{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return connector.ConnectionInfo{
		Account: c.bot.Self.UserName,
		Detail:  strconv.FormatInt(c.bot.Self.ID, 10),
	}, nil
}

// Listen long-polls for updates and forwards text messages until the
// context is canceled
func (c *Connector) Listen(ctx context.Context, handler connector.InboundHandler) error {
	if err := c.Initialize(ctx); err != nil {
		return err
	}

	c.mu.RLock()
	bot := c.bot
	c.mu.RUnlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" || update.Message.IsCommand() {
				continue
			}
			handler(ctx, fromTelegramMessage(update.Message))
		}
	}
}

// SendMessage sends one text message to a chat id
func (c *Connector) SendMessage(ctx context.Context, recipient, text string) (connector.Receipt, error) {
	if err := c.Initialize(ctx); err != nil {
		return connector.Receipt{}, err
	}

	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return connector.Receipt{}, fmt.Errorf("invalid telegram chat id %q: %v", recipient, err)
	}

	c.mu.RLock()
	bot := c.bot
	c.mu.RUnlock()

	sent, err := bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return connector.Receipt{}, fmt.Errorf("telegram send failed: %v", err)
	}
	return connector.Receipt{
		MessageID: strconv.Itoa(sent.MessageID),
		Timestamp: time.Unix(int64(sent.Date), 0),
	}, nil
}

// HandleWebhook parses a Bot API update payload (webhook mode)
func (c *Connector) HandleWebhook(raw []byte) (connector.Message, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return connector.Message{}, fmt.Errorf("malformed telegram payload: %v", err)
	}
	if update.Message == nil || update.Message.Text == "" {
		return connector.Message{}, fmt.Errorf("no text message in update")
	}
	return fromTelegramMessage(update.Message), nil
}

func fromTelegramMessage(m *tgbotapi.Message) connector.Message {
	return connector.Message{
		ID:        strconv.Itoa(m.MessageID),
		From:      strconv.FormatInt(m.Chat.ID, 10),
		Content:   m.Text,
		Timestamp: time.Unix(int64(m.Date), 0),
		Platform:  connector.PlatformTelegram,
	}
}
