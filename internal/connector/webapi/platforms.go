package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"autoreply/internal/connector"
)

// --- Slack ---

func sendSlack(c *Client, ctx context.Context, recipient, text string) (connector.Receipt, error) {
	var result struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error"`
	}
	err := c.doJSON(ctx, "POST", "https://slack.com/api/chat.postMessage",
		map[string]string{"Authorization": "Bearer " + c.credential("bot_token")},
		map[string]string{"channel": recipient, "text": text},
		&result)
	if err != nil {
		return connector.Receipt{}, err
	}
	if !result.OK {
		return connector.Receipt{}, fmt.Errorf("slack API error: %s", result.Error)
	}
	return connector.Receipt{MessageID: result.TS, Timestamp: time.Now()}, nil
}

func testSlack(c *Client, ctx context.Context) (connector.ConnectionInfo, error) {
	var result struct {
		OK    bool   `json:"ok"`
		User  string `json:"user"`
		Team  string `json:"team"`
		Error string `json:"error"`
	}
	err := c.doJSON(ctx, "POST", "https://slack.com/api/auth.test",
		map[string]string{"Authorization": "Bearer " + c.credential("bot_token")},
		nil, &result)
	if err != nil {
		return connector.ConnectionInfo{}, err
	}
	if !result.OK {
		return connector.ConnectionInfo{}, fmt.Errorf("slack API error: %s", result.Error)
	}
	return connector.ConnectionInfo{Account: result.User, Detail: result.Team}, nil
}

// parseSlackWebhook handles Events API payloads. URL verification
// challenges return an error; the HTTP layer answers those before parsing.
func parseSlackWebhook(c *Client, raw []byte) (connector.Message, error) {
	var payload struct {
		Type    string `json:"type"`
		EventID string `json:"event_id"`
		Event   struct {
			Type string `json:"type"`
			User string `json:"user"`
			Text string `json:"text"`
			TS   string `json:"ts"`
		} `json:"event"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return connector.Message{}, fmt.Errorf("malformed slack payload: %v", err)
	}
	if payload.Event.Type != "message" || payload.Event.User == "" {
		return connector.Message{}, fmt.Errorf("not a user message event: %s", payload.Event.Type)
	}
	return connector.Message{
		ID:        payload.EventID,
		From:      payload.Event.User,
		Content:   payload.Event.Text,
		Timestamp: slackTS(payload.Event.TS),
		Platform:  connector.PlatformSlack,
	}, nil
}

func slackTS(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(sec, 0)
}

// --- Discord ---

func sendDiscord(c *Client, ctx context.Context, recipient, text string) (connector.Receipt, error) {
	var result struct {
		ID string `json:"id"`
	}
	url := fmt.Sprintf("https://discord.com/api/v10/channels/%s/messages", recipient)
	err := c.doJSON(ctx, "POST", url,
		map[string]string{"Authorization": "Bot " + c.credential("bot_token")},
		map[string]string{"content": text},
		&result)
	if err != nil {
		return connector.Receipt{}, err
	}
	return connector.Receipt{MessageID: result.ID, Timestamp: time.Now()}, nil
}

func testDiscord(c *Client, ctx context.Context) (connector.ConnectionInfo, error) {
	var result struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	err := c.doJSON(ctx, "GET", "https://discord.com/api/v10/users/@me",
		map[string]string{"Authorization": "Bot " + c.credential("bot_token")},
		nil, &result)
	if err != nil {
		return connector.ConnectionInfo{}, err
	}
	return connector.ConnectionInfo{Account: result.Username, Detail: result.ID}, nil
}

func parseDiscordWebhook(c *Client, raw []byte) (connector.Message, error) {
	var payload struct {
		ID     string `json:"id"`
		Author struct {
			ID  string `json:"id"`
			Bot bool   `json:"bot"`
		} `json:"author"`
		Content   string    `json:"content"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return connector.Message{}, fmt.Errorf("malformed discord payload: %v", err)
	}
	if payload.Author.Bot {
		return connector.Message{}, fmt.Errorf("ignoring bot message")
	}
	ts := payload.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return connector.Message{
		ID:        payload.ID,
		From:      payload.Author.ID,
		Content:   payload.Content,
		Timestamp: ts,
		Platform:  connector.PlatformDiscord,
	}, nil
}

// --- Facebook / Instagram (Graph messaging) ---

func sendGraphMessage(c *Client, ctx context.Context, recipient, text string) (connector.Receipt, error) {
	var result struct {
		MessageID string `json:"message_id"`
	}
	url := "https://graph.facebook.com/v19.0/me/messages?access_token=" + c.credential("access_token")
	err := c.doJSON(ctx, "POST", url, nil, map[string]any{
		"recipient": map[string]string{"id": recipient},
		"message":   map[string]string{"text": text},
	}, &result)
	if err != nil {
		return connector.Receipt{}, err
	}
	return connector.Receipt{MessageID: result.MessageID, Timestamp: time.Now()}, nil
}

func testGraph(c *Client, ctx context.Context) (connector.ConnectionInfo, error) {
	var result struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	url := "https://graph.facebook.com/v19.0/me?access_token=" + c.credential("access_token")
	if err := c.doJSON(ctx, "GET", url, nil, nil, &result); err != nil {
		return connector.ConnectionInfo{}, err
	}
	return connector.ConnectionInfo{Account: result.Name, Detail: result.ID}, nil
}

func parseGraphWebhook(c *Client, raw []byte) (connector.Message, error) {
	var payload struct {
		Entry []struct {
			Messaging []struct {
				Sender struct {
					ID string `json:"id"`
				} `json:"sender"`
				Timestamp int64 `json:"timestamp"` // milliseconds
				Message   struct {
					MID  string `json:"mid"`
					Text string `json:"text"`
				} `json:"message"`
			} `json:"messaging"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return connector.Message{}, fmt.Errorf("malformed graph payload: %v", err)
	}
	for _, entry := range payload.Entry {
		for _, m := range entry.Messaging {
			if m.Message.Text == "" {
				continue
			}
			return connector.Message{
				ID:        m.Message.MID,
				From:      m.Sender.ID,
				Content:   m.Message.Text,
				Timestamp: time.UnixMilli(m.Timestamp),
				Platform:  c.platform,
			}, nil
		}
	}
	return connector.Message{}, fmt.Errorf("no text message in payload")
}

// --- LinkedIn ---

func sendLinkedIn(c *Client, ctx context.Context, recipient, text string) (connector.Receipt, error) {
	var result struct {
		ID string `json:"id"`
	}
	err := c.doJSON(ctx, "POST", "https://api.linkedin.com/v2/messages",
		map[string]string{"Authorization": "Bearer " + c.credential("access_token")},
		map[string]any{
			"recipients": []string{recipient},
			"body":       text,
		}, &result)
	if err != nil {
		return connector.Receipt{}, err
	}
	if result.ID == "" {
		result.ID = fmt.Sprintf("linkedin-%d", time.Now().UnixNano())
	}
	return connector.Receipt{MessageID: result.ID, Timestamp: time.Now()}, nil
}

func testLinkedIn(c *Client, ctx context.Context) (connector.ConnectionInfo, error) {
	var result struct {
		ID                 string `json:"id"`
		LocalizedFirstName string `json:"localizedFirstName"`
		LocalizedLastName  string `json:"localizedLastName"`
	}
	err := c.doJSON(ctx, "GET", "https://api.linkedin.com/v2/me",
		map[string]string{"Authorization": "Bearer " + c.credential("access_token")},
		nil, &result)
	if err != nil {
		return connector.ConnectionInfo{}, err
	}
	name := strings.TrimSpace(result.LocalizedFirstName + " " + result.LocalizedLastName)
	return connector.ConnectionInfo{Account: name, Detail: result.ID}, nil
}

func parseLinkedInWebhook(c *Client, raw []byte) (connector.Message, error) {
	var payload struct {
		ID        string `json:"id"`
		From      string `json:"from"`
		Body      string `json:"body"`
		CreatedAt int64  `json:"createdAt"` // milliseconds
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return connector.Message{}, fmt.Errorf("malformed linkedin payload: %v", err)
	}
	if payload.Body == "" {
		return connector.Message{}, fmt.Errorf("no message body in payload")
	}
	ts := time.Now()
	if payload.CreatedAt > 0 {
		ts = time.UnixMilli(payload.CreatedAt)
	}
	return connector.Message{
		ID:        payload.ID,
		From:      payload.From,
		Content:   payload.Body,
		Timestamp: ts,
		Platform:  connector.PlatformLinkedIn,
	}, nil
}

// --- Twitter ---

func sendTwitter(c *Client, ctx context.Context, recipient, text string) (connector.Receipt, error) {
	var result struct {
		Data struct {
			DMEventID string `json:"dm_event_id"`
		} `json:"data"`
	}
	url := fmt.Sprintf("https://api.twitter.com/2/dm_conversations/with/%s/messages", recipient)
	err := c.doJSON(ctx, "POST", url,
		map[string]string{"Authorization": "Bearer " + c.credential("access_token")},
		map[string]string{"text": text},
		&result)
	if err != nil {
		return connector.Receipt{}, err
	}
	return connector.Receipt{MessageID: result.Data.DMEventID, Timestamp: time.Now()}, nil
}

func testTwitter(c *Client, ctx context.Context) (connector.ConnectionInfo, error) {
	var result struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	err := c.doJSON(ctx, "GET", "https://api.twitter.com/2/users/me",
		map[string]string{"Authorization": "Bearer " + c.credential("access_token")},
		nil, &result)
	if err != nil {
		return connector.ConnectionInfo{}, err
	}
	return connector.ConnectionInfo{Account: result.Data.Username, Detail: result.Data.ID}, nil
}

func parseTwitterWebhook(c *Client, raw []byte) (connector.Message, error) {
	var payload struct {
		DirectMessageEvents []struct {
			ID               string `json:"id"`
			CreatedTimestamp string `json:"created_timestamp"` // milliseconds
			MessageCreate    struct {
				SenderID    string `json:"sender_id"`
				MessageData struct {
					Text string `json:"text"`
				} `json:"message_data"`
			} `json:"message_create"`
		} `json:"direct_message_events"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return connector.Message{}, fmt.Errorf("malformed twitter payload: %v", err)
	}
	for _, evt := range payload.DirectMessageEvents {
		if evt.MessageCreate.MessageData.Text == "" {
			continue
		}
		ts := time.Now()
		if ms, err := strconv.ParseInt(evt.CreatedTimestamp, 10, 64); err == nil {
			ts = time.UnixMilli(ms)
		}
		return connector.Message{
			ID:        evt.ID,
			From:      evt.MessageCreate.SenderID,
			Content:   evt.MessageCreate.MessageData.Text,
			Timestamp: ts,
			Platform:  connector.PlatformTwitter,
		}, nil
	}
	return connector.Message{}, fmt.Errorf("no direct message in payload")
}
