// Package webapi implements connectors for platforms that are driven
// purely over their REST APIs plus inbound webhooks: Slack, Discord,
// Facebook, Instagram, LinkedIn and Twitter.
package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"autoreply/internal/connector"
)

// platformSpec holds the per-platform request shapes
type platformSpec struct {
	requiredKeys []string
	send         func(c *Client, ctx context.Context, recipient, text string) (connector.Receipt, error)
	test         func(c *Client, ctx context.Context) (connector.ConnectionInfo, error)
	parseWebhook func(c *Client, raw []byte) (connector.Message, error)
}

var specs = map[connector.Platform]platformSpec{
	connector.PlatformSlack: {
		requiredKeys: []string{"bot_token"},
		send:         sendSlack,
		test:         testSlack,
		parseWebhook: parseSlackWebhook,
	},
	connector.PlatformDiscord: {
		requiredKeys: []string{"bot_token"},
		send:         sendDiscord,
		test:         testDiscord,
		parseWebhook: parseDiscordWebhook,
	},
	connector.PlatformFacebook: {
		requiredKeys: []string{"access_token"},
		send:         sendGraphMessage,
		test:         testGraph,
		parseWebhook: parseGraphWebhook,
	},
	connector.PlatformInstagram: {
		requiredKeys: []string{"access_token"},
		send:         sendGraphMessage,
		test:         testGraph,
		parseWebhook: parseGraphWebhook,
	},
	connector.PlatformLinkedIn: {
		requiredKeys: []string{"access_token"},
		send:         sendLinkedIn,
		test:         testLinkedIn,
		parseWebhook: parseLinkedInWebhook,
	},
	connector.PlatformTwitter: {
		requiredKeys: []string{"access_token"},
		send:         sendTwitter,
		test:         testTwitter,
		parseWebhook: parseTwitterWebhook,
	},
}

// Client is one REST-backed platform connector
type Client struct {
	platform connector.Platform
	spec     platformSpec
	http     *http.Client

	mu          sync.RWMutex
	creds       map[string]string
	initialized bool
}

// New creates a REST connector for one of the supported platforms
func New(platform connector.Platform, credentials map[string]string) (*Client, error) {
	spec, ok := specs[platform]
	if !ok {
		return nil, fmt.Errorf("no REST connector for platform: %s", platform)
	}
	if credentials == nil {
		credentials = map[string]string{}
	}
	return &Client{
		platform: platform,
		spec:     spec,
		http:     &http.Client{Timeout: 30 * time.Second},
		creds:    credentials,
	}, nil
}

func (c *Client) Platform() connector.Platform { return c.platform }

// Initialize refreshes the access token when refresh credentials are
// configured. On refresh failure the previous token is kept and a warning
// is logged; the connector stays usable with the old token. Idempotent
// until UpdateCredentials.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.RLock()
	done := c.initialized
	c.mu.RUnlock()
	if done {
		return nil
	}
	if err := c.maybeRefreshToken(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	return nil
}

// IsConfigured reports whether the required credential keys are present
func (c *Client) IsConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, key := range c.spec.requiredKeys {
		if c.creds[key] == "" {
			return false
		}
	}
	return true
}

// UpdateCredentials swaps the credential map (config hot reload); the next
// call re-runs the token refresh
func (c *Client) UpdateCredentials(credentials map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = credentials
	c.initialized = false
}

// TestConnection calls the platform's identity endpoint
func (c *Client) TestConnection(ctx context.Context) (connector.ConnectionInfo, error) {
	if !c.IsConfigured() {
		return connector.ConnectionInfo{}, fmt.Errorf("%s connector is not configured", c.platform)
	}
	if err := c.Initialize(ctx); err != nil {
		return connector.ConnectionInfo{}, err
	}
	return c.spec.test(c, ctx)
}

// SendMessage sends one text message to the platform recipient
func (c *Client) SendMessage(ctx context.Context, recipient, text string) (connector.Receipt, error) {
	if !c.IsConfigured() {
		return connector.Receipt{}, fmt.Errorf("%s connector is not configured", c.platform)
	}
	if err := c.Initialize(ctx); err != nil {
		return connector.Receipt{}, err
	}
	return c.spec.send(c, ctx, recipient, text)
}

// HandleWebhook parses a raw platform webhook payload into the normalized
// message shape
func (c *Client) HandleWebhook(raw []byte) (connector.Message, error) {
	return c.spec.parseWebhook(c, raw)
}

func (c *Client) credential(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds[key]
}

// doJSON posts a JSON body and decodes the JSON response into out
func (c *Client) doJSON(ctx context.Context, method, url string, headers map[string]string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s API error: %s", c.platform, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s API returned malformed JSON: %v", c.platform, err)
		}
	}
	return nil
}
