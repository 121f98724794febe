package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply/internal/connector"
)

func TestIsConfigured(t *testing.T) {
	full := New(map[string]string{"smtp_host": "smtp.example.com", "from_address": "me@example.com"})
	assert.True(t, full.IsConfigured())

	assert.False(t, New(nil).IsConfigured())
	assert.False(t, New(map[string]string{"smtp_host": "smtp.example.com"}).IsConfigured())
}

func TestHandleWebhook(t *testing.T) {
	c := New(nil)

	raw := []byte(`{
		"id": "mail-1",
		"from": "Alice Smith <alice@example.com>",
		"subject": "Lunch tomorrow",
		"body": "Are you free at noon?",
		"timestamp": 1700000000
	}`)

	msg, err := c.HandleWebhook(raw)
	require.NoError(t, err)
	assert.Equal(t, "mail-1", msg.ID)
	assert.Equal(t, "alice@example.com", msg.From)
	assert.Equal(t, "Lunch tomorrow\n\nAre you free at noon?", msg.Content)
	assert.Equal(t, connector.PlatformEmail, msg.Platform)
	assert.Equal(t, time.Unix(1700000000, 0), msg.Timestamp)
}

func TestHandleWebhookBodyOnly(t *testing.T) {
	c := New(nil)

	msg, err := c.HandleWebhook([]byte(`{"from":"bob@example.com","body":"quick question"}`))
	require.NoError(t, err)
	assert.Equal(t, "quick question", msg.Content)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestHandleWebhookRejectsIncomplete(t *testing.T) {
	c := New(nil)

	_, err := c.HandleWebhook([]byte(`{"from":"bob@example.com"}`))
	require.Error(t, err)

	_, err = c.HandleWebhook([]byte(`not json`))
	require.Error(t, err)
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"Alice <alice@example.com>": "alice@example.com",
		"bob@example.com":           "bob@example.com",
		"  carol@example.com  ":     "carol@example.com",
		"\"D, E\" <d@example.com>":  "d@example.com",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeAddress(in))
	}
}

func TestSMTPAddrDefaultsPort(t *testing.T) {
	c := New(map[string]string{"smtp_host": "smtp.example.com"})
	assert.Equal(t, "smtp.example.com:587", c.smtpAddr())

	c2 := New(map[string]string{"smtp_host": "smtp.example.com", "smtp_port": "465"})
	assert.Equal(t, "smtp.example.com:465", c2.smtpAddr())
}
