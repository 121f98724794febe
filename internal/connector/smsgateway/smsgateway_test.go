package smsgateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply/internal/connector"
)

func TestIsConfigured(t *testing.T) {
	assert.True(t, New(map[string]string{"broker": "tcp://localhost:1883"}).IsConfigured())
	assert.False(t, New(nil).IsConfigured())
}

func TestTopicPrefixDefault(t *testing.T) {
	assert.Equal(t, "sms", New(nil).topicPrefix())
	assert.Equal(t, "gw0", New(map[string]string{"topic_prefix": "gw0"}).topicPrefix())
}

func TestParseInbound(t *testing.T) {
	msg, err := parseInbound([]byte(`{
		"id": "sms-1",
		"from": "+15551234567",
		"body": "running late",
		"timestamp": 1700000000
	}`))
	require.NoError(t, err)
	assert.Equal(t, "sms-1", msg.ID)
	assert.Equal(t, "+15551234567", msg.From)
	assert.Equal(t, "running late", msg.Content)
	assert.Equal(t, connector.PlatformSMS, msg.Platform)
	assert.Equal(t, time.Unix(1700000000, 0), msg.Timestamp)
}

func TestParseInboundDefaultsIDAndTimestamp(t *testing.T) {
	msg, err := parseInbound([]byte(`{"from":"+15551234567","body":"hi"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestParseInboundRejectsIncomplete(t *testing.T) {
	_, err := parseInbound([]byte(`{"from":"+15551234567"}`))
	require.Error(t, err)

	_, err = parseInbound([]byte(`garbage`))
	require.Error(t, err)
}
