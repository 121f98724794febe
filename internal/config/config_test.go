package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManagerAt(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m
}

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	m, err := NewManagerAt(path)
	require.NoError(t, err)
	defer m.Stop()

	cfg := m.Get()
	assert.Equal(t, ":3000", cfg.Server.HTTPAddr)
	assert.Equal(t, "autoreply.db", cfg.Server.DBPath)
	assert.Equal(t, 50, cfg.Server.HistoryCap)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSetConnectorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	m, err := NewManagerAt(path)
	require.NoError(t, err)

	require.NoError(t, m.SetConnector("slack", map[string]string{"bot_token": "xoxb-1"}))
	m.Stop()

	reopened, err := NewManagerAt(path)
	require.NoError(t, err)
	defer reopened.Stop()

	assert.Equal(t, "xoxb-1", reopened.Connector("slack")["bot_token"])
}

func TestConnectorUnknownPlatform(t *testing.T) {
	m := newTestManager(t)

	assert.Nil(t, m.Connector("slack"))
}

func TestOverride(t *testing.T) {
	m := newTestManager(t)

	cfg := m.Get()
	cfg.Server.HTTPAddr = ":8080"
	m.Override(cfg)

	assert.Equal(t, ":8080", m.Get().Server.HTTPAddr)
}

func TestSameCredentials(t *testing.T) {
	assert.True(t, sameCredentials(
		map[string]string{"a": "1"},
		map[string]string{"a": "1"},
	))
	assert.False(t, sameCredentials(
		map[string]string{"a": "1"},
		map[string]string{"a": "2"},
	))
	assert.False(t, sameCredentials(
		map[string]string{"a": "1"},
		map[string]string{"a": "1", "b": "2"},
	))
}
