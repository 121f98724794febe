package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// ServerConfig holds process-level settings
type ServerConfig struct {
	HTTPAddr   string `toml:"http_addr"`
	DBPath     string `toml:"db_path"`
	HistoryCap int    `toml:"history_cap"`
}

// LLMConfig selects and configures the reply generation provider
type LLMConfig struct {
	Provider       string `toml:"provider"`
	OpenAIKey      string `toml:"openai_key"`
	OpenAIModel    string `toml:"openai_model"`
	AnthropicKey   string `toml:"anthropic_key"`
	AnthropicModel string `toml:"anthropic_model"`
}

// Config is the on-disk configuration (config.toml in the config dir)
type Config struct {
	Server     ServerConfig                 `toml:"server"`
	LLM        LLMConfig                    `toml:"llm"`
	Connectors map[string]map[string]string `toml:"connectors"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr:   ":3000",
			DBPath:     "autoreply.db",
			HistoryCap: 50,
		},
		LLM: LLMConfig{
			Provider: "openai",
		},
		Connectors: map[string]map[string]string{},
	}
}

// ConnectorChangeHandler is called when a connector's credentials change
// on disk
type ConnectorChangeHandler func(platform string, credentials map[string]string)

// Manager loads config.toml and hot-reloads connector credentials when the
// file changes
type Manager struct {
	path          string
	mu            sync.RWMutex
	current       Config
	watcher       *FileWatcher
	changeHandler ConnectorChangeHandler
}

// NewManager loads the config file from the config dir, creating a default
// one if it does not exist, and starts watching it for changes
func NewManager() (*Manager, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(filepath.Join(configDir, "config.toml"))
}

// NewManagerAt is NewManager with an explicit file path
func NewManagerAt(path string) (*Manager, error) {
	m := &Manager{path: path, current: defaults()}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if err := m.save(); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		log.Printf("[Config] Created default config: %s", path)
	}

	watcher, err := NewFileWatcher("Config", func(name string) bool {
		return filepath.Base(name) == filepath.Base(path)
	}, func() {
		old := m.Get()
		if err := m.load(); err != nil {
			log.Printf("[Config] Failed to reload: %v", err)
			return
		}
		m.notifyConnectorChanges(old)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}
	m.watcher = watcher
	log.Printf("[Config] Watching file: %s", path)

	return m, nil
}

// Get returns a snapshot of the current config
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.current
	cfg.Connectors = cloneConnectors(m.current.Connectors)
	return cfg
}

// Connector returns the credential map for one platform
func (m *Manager) Connector(platform string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	creds, ok := m.current.Connectors[platform]
	if !ok {
		return nil
	}
	clone := make(map[string]string, len(creds))
	for k, v := range creds {
		clone[k] = v
	}
	return clone
}

// SetConnector stores a credential map for one platform and persists it
func (m *Manager) SetConnector(platform string, credentials map[string]string) error {
	m.mu.Lock()
	if m.current.Connectors == nil {
		m.current.Connectors = map[string]map[string]string{}
	}
	m.current.Connectors[platform] = credentials
	m.mu.Unlock()
	return m.save()
}

// Override replaces the in-memory config without persisting it. Used for
// command-line flag overrides.
func (m *Manager) Override(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = cfg
}

// OnConnectorChange sets the handler called when connector credentials
// change on disk
func (m *Manager) OnConnectorChange(handler ConnectorChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changeHandler = handler
}

// Stop stops the file watcher
func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Stop()
	}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}

	cfg := defaults()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", m.path, err)
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()
	return nil
}

func (m *Manager) save() error {
	m.mu.RLock()
	data, err := toml.Marshal(m.current)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0600)
}

func (m *Manager) notifyConnectorChanges(old Config) {
	m.mu.RLock()
	handler := m.changeHandler
	current := m.current.Connectors
	m.mu.RUnlock()

	if handler == nil {
		return
	}
	for platform, creds := range current {
		if !sameCredentials(old.Connectors[platform], creds) {
			log.Printf("[Config] Connector credentials changed: %s", platform)
			handler(platform, creds)
		}
	}
}

func sameCredentials(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func cloneConnectors(src map[string]map[string]string) map[string]map[string]string {
	clone := make(map[string]map[string]string, len(src))
	for platform, creds := range src {
		inner := make(map[string]string, len(creds))
		for k, v := range creds {
			inner[k] = v
		}
		clone[platform] = inner
	}
	return clone
}
