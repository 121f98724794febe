// Package profile manages the user-level personality profile and global
// reply instructions. Both are singletons stored as TOML files in the
// profiles directory and hot-reloaded on change.
package profile

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"autoreply/internal/config"
)

const (
	personalityFile  = "personality.toml"
	instructionsFile = "instructions.toml"
)

// Personality describes how generated replies should sound
type Personality struct {
	Name               string   `toml:"name" json:"name"`
	CommunicationStyle string   `toml:"communication_style" json:"communication_style"`
	Tone               string   `toml:"tone" json:"tone"`
	Traits             []string `toml:"traits" json:"traits"`
	TypicalResponses   string   `toml:"typical_responses" json:"typical_responses"`
	AvoidWords         []string `toml:"avoid_words" json:"avoid_words"`
	PreferredGreetings []string `toml:"preferred_greetings" json:"preferred_greetings"`
}

// Instructions are the global reply rules applied to every contact
type Instructions struct {
	ResponseGuidelines string   `toml:"response_guidelines" json:"response_guidelines"`
	DoNotRespond       []string `toml:"do_not_respond" json:"do_not_respond"`
	AlwaysInclude      []string `toml:"always_include" json:"always_include"`
	UrgentHandling     string   `toml:"urgent_handling" json:"urgent_handling"`
	AutoResponseLimit  int      `toml:"auto_response_limit" json:"auto_response_limit"`
}

// ChangeHandler is called when profile files change on disk
type ChangeHandler func()

// Manager handles the profile files
type Manager struct {
	dir           string
	mu            sync.RWMutex
	personality   Personality
	instructions  Instructions
	watcher       *config.FileWatcher
	changeHandler ChangeHandler
}

// NewManager loads (or creates) the profile files and watches them
func NewManager() (*Manager, error) {
	dir, err := config.ProfilesDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles directory: %w", err)
	}
	return NewManagerAt(dir)
}

// NewManagerAt is NewManager with an explicit directory
func NewManagerAt(dir string) (*Manager, error) {
	m := &Manager{
		dir: dir,
		personality: Personality{
			Name:               "Assistant",
			CommunicationStyle: "Professional",
			Tone:               "warm",
		},
		instructions: Instructions{
			AutoResponseLimit: 10,
		},
	}

	if err := m.loadOrCreate(); err != nil {
		return nil, err
	}

	watcher, err := config.NewFileWatcher("Profiles", func(name string) bool {
		return strings.HasSuffix(name, ".toml")
	}, func() {
		if err := m.load(); err != nil {
			log.Printf("[Profiles] Failed to reload: %v", err)
			return
		}
		m.mu.RLock()
		handler := m.changeHandler
		m.mu.RUnlock()
		if handler != nil {
			handler()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("failed to watch profiles directory: %w", err)
	}
	m.watcher = watcher
	log.Printf("[Profiles] Watching directory: %s", dir)

	return m, nil
}

// OnChange sets the handler called when a profile file changes
func (m *Manager) OnChange(handler ChangeHandler) {
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

// Personality returns the current personality profile
func (m *Manager) Personality() Personality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.personality
}

// Instructions returns the current global instructions
func (m *Manager) Instructions() Instructions {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instructions
}

// UpdatePersonality replaces the personality profile and persists it
func (m *Manager) UpdatePersonality(p Personality) error {
	m.mu.Lock()
	m.personality = p
	m.mu.Unlock()
	return m.writeFile(personalityFile, p)
}

// UpdateInstructions replaces the global instructions and persists them
func (m *Manager) UpdateInstructions(i Instructions) error {
	m.mu.Lock()
	m.instructions = i
	m.mu.Unlock()
	return m.writeFile(instructionsFile, i)
}

func (m *Manager) loadOrCreate() error {
	if err := m.ensureFile(personalityFile, m.personality); err != nil {
		return err
	}
	if err := m.ensureFile(instructionsFile, m.instructions); err != nil {
		return err
	}
	return m.load()
}

// ensureFile writes defaults only when the file does not exist yet, so a
// missing sibling never overwrites a file the user already edited
func (m *Manager) ensureFile(name string, defaults any) error {
	if _, err := os.Stat(filepath.Join(m.dir, name)); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	log.Printf("[Profiles] Creating default %s in %s", name, m.dir)
	return m.writeFile(name, defaults)
}

func (m *Manager) load() error {
	var p Personality
	if err := m.readFile(personalityFile, &p); err != nil {
		return err
	}
	var i Instructions
	if err := m.readFile(instructionsFile, &i); err != nil {
		return err
	}

	m.mu.Lock()
	m.personality = p
	m.instructions = i
	m.mu.Unlock()
	return nil
}

func (m *Manager) readFile(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (m *Manager) writeFile(name string, v any) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.dir, name), data, 0600)
}
