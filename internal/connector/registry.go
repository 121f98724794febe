package connector

import (
	"fmt"
	"log"
	"sync"
)

// Registry maps platform tags to registered connectors. It replaces
// per-call switch-on-platform dispatch with a single lookup table.
type Registry struct {
	mu    sync.RWMutex
	items map[Platform]Connector
}

// NewRegistry creates an empty connector registry
func NewRegistry() *Registry {
	return &Registry{items: make(map[Platform]Connector)}
}

// Register adds a connector. Registering the same platform twice is an error.
func (r *Registry) Register(c Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[c.Platform()]; exists {
		return fmt.Errorf("connector already registered: %s", c.Platform())
	}
	r.items[c.Platform()] = c
	log.Printf("[Connectors] Registered: %s", c.Platform())
	return nil
}

// Get returns the connector for a platform
func (r *Registry) Get(platform Platform) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[platform]
	return c, ok
}

// List returns all registered connectors
func (r *Registry) List() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Connector, 0, len(r.items))
	for _, c := range r.items {
		items = append(items, c)
	}
	return items
}
