// Package llm generates replies through an external model provider. One
// request per reply, no retries, no streaming.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrUpstream tags provider API failures. The provider's message is passed
// through verbatim.
var ErrUpstream = errors.New("upstream failure")

// Message is one turn of conversation context
type Message struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// Provider is implemented by each model backend
type Provider interface {
	Name() string
	Generate(ctx context.Context, system string, messages []Message) (string, error)
}

// Generator selects a provider and produces replies
type Generator struct {
	providers       map[string]Provider
	defaultProvider string
}

// NewGenerator creates an empty generator
func NewGenerator() *Generator {
	return &Generator{providers: make(map[string]Provider)}
}

// Register adds a provider. The first registered provider becomes the default.
func (g *Generator) Register(p Provider) {
	g.providers[p.Name()] = p
	if g.defaultProvider == "" {
		g.defaultProvider = p.Name()
	}
	log.Printf("[LLM] Registered provider: %s", p.Name())
}

// SetDefault selects the default provider
func (g *Generator) SetDefault(name string) error {
	if _, ok := g.providers[name]; !ok {
		return fmt.Errorf("provider %s not found", name)
	}
	g.defaultProvider = name
	return nil
}

// GenerateReply produces one reply from the named provider (or the default
// when name is empty) given the system prompt and conversation context.
func (g *Generator) GenerateReply(ctx context.Context, providerName, system string, messages []Message) (string, error) {
	provider, ok := g.providers[providerName]
	if !ok {
		provider = g.providers[g.defaultProvider]
	}
	if provider == nil {
		return "", fmt.Errorf("%w: no provider available", ErrUpstream)
	}

	reply, err := provider.Generate(ctx, system, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return reply, nil
}
