// Package assistant runs the auto-reply pipeline: inbound message,
// authorization check, context analysis, prompt build, generation,
// dispatch.
package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"autoreply/internal/analyze"
	"autoreply/internal/connector"
	"autoreply/internal/contacts"
	"autoreply/internal/dispatch"
	"autoreply/internal/event"
	"autoreply/internal/history"
	"autoreply/internal/llm"
	"autoreply/internal/profile"
	"autoreply/internal/prompt"
)

const (
	// generateTimeout bounds one reply generation request
	generateTimeout = 60 * time.Second
	// contextWindow is how many history entries accompany the prompt
	contextWindow = 10
	// rateWindow is the sliding window for the auto-response limit
	rateWindow = time.Hour
	// inboundBuffer sizes the inbound queue feeding the worker loop
	inboundBuffer = 64
)

// Service is the assistant core. Construct one per process and share it by
// reference; tests build isolated instances.
type Service struct {
	contacts   *contacts.Registry
	history    *history.Log
	profiles   *profile.Manager
	generator  *llm.Generator
	dispatcher *dispatch.Dispatcher
	bus        *event.Bus

	inbound chan connector.Message
}

// New creates an assistant service
func New(reg *contacts.Registry, hist *history.Log, profiles *profile.Manager, generator *llm.Generator, dispatcher *dispatch.Dispatcher, bus *event.Bus) *Service {
	return &Service{
		contacts:   reg,
		history:    hist,
		profiles:   profiles,
		generator:  generator,
		dispatcher: dispatcher,
		bus:        bus,
		inbound:    make(chan connector.Message, inboundBuffer),
	}
}

// Enqueue queues an inbound message for processing. Messages are handled
// one at a time in arrival order.
func (s *Service) Enqueue(msg connector.Message) {
	select {
	case s.inbound <- msg:
	default:
		log.Printf("[Assistant] Inbound queue full, dropping message from %s", msg.From)
	}
}

// Run processes queued inbound messages until the context is canceled.
// Each message is handled end-to-end before the next is started.
func (s *Service) Run(ctx context.Context) {
	log.Printf("[Assistant] Worker started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Assistant] Worker stopped")
			return
		case msg := <-s.inbound:
			if _, err := s.HandleInbound(ctx, msg); err != nil {
				log.Printf("[Assistant] %s/%s: %v", msg.Platform, msg.From, err)
			}
		}
	}
}

// HandleInbound runs the full pipeline for one normalized inbound message
// and returns the reply that was sent. A message that is skipped on
// purpose (unauthorized sender, excluded topic, rate limit reached)
// returns an empty reply and a nil error.
func (s *Service) HandleInbound(ctx context.Context, msg connector.Message) (string, error) {
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeMessageReceived, msg.From, string(msg.Platform), msg.Content))
	}

	if !s.contacts.IsAuthorized(msg.From) {
		s.skip(msg, "sender not authorized")
		return "", nil
	}
	contact, err := s.contacts.Get(msg.From)
	if err != nil {
		s.skip(msg, "sender not authorized")
		return "", nil
	}

	instructions := s.profiles.Instructions()
	if topic := matchedTopic(msg.Content, instructions.DoNotRespond); topic != "" {
		s.skip(msg, "excluded topic: "+topic)
		return "", nil
	}
	if s.limitReached(msg.From, instructions.AutoResponseLimit) {
		s.skip(msg, "auto-response limit reached")
		return "", nil
	}

	// Signals are computed against the history before this message
	recent := s.history.Recent(msg.From, contextWindow)
	signals := analyze.Analyze(msg.Content, contact, recent)

	if err := s.history.Append(msg.From, history.Entry{
		ID:          msg.ID,
		Content:     msg.Content,
		FromContact: true,
		Platform:    msg.Platform,
		Timestamp:   msg.Timestamp,
	}); err != nil {
		log.Printf("[Assistant] Failed to persist inbound from %s: %v", msg.From, err)
	}

	reply, err := s.generate(ctx, contact, msg.Platform, signals)
	if err != nil {
		if s.bus != nil {
			evt := event.New(event.TypeReplyFailed, msg.From, string(msg.Platform), "")
			evt.Detail = err.Error()
			s.bus.Publish(evt)
		}
		return "", err
	}
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeReplyGenerated, msg.From, string(msg.Platform), reply))
	}

	if _, err := s.dispatcher.Dispatch(ctx, msg.From, reply, msg.Platform); err != nil {
		return "", err
	}
	return reply, nil
}

// GenerateReply produces a reply for a contact without dispatching it.
// Used by the REST surface to preview replies.
func (s *Service) GenerateReply(ctx context.Context, contactID, content string, platform connector.Platform) (string, error) {
	contact, err := s.contacts.Get(contactID)
	if err != nil {
		return "", err
	}
	recent := s.history.Recent(contactID, contextWindow)
	signals := analyze.Analyze(content, contact, recent)

	// The preview message is part of the context but not logged
	return s.generateWith(ctx, contact, platform, signals, append(toLLMMessages(recent), llm.Message{Role: "user", Content: content}))
}

func (s *Service) generate(ctx context.Context, contact contacts.Profile, platform connector.Platform, signals analyze.Signals) (string, error) {
	recent := s.history.Recent(contact.ContactID, contextWindow)
	return s.generateWith(ctx, contact, platform, signals, toLLMMessages(recent))
}

func (s *Service) generateWith(ctx context.Context, contact contacts.Profile, platform connector.Platform, signals analyze.Signals, messages []llm.Message) (string, error) {
	system := prompt.Build(s.profiles.Personality(), s.profiles.Instructions(), contact, platform, signals)

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	reply, err := s.generator.GenerateReply(genCtx, "", system, messages)
	if err != nil {
		return "", fmt.Errorf("generate reply for %s: %w", contact.ContactID, err)
	}
	return reply, nil
}

// limitReached counts assistant responses inside the sliding window
func (s *Service) limitReached(contactID string, limit int) bool {
	if limit <= 0 {
		return false
	}
	cutoff := time.Now().Add(-rateWindow)
	count := 0
	for _, e := range s.history.Recent(contactID, 0) {
		if e.AssistantResponse && e.Timestamp.After(cutoff) {
			count++
		}
	}
	return count >= limit
}

func (s *Service) skip(msg connector.Message, reason string) {
	log.Printf("[Assistant] Skipping %s/%s: %s", msg.Platform, msg.From, reason)
	if s.bus != nil {
		evt := event.New(event.TypeReplySkipped, msg.From, string(msg.Platform), "")
		evt.Detail = reason
		s.bus.Publish(evt)
	}
}

func matchedTopic(content string, topics []string) string {
	lower := strings.ToLower(content)
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(topic)) {
			return topic
		}
	}
	return ""
}

func toLLMMessages(entries []history.Entry) []llm.Message {
	messages := make([]llm.Message, len(entries))
	for i, e := range entries {
		role := "assistant"
		if e.FromContact {
			role = "user"
		}
		messages[i] = llm.Message{Role: role, Content: e.Content}
	}
	return messages
}
