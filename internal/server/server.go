package server

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"autoreply/internal/assistant"
	"autoreply/internal/config"
	"autoreply/internal/connector"
	"autoreply/internal/connector/email"
	"autoreply/internal/connector/smsgateway"
	"autoreply/internal/connector/telegram"
	"autoreply/internal/connector/webapi"
	"autoreply/internal/connector/whatsapp"
	"autoreply/internal/contacts"
	"autoreply/internal/dispatch"
	"autoreply/internal/event"
	"autoreply/internal/history"
	"autoreply/internal/llm"
	"autoreply/internal/profile"
	"autoreply/internal/storage"
)

// credentialUpdater is implemented by connectors that accept hot-reloaded
// credentials
type credentialUpdater interface {
	UpdateCredentials(map[string]string)
}

// Server wires the assistant core together and runs the HTTP surface
type Server struct {
	cfg        *config.Manager
	store      *storage.Store
	contacts   *contacts.Registry
	history    *history.Log
	profiles   *profile.Manager
	connectors *connector.Registry
	generator  *llm.Generator
	dispatcher *dispatch.Dispatcher
	assistant  *assistant.Service
	bus        *event.Bus
	hub        *WSHub
}

// New builds a server from the loaded configuration
func New(cfg *config.Manager) (*Server, error) {
	settings := cfg.Get()

	store, err := storage.Open(settings.Server.DBPath)
	if err != nil {
		return nil, err
	}

	registry := contacts.NewRegistry(store)
	if err := registry.Load(); err != nil {
		return nil, err
	}

	hist := history.NewLog(settings.Server.HistoryCap, store)
	for _, p := range registry.List() {
		if err := hist.LoadContact(p.ContactID); err != nil {
			log.Printf("[Server] Failed to load history for %s: %v", p.ContactID, err)
		}
	}

	profiles, err := profile.NewManager()
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()
	connectors := connector.NewRegistry()
	dispatcher := dispatch.New(registry, connectors, hist, bus)

	generator := llm.NewGenerator()
	generator.Register(llm.NewOpenAIProvider(settings.LLM.OpenAIKey, settings.LLM.OpenAIModel))
	generator.Register(llm.NewAnthropicProvider(settings.LLM.AnthropicKey, settings.LLM.AnthropicModel))
	generator.Register(llm.NewZAIProvider("", ""))
	if settings.LLM.Provider != "" {
		if err := generator.SetDefault(settings.LLM.Provider); err != nil {
			log.Printf("[Server] %v, using first registered provider", err)
		}
	}

	svc := assistant.New(registry, hist, profiles, generator, dispatcher, bus)

	s := &Server{
		cfg:        cfg,
		store:      store,
		contacts:   registry,
		history:    hist,
		profiles:   profiles,
		connectors: connectors,
		generator:  generator,
		dispatcher: dispatcher,
		assistant:  svc,
		bus:        bus,
		hub:        NewWSHub(bus),
	}

	s.registerConnectors(settings)
	s.applyStoredCredentials()
	cfg.OnConnectorChange(s.onConnectorChange)

	return s, nil
}

// applyStoredCredentials replays credential updates made through the API
// on top of the config file settings
func (s *Server) applyStoredCredentials() {
	records, err := s.store.ListConnectors()
	if err != nil {
		log.Printf("[Server] Failed to load connector records: %v", err)
		return
	}
	for _, rec := range records {
		creds := map[string]string{}
		if err := json.Unmarshal([]byte(rec.Credentials), &creds); err != nil {
			log.Printf("[Server] Bad stored credentials for %s: %v", rec.Platform, err)
			continue
		}
		s.onConnectorChange(rec.Platform, creds)
	}
}

// registerConnectors builds one connector per supported platform. A
// connector with no credentials still registers; IsConfigured gates sends.
func (s *Server) registerConnectors(settings config.Config) {
	register := func(c connector.Connector, err error) {
		if err != nil {
			log.Printf("[Server] Skipping connector: %v", err)
			return
		}
		if err := s.connectors.Register(c); err != nil {
			log.Printf("[Server] %v", err)
		}
	}

	register(whatsapp.New(settings.Connectors["whatsapp"]), nil)
	register(telegram.New(settings.Connectors["telegram"]), nil)
	register(smsgateway.New(settings.Connectors["sms"]), nil)
	register(email.New(settings.Connectors["email"]), nil)
	for _, platform := range []connector.Platform{
		connector.PlatformSlack,
		connector.PlatformDiscord,
		connector.PlatformFacebook,
		connector.PlatformInstagram,
		connector.PlatformLinkedIn,
		connector.PlatformTwitter,
	} {
		c, err := webapi.New(platform, settings.Connectors[string(platform)])
		register(c, err)
	}
}

func (s *Server) onConnectorChange(platform string, credentials map[string]string) {
	tag, err := connector.ParsePlatform(platform)
	if err != nil {
		log.Printf("[Server] Ignoring credentials for %s: %v", platform, err)
		return
	}
	c, ok := s.connectors.Get(tag)
	if !ok {
		return
	}
	if updater, ok := c.(credentialUpdater); ok {
		updater.UpdateCredentials(credentials)
		log.Printf("[Server] Reloaded credentials for %s", platform)
	}
}

// Start runs the listeners, the assistant worker and the HTTP server
// until SIGINT/SIGTERM
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[Server] Shutting down...")
		cancel()
	}()

	go s.assistant.Run(ctx)
	s.startListeners(ctx)

	e := s.routes()
	go func() {
		<-ctx.Done()
		s.hub.Close()
		s.profiles.Stop()
		s.cfg.Stop()
		e.Shutdown(context.Background())
	}()

	addr := s.cfg.Get().Server.HTTPAddr
	log.Printf("[Server] HTTP listening on %s", addr)
	if err := e.Start(addr); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// startListeners spawns a listen loop for every configured connector that
// pushes inbound messages over its own transport
func (s *Server) startListeners(ctx context.Context) {
	for _, c := range s.connectors.List() {
		listener, ok := c.(connector.Listener)
		if !ok || !c.IsConfigured() {
			continue
		}
		go func(c connector.Connector, l connector.Listener) {
			log.Printf("[Server] Listening on %s", c.Platform())
			if err := l.Listen(ctx, func(_ context.Context, msg connector.Message) {
				s.assistant.Enqueue(msg)
			}); err != nil && ctx.Err() == nil {
				log.Printf("[Server] %s listener stopped: %v", c.Platform(), err)
			}
		}(c, listener)
	}
}
