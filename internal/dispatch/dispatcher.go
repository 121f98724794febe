// Package dispatch routes generated replies to the right platform
// connector. Every step fails fast with a tagged error; nothing is
// retried automatically.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"autoreply/internal/connector"
	"autoreply/internal/contacts"
	"autoreply/internal/event"
	"autoreply/internal/history"
)

var (
	// ErrUnauthorized is returned when the contact is unknown, expired,
	// disabled, or the platform is not enabled for it
	ErrUnauthorized = errors.New("contact not authorized")
	// ErrConnectorUnavailable is returned when no configured connector
	// exists for the platform
	ErrConnectorUnavailable = errors.New("connector unavailable")
	// ErrUpstream tags platform API send failures; the connector's message
	// is passed through verbatim
	ErrUpstream = errors.New("send failed")
)

// Dispatcher sends replies through the connector registry
type Dispatcher struct {
	contacts   *contacts.Registry
	connectors *connector.Registry
	history    *history.Log
	bus        *event.Bus
}

// New creates a dispatcher
func New(reg *contacts.Registry, connectors *connector.Registry, hist *history.Log, bus *event.Bus) *Dispatcher {
	return &Dispatcher{
		contacts:   reg,
		connectors: connectors,
		history:    hist,
		bus:        bus,
	}
}

// Dispatch verifies authorization, formats the reply for the platform,
// waits out the contact's configured response delay, sends, and records
// the sent reply in the conversation log.
func (d *Dispatcher) Dispatch(ctx context.Context, contactID, reply string, platform connector.Platform) (connector.Receipt, error) {
	if !d.contacts.IsAuthorized(contactID) {
		return connector.Receipt{}, fmt.Errorf("%w: %s", ErrUnauthorized, contactID)
	}
	contact, err := d.contacts.Get(contactID)
	if err != nil {
		return connector.Receipt{}, fmt.Errorf("%w: %s", ErrUnauthorized, contactID)
	}
	if !contact.PlatformEnabled(platform) {
		return connector.Receipt{}, fmt.Errorf("%w: platform %s not enabled for %s", ErrUnauthorized, platform, contactID)
	}

	conn, ok := d.connectors.Get(platform)
	if !ok {
		return connector.Receipt{}, fmt.Errorf("%w: %s", ErrConnectorUnavailable, platform)
	}
	if !conn.IsConfigured() {
		return connector.Receipt{}, fmt.Errorf("%w: %s is not configured", ErrConnectorUnavailable, platform)
	}

	formatted := Format(platform, reply, contact)

	// Deliberate pacing, not backpressure
	if contact.ResponseDelay > 0 {
		if err := wait(ctx, time.Duration(contact.ResponseDelay)*time.Second); err != nil {
			return connector.Receipt{}, err
		}
	}

	receipt, err := conn.SendMessage(ctx, contactID, formatted)
	if err != nil {
		if d.bus != nil {
			evt := event.New(event.TypeReplyFailed, contactID, string(platform), "")
			evt.Detail = err.Error()
			d.bus.Publish(evt)
		}
		return connector.Receipt{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if appendErr := d.history.Append(contactID, history.Entry{
		Content:           formatted,
		FromContact:       false,
		Platform:          platform,
		AssistantResponse: true,
		Timestamp:         receipt.Timestamp,
	}); appendErr != nil {
		log.Printf("[Dispatch] Failed to record sent reply for %s: %v", contactID, appendErr)
	}
	d.contacts.Touch(contactID)

	if d.bus != nil {
		d.bus.Publish(event.New(event.TypeMessageSent, contactID, string(platform), formatted))
	}
	return receipt, nil
}

func wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
