package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern   string
		eventType string
		want      bool
	}{
		{"*", "message.received", true},
		{"message.*", "message.received", true},
		{"message.*", "message.sent", true},
		{"message.*", "reply.generated", false},
		{"message.received", "message.received", true},
		{"message.received", "message.sent", false},
		{"message", "message.received", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, matchPattern(tc.pattern, tc.eventType),
			"pattern %q against %q", tc.pattern, tc.eventType)
	}
}

func TestPublishReachesMatchingSubscriber(t *testing.T) {
	bus := NewBus()
	received := make(chan *Event, 1)

	bus.Subscribe([]string{"reply.*"}, func(e *Event) {
		received <- e
	})

	bus.Publish(New(TypeReplyGenerated, "bob", "slack", "hi"))

	select {
	case e := <-received:
		assert.Equal(t, TypeReplyGenerated, e.Type)
		assert.Equal(t, "bob", e.ContactID)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestPublishSkipsNonMatchingSubscriber(t *testing.T) {
	bus := NewBus()
	received := make(chan *Event, 1)

	bus.Subscribe([]string{"message.*"}, func(e *Event) {
		received <- e
	})

	bus.Publish(New(TypeReplyGenerated, "bob", "slack", "hi"))

	select {
	case <-received:
		t.Fatal("subscriber should not have matched")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	received := make(chan *Event, 1)

	id := bus.Subscribe([]string{"*"}, func(e *Event) {
		received <- e
	})
	bus.Unsubscribe(id)

	bus.Publish(New(TypeMessageSent, "bob", "slack", "hi"))

	select {
	case <-received:
		t.Fatal("unsubscribed handler was called")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewStampsTimestamp(t *testing.T) {
	e := New(TypeMessageReceived, "bob", "email", "hello")

	require.False(t, e.Timestamp.IsZero())
	assert.WithinDuration(t, time.Now(), e.Timestamp, time.Second)
}
