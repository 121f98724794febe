package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply/internal/analyze"
	"autoreply/internal/connector"
	"autoreply/internal/contacts"
	"autoreply/internal/profile"
)

func TestBuildSectionOrder(t *testing.T) {
	personality := profile.Personality{
		Name:               "Jordan",
		CommunicationStyle: "Casual",
		Tone:               "warm",
	}
	instructions := profile.Instructions{
		ResponseGuidelines: "Keep replies short.",
	}
	contact := contacts.Profile{
		Name:               "Alice",
		CustomInstructions: "She is a close friend.",
	}

	got := Build(personality, instructions, contact, connector.PlatformSlack, analyze.Signals{IsWorkRelated: true})

	identity := strings.Index(got, "on behalf of Jordan on slack")
	style := strings.Index(got, "Communication style: Casual")
	custom := strings.Index(got, "Instructions for Alice")
	context := strings.Index(got, "work related")
	guidelines := strings.Index(got, "General guidelines: Keep replies short.")
	footer := strings.Index(got, "Response guidelines:")

	for _, idx := range []int{identity, style, custom, context, guidelines, footer} {
		require.NotEqual(t, -1, idx)
	}
	assert.Less(t, identity, style)
	assert.Less(t, style, custom)
	assert.Less(t, custom, context)
	assert.Less(t, context, guidelines)
	assert.Less(t, guidelines, footer)
}

func TestBuildUrgentBeatsMeeting(t *testing.T) {
	instructions := profile.Instructions{UrgentHandling: "Flag it for me."}
	signals := analyze.Signals{IsUrgent: true, IsMeetingRelated: true}

	got := Build(profile.Personality{}, instructions, contacts.Profile{}, connector.PlatformEmail, signals)

	assert.Contains(t, got, "This message is urgent. Flag it for me.")
	assert.NotContains(t, got, "about scheduling")
}

func TestBuildMeetingBeatsWork(t *testing.T) {
	signals := analyze.Signals{IsMeetingRelated: true, IsWorkRelated: true}

	got := Build(profile.Personality{}, profile.Instructions{}, contacts.Profile{}, connector.PlatformEmail, signals)

	assert.Contains(t, got, "about scheduling")
	assert.NotContains(t, got, "work related")
}

func TestBuildFooterConstants(t *testing.T) {
	contact := contacts.Profile{MaxResponseLength: 200, PreferredStyle: "Friendly"}

	got := Build(profile.Personality{Name: "Jordan"}, profile.Instructions{}, contact, connector.PlatformSMS, analyze.Signals{ResponseStyle: "Friendly"})

	assert.Contains(t, got, "Keep the reply under 200 characters.")
	assert.Contains(t, got, "I'll check and get back to you")
	assert.Contains(t, got, "Reply in the same language as the incoming message.")
	assert.Contains(t, got, "in character as Jordan")
}

func TestBuildDefaultsNameWhenUnset(t *testing.T) {
	got := Build(profile.Personality{}, profile.Instructions{}, contacts.Profile{}, connector.PlatformTelegram, analyze.Signals{})

	assert.Contains(t, got, "on behalf of the user on telegram")
}

func TestBuildDoNotRespondTopicsListed(t *testing.T) {
	instructions := profile.Instructions{DoNotRespond: []string{"legal matters", "taxes"}}

	got := Build(profile.Personality{}, instructions, contacts.Profile{}, connector.PlatformEmail, analyze.Signals{})

	assert.Contains(t, got, "Never respond to messages about: legal matters, taxes")
}
