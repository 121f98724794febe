// Package prompt assembles the system prompt for reply generation.
package prompt

import (
	"fmt"
	"strings"

	"autoreply/internal/analyze"
	"autoreply/internal/connector"
	"autoreply/internal/contacts"
	"autoreply/internal/profile"
)

// Build concatenates the system prompt in fixed order: identity line,
// personality block, contact instructions, one context-triggered line
// (urgent > meeting > work), global instructions, then the response
// guideline footer. Length is not validated here; truncation happens in
// the dispatcher's formatting step.
func Build(personality profile.Personality, instructions profile.Instructions, contact contacts.Profile, platform connector.Platform, signals analyze.Signals) string {
	var b strings.Builder

	name := personality.Name
	if name == "" {
		name = "the user"
	}
	fmt.Fprintf(&b, "You are replying to messages on behalf of %s on %s.\n", name, platform)

	if block := personalityBlock(personality); block != "" {
		b.WriteString("\n")
		b.WriteString(block)
	}

	if contact.CustomInstructions != "" {
		fmt.Fprintf(&b, "\nInstructions for %s: %s\n", contact.Name, contact.CustomInstructions)
	}

	if line := contextLine(instructions, signals); line != "" {
		b.WriteString("\n")
		b.WriteString(line)
		b.WriteString("\n")
	}

	if block := instructionsBlock(instructions); block != "" {
		b.WriteString("\n")
		b.WriteString(block)
	}

	b.WriteString("\nResponse guidelines:\n")
	fmt.Fprintf(&b, "- Respond naturally, in character as %s.\n", name)
	if contact.PreferredStyle != "" {
		fmt.Fprintf(&b, "- Use a %s style; the current response style is %s.\n", contact.PreferredStyle, signals.ResponseStyle)
	} else if signals.ResponseStyle != "" {
		fmt.Fprintf(&b, "- Use a %s style.\n", signals.ResponseStyle)
	}
	if contact.MaxResponseLength > 0 {
		fmt.Fprintf(&b, "- Keep the reply under %d characters.\n", contact.MaxResponseLength)
	}
	b.WriteString("- If you are not sure about something, reply \"I'll check and get back to you\".\n")
	b.WriteString("- Reply in the same language as the incoming message.\n")

	return b.String()
}

func personalityBlock(p profile.Personality) string {
	var lines []string
	if p.CommunicationStyle != "" {
		lines = append(lines, "Communication style: "+p.CommunicationStyle)
	}
	if p.Tone != "" {
		lines = append(lines, "Tone: "+p.Tone)
	}
	if len(p.Traits) > 0 {
		lines = append(lines, "Traits: "+strings.Join(p.Traits, ", "))
	}
	if p.TypicalResponses != "" {
		lines = append(lines, "Typical responses: "+p.TypicalResponses)
	}
	if len(p.AvoidWords) > 0 {
		lines = append(lines, "Avoid these words: "+strings.Join(p.AvoidWords, ", "))
	}
	if len(p.PreferredGreetings) > 0 {
		lines = append(lines, "Preferred greetings: "+strings.Join(p.PreferredGreetings, ", "))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// contextLine picks at most one instruction from the derived signals,
// urgency first
func contextLine(instructions profile.Instructions, signals analyze.Signals) string {
	switch {
	case signals.IsUrgent:
		if instructions.UrgentHandling != "" {
			return "This message is urgent. " + instructions.UrgentHandling
		}
		return "This message is urgent. Acknowledge the urgency and respond directly."
	case signals.IsMeetingRelated:
		return "This message is about scheduling. Be clear about availability without committing to anything."
	case signals.IsWorkRelated:
		return "This message is work related. Keep the reply professional."
	}
	return ""
}

func instructionsBlock(i profile.Instructions) string {
	var lines []string
	if i.ResponseGuidelines != "" {
		lines = append(lines, "General guidelines: "+i.ResponseGuidelines)
	}
	if len(i.DoNotRespond) > 0 {
		lines = append(lines, "Never respond to messages about: "+strings.Join(i.DoNotRespond, ", "))
	}
	if len(i.AlwaysInclude) > 0 {
		lines = append(lines, "Always include: "+strings.Join(i.AlwaysInclude, ", "))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
