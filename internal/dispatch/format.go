package dispatch

import (
	"autoreply/internal/connector"
	"autoreply/internal/contacts"
)

// SMSMaxLength is the single-segment SMS limit
const SMSMaxLength = 160

// Format applies per-platform formatting to an outgoing reply. SMS is
// truncated to 160 characters ending in "...", email gets the contact's
// signature appended when configured, everything else passes through.
func Format(platform connector.Platform, text string, contact contacts.Profile) string {
	switch platform {
	case connector.PlatformSMS:
		return truncate(text, SMSMaxLength)
	case connector.PlatformEmail:
		if contact.IncludeSignature && contact.Signature != "" {
			return text + "\n\n" + contact.Signature
		}
		return text
	default:
		return text
	}
}

// truncate limits text to max characters, not bytes, so multibyte
// replies are neither cut early nor split mid-rune
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}
