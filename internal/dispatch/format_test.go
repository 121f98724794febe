package dispatch

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"autoreply/internal/connector"
	"autoreply/internal/contacts"
)

func TestFormatSMSExactLimit(t *testing.T) {
	text := strings.Repeat("a", SMSMaxLength)

	got := Format(connector.PlatformSMS, text, contacts.Profile{})

	assert.Equal(t, text, got)
}

func TestFormatSMSTruncation(t *testing.T) {
	text := strings.Repeat("a", SMSMaxLength+1)

	got := Format(connector.PlatformSMS, text, contacts.Profile{})

	assert.Len(t, got, SMSMaxLength)
	assert.Equal(t, strings.Repeat("a", 157)+"...", got)
}

func TestFormatSMSMultibyteUnderLimitKept(t *testing.T) {
	// 100 characters, 200 bytes: under the limit, must pass through
	text := strings.Repeat("é", 100)

	got := Format(connector.PlatformSMS, text, contacts.Profile{})

	assert.Equal(t, text, got)
}

func TestFormatSMSMultibyteTruncation(t *testing.T) {
	text := strings.Repeat("é", 200)

	got := Format(connector.PlatformSMS, text, contacts.Profile{})

	runes := []rune(got)
	assert.Len(t, runes, SMSMaxLength)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("é", 157), string(runes[:SMSMaxLength-3]))
}

func TestFormatEmailSignatureOnlyWhenEnabled(t *testing.T) {
	withSig := contacts.Profile{IncludeSignature: true, Signature: "-- J"}
	disabled := contacts.Profile{IncludeSignature: false, Signature: "-- J"}
	empty := contacts.Profile{IncludeSignature: true}

	assert.Equal(t, "hello\n\n-- J", Format(connector.PlatformEmail, "hello", withSig))
	assert.Equal(t, "hello", Format(connector.PlatformEmail, "hello", disabled))
	assert.Equal(t, "hello", Format(connector.PlatformEmail, "hello", empty))
}

func TestFormatPassThrough(t *testing.T) {
	long := strings.Repeat("b", 500)

	for _, platform := range []connector.Platform{
		connector.PlatformWhatsApp,
		connector.PlatformSlack,
		connector.PlatformDiscord,
	} {
		assert.Equal(t, long, Format(platform, long, contacts.Profile{}))
	}
}
