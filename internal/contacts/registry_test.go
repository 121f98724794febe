package contacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply/internal/connector"
)

func TestAuthorizeRequiresName(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Authorize(Profile{ContactID: "+15551234567"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAuthorizeRequiresContactID(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Authorize(Profile{Name: "Alice"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAuthorizeDefaultsExpiry(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Authorize(Profile{ContactID: "alice@example.com", Name: "Alice", Enabled: true}))

	p, err := r.Get("alice@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultAuthorizationTTL), p.ExpiresAt, time.Minute)
}

func TestAuthorizeRoundTrip(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Authorize(Profile{
		ContactID: "+15551234567",
		Name:      "Bob",
		Enabled:   true,
		Platforms: []connector.Platform{connector.PlatformWhatsApp},
	}))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "+15551234567", list[0].ContactID)
	assert.Equal(t, "Bob", list[0].Name)
}

func TestIsAuthorized(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Authorize(Profile{ContactID: "bob", Name: "Bob", Enabled: true}))
	assert.True(t, r.IsAuthorized("bob"))
	assert.False(t, r.IsAuthorized("nobody"))
}

func TestIsAuthorizedDisabled(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Authorize(Profile{ContactID: "bob", Name: "Bob", Enabled: false}))
	assert.False(t, r.IsAuthorized("bob"))
}

func TestIsAuthorizedExpired(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Authorize(Profile{
		ContactID: "bob",
		Name:      "Bob",
		Enabled:   true,
		ExpiresAt: time.Now().Add(-time.Hour),
	}))
	assert.False(t, r.IsAuthorized("bob"))
}

func TestRevoke(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Authorize(Profile{ContactID: "bob", Name: "Bob", Enabled: true}))
	require.NoError(t, r.Revoke("bob"))
	assert.False(t, r.IsAuthorized("bob"))

	_, err := r.Get("bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeUnknown(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Revoke("nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrderedByLastAccess(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Authorize(Profile{
		ContactID: "old", Name: "Old", Enabled: true,
		LastAccessed: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, r.Authorize(Profile{
		ContactID: "new", Name: "New", Enabled: true,
		LastAccessed: time.Now(),
	}))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ContactID)
	assert.Equal(t, "old", list[1].ContactID)
}

func TestTouchIncrementsInteractionCount(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Authorize(Profile{ContactID: "bob", Name: "Bob", Enabled: true}))
	r.Touch("bob")
	r.Touch("bob")

	p, err := r.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, p.InteractionCount)
}
