package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name  string
	reply string
	err   error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(ctx context.Context, system string, messages []Message) (string, error) {
	return p.reply, p.err
}

func TestGenerateReplyUsesDefaultProvider(t *testing.T) {
	g := NewGenerator()
	g.Register(&stubProvider{name: "first", reply: "from first"})
	g.Register(&stubProvider{name: "second", reply: "from second"})

	reply, err := g.GenerateReply(context.Background(), "", "system", nil)
	require.NoError(t, err)
	assert.Equal(t, "from first", reply)
}

func TestGenerateReplyByName(t *testing.T) {
	g := NewGenerator()
	g.Register(&stubProvider{name: "first", reply: "from first"})
	g.Register(&stubProvider{name: "second", reply: "from second"})

	reply, err := g.GenerateReply(context.Background(), "second", "system", nil)
	require.NoError(t, err)
	assert.Equal(t, "from second", reply)
}

func TestSetDefault(t *testing.T) {
	g := NewGenerator()
	g.Register(&stubProvider{name: "first", reply: "from first"})
	g.Register(&stubProvider{name: "second", reply: "from second"})

	require.NoError(t, g.SetDefault("second"))
	reply, err := g.GenerateReply(context.Background(), "", "system", nil)
	require.NoError(t, err)
	assert.Equal(t, "from second", reply)

	require.Error(t, g.SetDefault("missing"))
}

func TestGenerateReplyNoProviders(t *testing.T) {
	g := NewGenerator()

	_, err := g.GenerateReply(context.Background(), "", "system", nil)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestGenerateReplyWrapsProviderError(t *testing.T) {
	g := NewGenerator()
	g.Register(&stubProvider{name: "flaky", err: errors.New("boom")})

	_, err := g.GenerateReply(context.Background(), "", "system", nil)
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "boom")
}
