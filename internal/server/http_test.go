package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply/internal/assistant"
	"autoreply/internal/connector"
	"autoreply/internal/contacts"
	"autoreply/internal/dispatch"
	"autoreply/internal/event"
	"autoreply/internal/history"
	"autoreply/internal/llm"
	"autoreply/internal/profile"
	"autoreply/internal/storage"
)

type echoProvider struct{}

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) Generate(ctx context.Context, system string, messages []llm.Message) (string, error) {
	return "generated reply", nil
}

type memConnector struct {
	platform connector.Platform
	sent     []string
	inbound  connector.Message
	creds    map[string]string
}

func (f *memConnector) UpdateCredentials(creds map[string]string) { f.creds = creds }

func (f *memConnector) Platform() connector.Platform         { return f.platform }
func (f *memConnector) Initialize(ctx context.Context) error { return nil }
func (f *memConnector) IsConfigured() bool                   { return true }
func (f *memConnector) TestConnection(ctx context.Context) (connector.ConnectionInfo, error) {
	return connector.ConnectionInfo{Account: "bot"}, nil
}

func (f *memConnector) SendMessage(ctx context.Context, recipient, text string) (connector.Receipt, error) {
	f.sent = append(f.sent, text)
	return connector.Receipt{MessageID: "m1", Timestamp: time.Now()}, nil
}

func (f *memConnector) HandleWebhook(raw []byte) (connector.Message, error) {
	if f.inbound.Content == "" {
		return connector.Message{}, errors.New("no message")
	}
	return f.inbound, nil
}

func newTestServer(t *testing.T) (*Server, *memConnector) {
	t.Helper()

	profiles, err := profile.NewManagerAt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(profiles.Stop)

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	reg := contacts.NewRegistry(nil)
	hist := history.NewLog(0, nil)
	bus := event.NewBus()
	connectors := connector.NewRegistry()
	conn := &memConnector{platform: connector.PlatformSlack}
	require.NoError(t, connectors.Register(conn))

	dispatcher := dispatch.New(reg, connectors, hist, bus)
	generator := llm.NewGenerator()
	generator.Register(&echoProvider{})

	s := &Server{
		store:      store,
		contacts:   reg,
		history:    hist,
		profiles:   profiles,
		connectors: connectors,
		generator:  generator,
		dispatcher: dispatcher,
		assistant:  assistant.New(reg, hist, profiles, generator, dispatcher, bus),
		bus:        bus,
		hub:        NewWSHub(bus),
	}
	return s, conn
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAuthorizeAndGetContact(t *testing.T) {
	s, _ := newTestServer(t)
	e := s.routes()

	rec := doRequest(e, http.MethodPost, "/api/contacts/bob",
		`{"name":"Bob","platforms":["slack"],"preferred_style":"Casual"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/contacts/bob", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Bob"`)
}

func TestAuthorizeRejectsMissingName(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodPost, "/api/contacts/bob", `{"platforms":["slack"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorizeRejectsUnknownPlatform(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodPost, "/api/contacts/bob",
		`{"name":"Bob","platforms":["pager"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownContact(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodGet, "/api/contacts/nobody", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRevokeContactClearsHistory(t *testing.T) {
	s, _ := newTestServer(t)
	e := s.routes()

	doRequest(e, http.MethodPost, "/api/contacts/bob", `{"name":"Bob","platforms":["slack"]}`)
	require.NoError(t, s.history.Append("bob", history.Entry{Content: "hi"}))

	rec := doRequest(e, http.MethodDelete, "/api/contacts/bob", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, s.history.Len("bob"))

	rec = doRequest(e, http.MethodGet, "/api/contacts/bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendForbiddenForUnauthorizedContact(t *testing.T) {
	s, conn := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodPost, "/api/send/nobody",
		`{"content":"hi","platform":"slack"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, conn.sent)
}

func TestSendDispatchesReply(t *testing.T) {
	s, conn := newTestServer(t)
	e := s.routes()

	doRequest(e, http.MethodPost, "/api/contacts/bob", `{"name":"Bob","platforms":["slack"]}`)

	rec := doRequest(e, http.MethodPost, "/api/send/bob", `{"content":"on my way","platform":"slack"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"on my way"}, conn.sent)
}

func TestGenerateReplyEndpoint(t *testing.T) {
	s, conn := newTestServer(t)
	e := s.routes()

	doRequest(e, http.MethodPost, "/api/contacts/bob", `{"name":"Bob","platforms":["slack"]}`)

	rec := doRequest(e, http.MethodPost, "/api/generate-reply/bob",
		`{"content":"are you free?","platform":"slack"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "generated reply")
	assert.Empty(t, conn.sent)
}

func TestWebhookQueuesInbound(t *testing.T) {
	s, conn := newTestServer(t)
	conn.inbound = connector.Message{
		ID:       "in-1",
		From:     "U123",
		Content:  "hello",
		Platform: connector.PlatformSlack,
	}

	rec := doRequest(s.routes(), http.MethodPost, "/webhook/slack", `{"anything":"goes"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "queued")
}

func TestWebhookSlackURLVerification(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodPost, "/webhook/slack",
		`{"type":"url_verification","challenge":"abc123"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "abc123")
}

func TestWebhookUnknownPlatform(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodPost, "/webhook/pager", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookVerifyEchoesChallenge(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodGet, "/webhook/facebook?hub.challenge=xyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xyz", rec.Body.String())
}

func TestListConnectors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodGet, "/api/connectors", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"platform":"slack"`)
	assert.Contains(t, rec.Body.String(), `"configured":true`)
}

func TestUpdateConnectorPersistsCredentials(t *testing.T) {
	s, conn := newTestServer(t)
	e := s.routes()

	rec := doRequest(e, http.MethodPost, "/api/connectors/slack", `{"bot_token":"xoxb-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xoxb-1", conn.creds["bot_token"])

	saved, err := s.store.GetConnector("slack")
	require.NoError(t, err)
	assert.Contains(t, saved.Credentials, "xoxb-1")
	assert.True(t, saved.Configured)

	// a partial update keeps the keys it doesn't mention
	rec = doRequest(e, http.MethodPost, "/api/connectors/slack", `{"signing_secret":"ss-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xoxb-1", conn.creds["bot_token"])
	assert.Equal(t, "ss-1", conn.creds["signing_secret"])
}

func TestUpdateConnectorUnknownPlatform(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s.routes(), http.MethodPost, "/api/connectors/pager", `{"key":"v"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoredCredentialsAppliedOnStartup(t *testing.T) {
	s, conn := newTestServer(t)

	require.NoError(t, s.store.SaveConnector(&storage.ConnectorRecord{
		Platform:    "slack",
		Credentials: `{"bot_token":"stored"}`,
		Configured:  true,
	}))

	s.applyStoredCredentials()

	assert.Equal(t, "stored", conn.creds["bot_token"])
}

func TestPersonalityRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	e := s.routes()

	rec := doRequest(e, http.MethodPut, "/api/personality", `{"name":"Jordan","tone":"dry"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/personality", "")
	assert.Contains(t, rec.Body.String(), `"name":"Jordan"`)
	assert.Contains(t, rec.Body.String(), `"tone":"dry"`)
}

func TestInstructionsRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	e := s.routes()

	rec := doRequest(e, http.MethodPut, "/api/instructions",
		`{"do_not_respond":["taxes"],"auto_response_limit":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/instructions", "")
	assert.Contains(t, rec.Body.String(), `"auto_response_limit":5`)
}
