package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"autoreply/internal/connector"
	"autoreply/internal/contacts"
	"autoreply/internal/dispatch"
	"autoreply/internal/llm"
	"autoreply/internal/profile"
	"autoreply/internal/storage"
)

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	api.GET("/contacts", s.handleListContacts)
	api.GET("/contacts/:id", s.handleGetContact)
	api.POST("/contacts/:id", s.handleAuthorizeContact)
	api.DELETE("/contacts/:id", s.handleRevokeContact)
	api.GET("/contacts/:id/history", s.handleContactHistory)
	api.POST("/generate-reply/:id", s.handleGenerateReply)
	api.POST("/send/:id", s.handleSend)
	api.GET("/personality", s.handleGetPersonality)
	api.PUT("/personality", s.handleUpdatePersonality)
	api.GET("/instructions", s.handleGetInstructions)
	api.PUT("/instructions", s.handleUpdateInstructions)
	api.GET("/connectors", s.handleListConnectors)
	api.POST("/connectors/:platform", s.handleUpdateConnector)
	api.POST("/connectors/:platform/test", s.handleTestConnector)

	e.GET("/webhook/:platform", s.handleWebhookVerify)
	e.POST("/webhook/:platform", s.handleWebhook)

	e.GET("/ws", s.hub.Handle)

	return e
}

// httpError maps the tagged error taxonomy onto status codes
func httpError(err error) error {
	switch {
	case errors.Is(err, contacts.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, contacts.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, dispatch.ErrConnectorUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, dispatch.ErrUpstream), errors.Is(err, llm.ErrUpstream):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, storage.ErrPersistence):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListContacts(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"contacts": s.contacts.List()})
}

func (s *Server) handleGetContact(c echo.Context) error {
	p, err := s.contacts.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type authorizeRequest struct {
	Name               string   `json:"name"`
	Enabled            *bool    `json:"enabled"`
	Platforms          []string `json:"platforms"`
	ExpiresAt          string   `json:"expires_at,omitempty"` // RFC3339
	PreferredStyle     string   `json:"preferred_style"`
	CustomInstructions string   `json:"custom_instructions"`
	ResponseDelay      int      `json:"response_delay"`
	MaxResponseLength  int      `json:"max_response_length"`
	IncludeSignature   bool     `json:"include_signature"`
	Signature          string   `json:"signature"`
}

func (s *Server) handleAuthorizeContact(c echo.Context) error {
	var req authorizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p := contacts.Profile{
		ContactID:          c.Param("id"),
		Name:               req.Name,
		Enabled:            true,
		PreferredStyle:     req.PreferredStyle,
		CustomInstructions: req.CustomInstructions,
		ResponseDelay:      req.ResponseDelay,
		MaxResponseLength:  req.MaxResponseLength,
		IncludeSignature:   req.IncludeSignature,
		Signature:          req.Signature,
	}
	if req.Enabled != nil {
		p.Enabled = *req.Enabled
	}
	for _, tag := range req.Platforms {
		platform, err := connector.ParsePlatform(tag)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		p.Platforms = append(p.Platforms, platform)
	}
	if req.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "expires_at must be RFC3339")
		}
		p.ExpiresAt = expires
	}

	if err := s.contacts.Authorize(p); err != nil {
		return httpError(err)
	}
	saved, err := s.contacts.Get(p.ContactID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleRevokeContact(c echo.Context) error {
	id := c.Param("id")
	if err := s.contacts.Revoke(id); err != nil {
		return httpError(err)
	}
	if err := s.history.Drop(id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleContactHistory(c echo.Context) error {
	if _, err := s.contacts.Get(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entries": s.history.Recent(c.Param("id"), 0),
	})
}

type generateRequest struct {
	Content  string `json:"content"`
	Platform string `json:"platform"`
}

func (s *Server) handleGenerateReply(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	platform, err := connector.ParsePlatform(req.Platform)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	reply, err := s.assistant.GenerateReply(c.Request().Context(), c.Param("id"), req.Content, platform)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleSend(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	platform, err := connector.ParsePlatform(req.Platform)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	receipt, err := s.dispatcher.Dispatch(c.Request().Context(), c.Param("id"), req.Content, platform)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleGetPersonality(c echo.Context) error {
	return c.JSON(http.StatusOK, s.profiles.Personality())
}

func (s *Server) handleUpdatePersonality(c echo.Context) error {
	var p profile.Personality
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.profiles.UpdatePersonality(p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleGetInstructions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.profiles.Instructions())
}

func (s *Server) handleUpdateInstructions(c echo.Context) error {
	var i profile.Instructions
	if err := c.Bind(&i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.profiles.UpdateInstructions(i); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, i)
}

func (s *Server) handleListConnectors(c echo.Context) error {
	type connectorInfo struct {
		Platform   string `json:"platform"`
		Configured bool   `json:"configured"`
	}
	infos := make([]connectorInfo, 0)
	for _, conn := range s.connectors.List() {
		infos = append(infos, connectorInfo{
			Platform:   string(conn.Platform()),
			Configured: conn.IsConfigured(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"connectors": infos})
}

// handleUpdateConnector applies new connector credentials and persists
// them, merged over any previously stored ones, so partial updates keep
// the keys they don't mention
func (s *Server) handleUpdateConnector(c echo.Context) error {
	platform, err := connector.ParsePlatform(c.Param("platform"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conn, ok := s.connectors.Get(platform)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such connector")
	}
	var creds map[string]string
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	merged := creds
	if rec, err := s.store.GetConnector(string(platform)); err == nil {
		stored := map[string]string{}
		if json.Unmarshal([]byte(rec.Credentials), &stored) == nil {
			for k, v := range creds {
				stored[k] = v
			}
			merged = stored
		}
	}

	if updater, ok := conn.(credentialUpdater); ok {
		updater.UpdateCredentials(merged)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := s.store.SaveConnector(&storage.ConnectorRecord{
		Platform:    string(platform),
		Credentials: string(data),
		Configured:  conn.IsConfigured(),
	}); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"platform":   string(platform),
		"configured": conn.IsConfigured(),
	})
}

func (s *Server) handleTestConnector(c echo.Context) error {
	platform, err := connector.ParsePlatform(c.Param("platform"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conn, ok := s.connectors.Get(platform)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such connector")
	}
	info, err := conn.TestConnection(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, info)
}

// handleWebhookVerify answers platform subscription challenges: the Graph
// API echoes hub.challenge, Slack sends its challenge on POST
func (s *Server) handleWebhookVerify(c echo.Context) error {
	if challenge := c.QueryParam("hub.challenge"); challenge != "" {
		return c.String(http.StatusOK, challenge)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(c echo.Context) error {
	platform, err := connector.ParsePlatform(c.Param("platform"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conn, ok := s.connectors.Get(platform)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such connector")
	}

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}

	// Slack URL verification arrives as a plain POST
	if platform == connector.PlatformSlack {
		var check struct {
			Type      string `json:"type"`
			Challenge string `json:"challenge"`
		}
		if json.Unmarshal(raw, &check) == nil && check.Type == "url_verification" {
			return c.JSON(http.StatusOK, map[string]string{"challenge": check.Challenge})
		}
	}

	msg, err := conn.HandleWebhook(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.assistant.Enqueue(msg)
	return c.JSON(http.StatusOK, map[string]string{"status": "queued"})
}
