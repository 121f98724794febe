package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"autoreply/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// WSClient is one connected UI client
type WSClient struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// WSHub streams assistant events to connected UI clients
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]*WSClient
}

// NewWSHub creates a hub subscribed to all assistant events
func NewWSHub(bus *event.Bus) *WSHub {
	hub := &WSHub{clients: make(map[string]*WSClient)}
	bus.Subscribe([]string{"*"}, func(evt *event.Event) {
		hub.Broadcast(evt)
	})
	return hub
}

// Handle upgrades an HTTP request to a websocket connection
func (h *WSHub) Handle(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &WSClient{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 16),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	log.Printf("[WebSocket] Client connected: %s", client.ID)

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

// Broadcast sends an event to all connected clients
func (h *WSHub) Broadcast(evt *event.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Slow client, skip this event
		}
	}
}

// Close disconnects all clients
func (h *WSHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.Send)
		client.Conn.Close()
		delete(h.clients, id)
	}
}

func (h *WSHub) remove(client *WSClient) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.mu.Unlock()
	client.Conn.Close()
	log.Printf("[WebSocket] Client disconnected: %s", client.ID)
}

// readPump drains the connection; the stream is one-way but reads detect
// disconnects
func (h *WSHub) readPump(client *WSClient) {
	defer h.remove(client)
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHub) writePump(client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-client.Send:
			if !ok {
				return
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
