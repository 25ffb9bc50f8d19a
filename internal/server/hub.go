package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediasync/internal/session"
	"github.com/desertthunder/mediasync/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	FrameStatus = "status"
	FrameEvent  = "event"

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	clientBuffer = 64
)

// Frame is one message on the session stream.
type Frame struct {
	Type      string          `json:"type"`
	Event     string          `json:"event,omitempty"`
	Status    *session.Status `json:"status,omitempty"`
	Data      *EventData      `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventData carries the fields of a [session.Event] that clients render.
type EventData struct {
	SessionID        string  `json:"session_id,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	Error            string  `json:"error,omitempty"`
	MinutesRemaining int     `json:"minutes_remaining,omitempty"`
	TimeoutMinutes   int     `json:"timeout_minutes,omitempty"`
	IdleSeconds      float64 `json:"idle_seconds,omitempty"`
}

// StatusFrame wraps a status snapshot.
func StatusFrame(s session.Status) Frame {
	return Frame{Type: FrameStatus, Status: &s, Timestamp: s.UpdatedAt}
}

// EventFrame wraps a session event.
func EventFrame(e session.Event) Frame {
	data := &EventData{}
	switch e := e.(type) {
	case session.ConnectedEvent:
		data.SessionID = e.SessionID
	case session.DisconnectedEvent:
		data.SessionID = e.SessionID
		data.Reason = e.Reason.String()
		if e.Err != nil {
			data.Error = e.Err.Error()
		}
	case session.AutoDisconnectedEvent:
		data.SessionID = e.SessionID
		data.IdleSeconds = e.IdleFor.Seconds()
	case session.ConfigChangedEvent:
		data.SessionID = e.SessionID
	case session.WarningEvent:
		data.SessionID = e.SessionID
		data.MinutesRemaining = e.MinutesRemaining
	case session.ProtectionEvent:
		data.SessionID = e.SessionID
		data.TimeoutMinutes = e.TimeoutMinutes
	}
	return Frame{Type: FrameEvent, Event: e.Name(), Data: data, Timestamp: e.Time()}
}

// Client is one websocket connection to the session stream.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Frame
}

// Hub fans frames out to every connected stream client.
//
// A client whose buffer is full is dropped. New clients receive the latest status frame first.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Frame
	done       chan struct{}
	logger     *log.Logger

	mu   sync.RWMutex
	last *Frame
}

// NewHub creates a hub. [Hub.Run] must be started before clients register.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Frame, 256),
		done:       make(chan struct{}),
		logger:     shared.WithLogger(logger, "component", "hub"),
	}
}

// Run processes registrations and broadcasts until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.last != nil {
				client.send <- *h.last
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case frame := <-h.broadcast:
			h.mu.Lock()
			if frame.Type == FrameStatus {
				h.last = &frame
			}
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					h.logger.Warn("dropping slow stream client")
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client. Once the hub has stopped the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client. It is a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a frame for every client without blocking.
func (h *Hub) Publish(frame Frame) {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- frame:
	case <-h.done:
	default:
		h.logger.Warn("stream broadcast queue full, dropping frame", "type", frame.Type, "event", frame.Event)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Feed publishes everything a subscription delivers until it closes or ctx is done.
func (h *Hub) Feed(ctx context.Context, sub *session.Subscription) {
	statuses, events := sub.Status(), sub.Events()
	for statuses != nil || events != nil {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			h.Publish(StatusFrame(s))
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			h.Publish(EventFrame(e))
		}
	}
}

// NewClient wraps an upgraded connection. It does not start the pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan Frame, clientBuffer)}
}

// WritePump sends queued frames and keepalive pings until the hub closes the client or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			payload, err := json.Marshal(frame)
			if err != nil {
				c.hub.logger.Warn("failed to marshal frame", "err", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.logger.Debug("stream write failed", "err", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump discards inbound messages and tracks pongs. Stream clients are read-only.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debug("stream read error", "err", err)
			}
			return
		}
	}
}

// StreamHandler upgrades requests to the session stream.
type StreamHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a stream handler. Only same-host origins are accepted.
func NewStreamHandler(hub *Hub) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes returns the HTTP routes this handler serves.
func (s *StreamHandler) Routes() []string {
	return []string{StreamPath}
}

// ServeHTTP upgrades the request and starts the client pumps.
func (s *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.logger.Warn("stream upgrade failed", "err", err)
		return
	}

	client := NewClient(s.hub, conn)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
