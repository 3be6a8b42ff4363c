// Package events pushes panel events to browsers over websockets.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"protonmc/internal/auth"
	"protonmc/internal/logging"
	"protonmc/internal/minecraft"
)

// Websocket message types, matching gorilla/fasthttp websocket.
const (
	TextMessage = 1
	sendBuffer  = 256
)

// Conn is the subset of a websocket connection the hub uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Frame is the JSON envelope of every websocket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Page is what the browser reports in page_change.
type Page struct {
	Page     string `json:"page"`
	ServerID string `json:"serverId"`
	DashPage string `json:"dash_page"`
}

// Filter selects recipients. Empty fields match everyone.
type Filter struct {
	Server   string
	Page     string
	DashPage string
	MinLevel int
}

// Notification levels understood by the panel.
const (
	NotifySuccess = "success"
	NotifyError   = "error"
	NotifyWarning = "warning"
	NotifyInfo    = "info"
)

type client struct {
	id       string
	username string
	level    int
	conn     Conn
	send     chan []byte

	mu   sync.RWMutex
	page Page
}

func (c *client) setPage(p Page) {
	c.mu.Lock()
	c.page = p
	c.mu.Unlock()
}

func (c *client) matches(f Filter) bool {
	c.mu.RLock()
	p := c.page
	c.mu.RUnlock()
	switch {
	case f.Server != "" && p.ServerID != f.Server:
		return false
	case f.Page != "" && p.Page != f.Page:
		return false
	case f.DashPage != "" && p.DashPage != f.DashPage:
		return false
	}
	return c.level >= f.MinLevel
}

// Hub tracks connected browsers and fans events out to them.
type Hub struct {
	log *logging.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger) *Hub {
	if log == nil {
		log = logging.Nop()
	}
	return &Hub{log: log.With("component", "events"), clients: map[string]*client{}}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs one connection until it closes or ctx ends. It blocks.
func (h *Hub) Serve(ctx context.Context, conn Conn, username string, level int) {
	c := &client{
		id:       uuid.NewString(),
		username: username,
		level:    level,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Info("ws_client_connected", "client", c.id, "user", username)

	ctx, cancel := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, c)
	}()

	h.deliver(c, "connected", map[string]string{"message": "Connected to ProtonMC WebSocket"})
	h.readLoop(c)

	cancel()
	<-writerDone
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	_ = conn.Close()
	h.log.Info("ws_client_disconnected", "client", c.id, "user", username)
}

func (h *Hub) readLoop(c *client) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			h.log.Debug("ws_bad_frame", "client", c.id, "error", err)
			continue
		}
		if f.Event == "page_change" {
			var p Page
			if err := json.Unmarshal(f.Data, &p); err == nil {
				c.setPage(p)
			}
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			// unblocks readLoop when the server shuts down
			_ = c.conn.Close()
			return
		case msg := <-c.send:
			if err := c.conn.WriteMessage(TextMessage, msg); err != nil {
				h.log.Debug("ws_write_failed", "client", c.id, "error", err)
				_ = c.conn.Close()
				return
			}
		}
	}
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

func (h *Hub) deliver(c *client, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		h.log.Error("ws_encode_failed", "event", event, "error", err)
		return
	}
	h.enqueue(c, msg)
}

func (h *Hub) enqueue(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn("ws_client_slow_drop", "client", c.id)
	}
}

// Broadcast sends event to every client matching f and returns how many were addressed.
func (h *Hub) Broadcast(event string, data any, f Filter) int {
	msg, err := encode(event, data)
	if err != nil {
		h.log.Error("ws_encode_failed", "event", event, "error", err)
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.matches(f) {
			h.enqueue(c, msg)
			n++
		}
	}
	return n
}

// Notify pushes a toast. An empty server reaches every client.
func (h *Hub) Notify(server, message, level string) {
	h.Broadcast("notification", map[string]string{"message": message, "type": level}, Filter{Server: server})
}

// HandleEvent forwards server events. It implements minecraft.Sink.
func (h *Hub) HandleEvent(e minecraft.Event) {
	switch e.Type {
	case minecraft.EventConsole:
		h.Broadcast("console", map[string]string{"server": e.Server, "line": e.Line}, Filter{
			Server:   e.Server,
			Page:     "server_dashboard",
			DashPage: "console",
			MinLevel: auth.Level(auth.PermViewConsole),
		})
	case minecraft.EventState:
		h.Broadcast("status", map[string]string{"server": e.Server, "state": string(e.State)}, Filter{Server: e.Server})
	case minecraft.EventStartFailed:
		h.Notify(e.Server, "Server "+e.Server+" failed to start: "+e.Detail, NotifyError)
	}
}
