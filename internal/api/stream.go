package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pathplanner/pkg/link"
	"pathplanner/pkg/pathstore"
	"pathplanner/pkg/sim"
)

// Stream message types.
const (
	MessageHello     = "hello"
	MessageFrame     = "frame"
	MessageTelemetry = "telemetry"
	MessagePaths     = "paths"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 64
	broadcastQueue = 256
)

// Message is the envelope pushed to stream clients.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// TelemetryUpdate is the data of a telemetry message.
type TelemetryUpdate struct {
	Telemetry link.Telemetry `json:"telemetry"`
	Lines     []string       `json:"lines"`
}

// PathsUpdate is the data of a paths message.
type PathsUpdate struct {
	Kind   pathstore.ChangeKind `json:"kind"`
	Path   string               `json:"path"`
	Active string               `json:"active"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans playback frames, telemetry and path changes out to websocket
// clients. It implements core.FrameSink and core.TelemetrySink. Publishing
// never blocks: messages are dropped when a queue is full.
type Hub struct {
	upgrader   websocket.Upgrader
	status     func() link.Summary
	register   chan *streamClient
	unregister chan *streamClient
	broadcast  chan Message
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

// NewHub creates a hub. status, if set, supplies the dashboard lines sent
// with each telemetry message.
func NewHub(status func() link.Summary) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		status:     status,
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		broadcast:  make(chan Message, broadcastQueue),
		done:       make(chan struct{}),
		clients:    make(map[*streamClient]struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled. It must
// be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			slog.Debug("Stream: client connected", "remote", c.conn.RemoteAddr(), "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			slog.Debug("Stream: client disconnected", "remote", c.conn.RemoteAddr())

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slog.Debug("Stream: dropping message for slow client", "type", msg.Type)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(typ string, data any) {
	msg := Message{Type: typ, Data: data, Timestamp: time.Now().UnixMilli()}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// UpdateFrame implements core.FrameSink.
func (h *Hub) UpdateFrame(f sim.Frame) {
	h.publish(MessageFrame, newPlaybackResponse(f))
}

// UpdateTelemetry implements core.TelemetrySink.
func (h *Hub) UpdateTelemetry(t link.Telemetry) {
	s := link.EmptySummary()
	if h.status != nil {
		s = h.status()
	}
	h.publish(MessageTelemetry, TelemetryUpdate{Telemetry: t, Lines: s.Lines()})
}

// OnPathChange forwards path store changes. Register it with
// pathstore.Store.Subscribe.
func (h *Hub) OnPathChange(c pathstore.Change) {
	h.publish(MessagePaths, PathsUpdate{Kind: c.Kind, Path: c.Path, Active: c.Active})
}

// ServeHTTP upgrades the request and streams messages until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Stream: upgrade failed", "error", err)
		return
	}
	c := &streamClient{conn: conn, send: make(chan Message, clientBuffer)}
	c.send <- Message{
		Type:      MessageHello,
		Data:      map[string]any{"connected_at": time.Now().Format(time.RFC3339)},
		Timestamp: time.Now().UnixMilli(),
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writeLoop()
	c.readLoop()

	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// readLoop discards client input; it only exists to notice disconnects and
// answer pings.
func (c *streamClient) readLoop() {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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
