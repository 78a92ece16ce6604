// Package monitoring streams training progress to dashboard clients over
// websockets.
package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventType tags a progress message.
type EventType string

const (
	RunStarted  EventType = "run_started"
	Candidate   EventType = "candidate"
	TunerTrial  EventType = "tuner_trial"
	RunFinished EventType = "run_finished"
	RunFailed   EventType = "run_failed"
)

// Event is the wire format of one progress message.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ProgressHub fans training events out to connected websocket clients.
// Publishing never blocks training: slow clients are dropped.
type ProgressHub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

const clientBuffer = 64

// NewProgressHub builds an empty hub.
func NewProgressHub(logger *zap.Logger) *ProgressHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHub{
		clients: make(map[*client]bool),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and registers the client.
func (h *ProgressHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Publish marshals data and broadcasts it to every connected client.
func (h *ProgressHub) Publish(eventType EventType, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn("cannot marshal progress event", zap.Error(err))
		return
	}
	payload, err := json.Marshal(Event{Type: eventType, Timestamp: time.Now(), Data: raw})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Client cannot keep up; closing its channel ends the write loop.
			go h.drop(c)
		}
	}
}

// ClientCount reports connected clients.
func (h *ProgressHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *ProgressHub) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *ProgressHub) readLoop(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}
