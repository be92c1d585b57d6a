// Package sync fans contact cache events out to a user's connected
// devices over websockets, so a refresh on one device updates the list
// on the others without polling.
package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/contactbook/contactbook-api/contacts"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub tracks connections per user and broadcasts events to them. It
// owns a single goroutine; all channel/connection bookkeeping happens
// there, so no locks are needed.
type Hub struct {
	users map[string][]*connection

	register   chan *connection
	unregister chan *connection
	events     chan contacts.Event

	// done is closed when Run returns so readers blocked on
	// unregister can bail out.
	done chan struct{}

	logger *zap.Logger
}

// NewHub creates the hub. Call Run before publishing.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		users:      make(map[string][]*connection),
		register:   make(chan *connection),
		unregister: make(chan *connection),
		events:     make(chan contacts.Event, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and events until ctx is cancelled, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.users[c.userID] = append(h.users[c.userID], c)
			h.logger.Debug("sync client connected",
				zap.String("user_id", c.userID),
				zap.Int("devices", len(h.users[c.userID])))

		case c := <-h.unregister:
			h.drop(c)

		case ev := <-h.events:
			h.broadcast(ev)

		case <-ctx.Done():
			for _, conns := range h.users {
				for _, c := range conns {
					close(c.send)
				}
			}
			h.users = make(map[string][]*connection)
			close(h.done)
			return
		}
	}
}

// Publish queues an event for the owning user's devices. It never
// blocks the caller; when the hub is saturated the event is dropped,
// since clients refetch on reconnect anyway.
func (h *Hub) Publish(ev contacts.Event) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("sync event dropped", zap.String("type", ev.Type))
	}
}

func (h *Hub) broadcast(ev contacts.Event) {
	conns := h.users[ev.UserID]
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode sync event", zap.Error(err))
		return
	}

	// Collect slow consumers first; drop mutates h.users[ev.UserID]
	// and must not run while we range over it.
	var slow []*connection
	for _, c := range conns {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		// Drop the connection rather than the hub.
		h.drop(c)
		close(c.send)
		h.logger.Warn("sync client dropped, send buffer full",
			zap.String("user_id", c.userID))
	}
}

func (h *Hub) drop(c *connection) {
	conns := h.users[c.userID]
	for i, conn := range conns {
		if conn == c {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(h.users, c.userID)
	} else {
		h.users[c.userID] = conns
	}
}

// connection is one device's websocket.
type connection struct {
	userID string
	ws     *websocket.Conn
	send   chan []byte
}

// ServeWS upgrades the request and attaches the connection to the hub.
// The caller has already authenticated the request; userID is the
// verified subject.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &connection{
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
	}
	select {
	case h.register <- c:
	case <-h.done:
		ws.Close()
		return
	}

	go c.writer()
	c.reader(h)
}

// detach hands the connection back to the hub, or gives up if the hub
// has already shut down.
func (h *Hub) detach(c *connection) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// reader discards inbound frames; the sync channel is server-to-client
// only. It unregisters the connection when the peer goes away.
func (c *connection) reader(h *Hub) {
	defer func() {
		h.detach(c)
		c.ws.Close()
	}()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *connection) writer() {
	defer c.ws.Close()
	for payload := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
