// Package live pushes wear events to dashboards over WebSocket.
package live

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fleetwear/internal/events"
	"fleetwear/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 32
)

// Frame is the wire format for messages sent to clients.
type Frame struct {
	Type    string          `json:"type"` // hello, event
	Payload json.RawMessage `json:"payload"`
}

// Hub fans bus events out to connected WebSocket clients.
type Hub struct {
	upgrader websocket.Upgrader

	mu          sync.Mutex
	clients     map[*client]struct{}
	closed      bool
	unsubscribe func()
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	filter filter
	once   sync.Once
}

// filter narrows the events a client receives. Empty fields match anything.
type filter struct {
	kind      string
	vehicleID string
}

func (f filter) match(e events.Event) bool {
	if f.kind != "" && e.VehicleKind != f.kind {
		return false
	}
	if f.vehicleID != "" && e.VehicleID != f.vehicleID {
		return false
	}
	return true
}

// NewHub creates a hub and subscribes it to wear and scan events on bus.
//
// The feed also accepts the token cookie, so browser upgrades are checked by
// origin: against allowedOrigins when set, otherwise the page must be served
// from the same host. Requests without an Origin header (non-browser
// clients) are accepted either way.
func NewHub(bus *events.Bus, allowedOrigins []string) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		clients: make(map[*client]struct{}),
	}
	if bus != nil {
		h.unsubscribe = bus.Subscribe(h.Broadcast,
			events.WearWarning, events.WearCritical, events.WearRecovered,
			events.ScanCompleted, events.ScanFailed)
	}
	return h
}

// originChecker returns nil, gorilla's same-host check, when no origins are
// configured.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.ContainsFunc(allowed, func(o string) bool {
			return strings.EqualFold(strings.TrimSuffix(o, "/"), origin)
		})
	}
}

// HandleConnection upgrades the request. Optional query parameters kind and
// vehicle_id restrict the stream.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	lg := logging.Component("live")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lg.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		filter: filter{
			kind:      r.URL.Query().Get("kind"),
			vehicleID: r.URL.Query().Get("vehicle_id"),
		},
	}

	if hello, err := encodeFrame("hello", map[string]any{"connected_at": time.Now().UTC()}); err == nil {
		c.send <- hello
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	lg.Debug().Str("remote", r.RemoteAddr).Msg("client connected")
	go h.writePump(c)
	h.readPump(c)
	lg.Debug().Str("remote", r.RemoteAddr).Msg("client disconnected")
}

// Broadcast queues e for every matching client. Clients whose buffer is
// full are disconnected.
func (h *Hub) Broadcast(e events.Event) {
	msg, err := encodeFrame("event", e)
	if err != nil {
		lg := logging.Component("live")
		lg.Error().Err(err).Msg("encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.filter.match(e) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.dropLocked(c)
		}
	}
}

// readPump discards client messages and keeps the read deadline fresh.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				lg := logging.Component("live")
				lg.Debug().Err(err).Msg("read error")
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.once.Do(func() { close(c.send) })
}

// ActiveConnections returns the number of connected clients.
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll detaches from the bus, disconnects every client and rejects
// new ones.
func (h *Hub) CloseAll() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func encodeFrame(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: kind, Payload: raw})
}
