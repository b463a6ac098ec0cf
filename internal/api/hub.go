package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Push message types.
const (
	TypeConfigChanged = "config-changed"
	TypeStateChanged  = "state-changed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 64
)

// Message is one push frame.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newMessage(msgType string, payload any) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	return Message{Type: msgType, Payload: data}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameHostOrigin,
}

// sameHostOrigin accepts non-browser clients and pages served from the same host.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Hub tracks push clients and fans broadcasts out to them.
type Hub struct {
	logger  *zap.Logger
	welcome func() []Message

	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}

	// pending holds the latest frame per message type until the hub loop
	// takes it. Every frame is a full snapshot, so older ones are redundant.
	pendingMu sync.Mutex
	pending   map[string][]byte
	order     []string
	wake      chan struct{}
}

type wsClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newHub(logger *zap.Logger, welcome func() []Message) *Hub {
	return &Hub{
		logger:     logger.Named("hub"),
		welcome:    welcome,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		pending:    make(map[string][]byte),
		wake:       make(chan struct{}, 1),
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			for _, m := range h.welcome() {
				if data, err := json.Marshal(m); err == nil {
					h.deliver(c, data)
				}
			}
			h.logger.Debug("client connected", zap.String("client", c.id), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
				h.logger.Debug("client disconnected", zap.String("client", c.id), zap.Int("clients", len(h.clients)))
			}

		case <-h.wake:
			for _, data := range h.takePending() {
				for c := range h.clients {
					h.deliver(c, data)
				}
			}

		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		}
	}
}

// deliver drops a client whose buffer is full rather than blocking the hub.
func (h *Hub) deliver(c *wsClient, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("client too slow, dropping", zap.String("client", c.id))
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues a message for every client. It never blocks; a message
// not yet sent is replaced by a newer one of the same type.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := json.Marshal(newMessage(msgType, payload))
	if err != nil {
		h.logger.Warn("marshal broadcast failed", zap.Error(err))
		return
	}

	h.pendingMu.Lock()
	if _, queued := h.pending[msgType]; !queued {
		h.order = append(h.order, msgType)
	}
	h.pending[msgType] = data
	h.pendingMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// takePending empties the queue, oldest type first.
func (h *Hub) takePending() [][]byte {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	out := make([][]byte, 0, len(h.order))
	for _, t := range h.order {
		out = append(out, h.pending[t])
		delete(h.pending, t)
	}
	h.order = h.order[:0]
	return out
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only consumes control frames; clients never send commands here.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
