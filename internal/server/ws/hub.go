// Package ws fans account events from the signal bus out to WebSocket
// clients. Each client chooses which accounts it follows.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256

	// allAccounts subscribes a client to every account.
	allAccounts = "*"
)

// client represents a single WebSocket connection.
type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	accounts map[string]bool
	mu       sync.RWMutex
}

// subscribeMsg is the JSON message a client sends to change the accounts
// it follows.
type subscribeMsg struct {
	Action   string   `json:"action"` // "subscribe" or "unsubscribe"
	Accounts []string `json:"accounts"`
}

// Hub manages connected clients and routes account events to them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan routedMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	stopOnce   sync.Once
	bus        domain.SignalBus
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *slog.Logger
	startedAt  time.Time
}

// routedMsg carries an event with the account it belongs to.
type routedMsg struct {
	accountID string
	data      []byte
}

// Config holds hub options.
type Config struct {
	// AllowedOrigins restricts browser origins. Empty allows all.
	AllowedOrigins []string
}

// NewHub creates a hub that bridges the signal bus to WebSocket clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan routedMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws_hub")),
		startedAt:  time.Now().UTC(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Run starts the hub's event loop and the bus subscription. It returns when
// ctx is cancelled; connections arriving after that are closed immediately.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.done) })
	go h.subscribe(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.WSConnections.Set(0)
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnections.Set(float64(n))
			h.logger.Debug("client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnections.Set(float64(n))
			h.logger.Debug("client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg routedMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.follows(msg.accountID) {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			h.logger.Warn("dropping message for slow client", slog.String("account_id", msg.accountID))
		}
	}
}

// subscribe forwards account channel traffic to the event loop.
func (h *Hub) subscribe(ctx context.Context) {
	msgCh, err := h.bus.Subscribe(ctx, domain.AccountChannelPattern)
	if err != nil {
		h.logger.Error("subscribe failed",
			slog.String("channel", domain.AccountChannelPattern),
			slog.String("error", err.Error()),
		)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("account subscription closed")
				return
			}
			id, ok := eventAccount(data)
			if !ok {
				h.logger.Warn("dropping malformed account event", slog.Int("bytes", len(data)))
				continue
			}
			select {
			case h.broadcast <- routedMsg{accountID: id, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// eventAccount extracts the account id from an event envelope.
func eventAccount(data []byte) (string, bool) {
	var evt struct {
		AccountID string `json:"account_id"`
	}
	if err := json.Unmarshal(data, &evt); err != nil || evt.AccountID == "" {
		return "", false
	}
	return evt.AccountID, true
}

// HandleWS upgrades the request and registers the client. Accounts listed
// in the repeated "account" query parameter are followed from the start.
// GET /ws?account=<id>
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		accounts: make(map[string]bool),
	}
	for _, id := range r.URL.Query()["account"] {
		if id = strings.TrimSpace(id); id != "" {
			c.accounts[id] = true
		}
	}

	if !h.join(c) {
		conn.Close()
		return
	}
	c.sendHello()

	go c.writePump()
	go c.readPump()
}

// join hands c to the event loop. It reports false once the hub has stopped.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave removes c from the event loop, or returns at once if the hub has
// stopped and already dropped every client.
func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err == nil {
			c.apply(sub)
		}
	}
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		for _, id := range msg.Accounts {
			c.accounts[id] = true
		}
	case "unsubscribe":
		for _, id := range msg.Accounts {
			delete(c.accounts, id)
		}
	}
}

func (c *client) follows(accountID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accounts[allAccounts] || c.accounts[accountID]
}

// sendHello tells the client the connection is live.
func (c *client) sendHello() {
	c.mu.RLock()
	following := make([]string, 0, len(c.accounts))
	for id := range c.accounts {
		following = append(following, id)
	}
	c.mu.RUnlock()

	msg, err := json.Marshal(map[string]any{
		"type":           "hello",
		"accounts":       following,
		"uptime_seconds": max(0, int64(time.Since(c.hub.startedAt).Seconds())),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
