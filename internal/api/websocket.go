package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/device-inventory/internal/infrastructure/config"
	"github.com/nerrad567/device-inventory/internal/infrastructure/logging"
)

// Message types exchanged on the device event feed.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is how many encoded events a client may lag behind
	// before further events are skipped for it.
	wsSendBufferSize = 256

	// wildcardSuffix marks a channel pattern such as "device.*".
	wildcardSuffix = ".*"
)

// WSMessage is the envelope for every frame on the feed.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
//
// Channels are device event types ("device.issued") or a prefix pattern
// ending in ".*" ("device.*" receives every device event).
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans committed device events out to connected dashboard clients.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one dashboard connection and the channels it follows.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex

	// Account that redeemed the ticket.
	userID   string
	username string
}

// Origin is not checked here: a connection needs a ticket, and tickets are
// only issued to authenticated callers under the CORS policy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsTimings holds the keepalive durations derived from config.
type wsTimings struct {
	ping     time.Duration
	readWait time.Duration
	write    time.Duration
}

func timingsFrom(cfg config.WebSocketConfig) wsTimings {
	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return wsTimings{ping: ping, readWait: ping + pong, write: pong}
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("dashboard client connected", "user", client.username, "clients", n)
}

// Unregister removes a client from the hub. It is safe to call more than
// once; the send channel is closed only by the call that removed it.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if !present {
		return
	}
	close(client.send)
	h.logger.Debug("dashboard client disconnected", "user", client.username, "clients", n)
}

// Broadcast pushes one device event to every client following channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encode(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("encoding device event for dashboards", "channel", channel, "error", err)
		return
	}

	var sent, skipped int
	for _, c := range h.following(channel) {
		if c.trySend(data) {
			sent++
			continue
		}
		skipped++
	}

	if skipped > 0 {
		h.logger.Warn("device event skipped for lagging dashboards", "channel", channel, "skipped", skipped)
	}
	if sent > 0 {
		h.logger.Debug("device event pushed", "channel", channel, "recipients", sent)
	}
}

// following returns the clients subscribed to channel. The client list is
// copied under the hub lock; subscriptions are checked after it is released.
func (h *Hub) following(channel string) []*WSClient {
	h.mu.RLock()
	all := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	out := all[:0]
	for _, c := range all {
		if c.isSubscribed(channel) {
			out = append(out, c)
		}
	}
	return out
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// handleWebSocket upgrades a request carrying a ticket from
// POST /api/ws/ticket into a device event feed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "user", entry.username, "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		userID:        entry.userID,
		username:      entry.username,
	}
	s.hub.Register(client)

	timings := timingsFrom(s.wsCfg)
	go client.writePump(timings)
	go client.readPump(s.wsCfg.MaxMessageSize, timings)
}

// readPump handles subscribe, unsubscribe and ping frames until the
// connection fails or the client stops answering pings.
func (c *WSClient) readPump(maxSize int, t wsTimings) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.readWait)) }

	c.conn.SetReadLimit(int64(maxSize))
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("dashboard connection lost", "user", c.username, "error", err)
			}
			return
		}
		extend() //nolint:errcheck // a failed deadline surfaces on the next read
		c.handleMessage(frame)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *WSClient) writePump(t wsTimings) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(t.write)) //nolint:errcheck // write below reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, open := <-c.send:
			if !open {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is going away
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// handleMessage processes one frame from the client.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.follow(msg, true)
	case WSTypeUnsubscribe:
		c.follow(msg, false)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// follow adds or removes the channels named in msg.
func (c *WSClient) follow(msg WSMessage, on bool) {
	channels, ok := channelsFrom(msg)
	if !ok {
		c.sendError(msg.ID, "invalid "+msg.Type+" payload")
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		if on {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if on {
		key = "subscribed"
		c.hub.logger.Debug("dashboard following channels", "user", c.username, "channels", channels)
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{key: channels})
}

// channelsFrom re-decodes the generic payload of msg.
func channelsFrom(msg WSMessage) ([]string, bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, false
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, false
	}
	return sub.Channels, true
}

// isSubscribed reports whether channel matches one of the client's
// subscriptions, exactly or by ".*" prefix pattern.
func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.subscriptions[channel]; ok {
		return true
	}
	for sub := range c.subscriptions {
		if prefix, ok := strings.CutSuffix(sub, wildcardSuffix); ok && strings.HasPrefix(channel, prefix+".") {
			return true
		}
	}
	return false
}

// trySend queues data without blocking. It reports false when the client
// is lagging or has already been disconnected.
func (c *WSClient) trySend(data []byte) (queued bool) {
	// A concurrent Unregister may close send between the lookup and here.
	defer func() {
		if recover() != nil {
			queued = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := encode(WSMessage{Type: msgType, ID: id, Payload: payload})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}

// encode stamps msg with the current time and marshals it.
func encode(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}
