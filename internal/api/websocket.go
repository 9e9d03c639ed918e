package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/snapshot"
	"github.com/zoneinfo/server/internal/streaming"
)

const (
	// ProtocolVersion1 is the only supported WebSocket subprotocol.
	ProtocolVersion1 = "zoneinfo-v1"

	defaultPingInterval = 30 * time.Second
	pongWait            = 60 * time.Second
	writeTimeout        = 10 * time.Second
	maxMessageSize      = 4 << 10
	sendBuffer          = 32
)

// WebSocketMessage is the envelope of every frame in both directions.
type WebSocketMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocketError is an error frame.
type WebSocketError struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SnapshotMessage is the payload of a "snapshot" frame.
type SnapshotMessage struct {
	SubscriptionID string        `json:"subscription_id"`
	View           snapshot.View `json:"view"`
}

type updateRequest struct {
	SubscriptionID string `json:"subscription_id"`
	streaming.SubscriptionRequest
}

type unsubscribeRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

// SubscriberGauge receives the live subscription count.
type SubscriberGauge interface {
	SetSubscribers(n int)
}

// Connection is one WebSocket client.
type Connection struct {
	id      string
	conn    *websocket.Conn
	version string
	hub     *Hub

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Hub pushes a rendered view to every subscription whenever the scanner
// publishes a pass.
type Hub struct {
	manager  *streaming.Manager
	reader   *snapshot.Reader
	gauge    SubscriberGauge
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// onFirstSubscriber runs when the subscription count leaves zero.
	onFirstSubscriber func()

	mu          sync.RWMutex
	connections map[string]*Connection
	register    chan *Connection
	unregister  chan *Connection
	published   chan uint64
	done        chan struct{}
	seq         atomic.Uint64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithSubscriberGauge reports the subscription count to g.
func WithSubscriberGauge(g SubscriberGauge) HubOption {
	return func(h *Hub) { h.gauge = g }
}

// WithFirstSubscriber calls fn whenever a subscription arrives while none
// exist.
func WithFirstSubscriber(fn func()) HubOption {
	return func(h *Hub) { h.onFirstSubscriber = fn }
}

// NewHub creates a hub. Run must be started before connections are served.
func NewHub(manager *streaming.Manager, reader *snapshot.Reader, origins OriginPolicy, logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		manager:     manager,
		reader:      reader,
		logger:      logger.With("component", "hub"),
		connections: make(map[string]*Connection),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		published:   make(chan uint64, 1),
		done:        make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return origins.allows(r.Header.Get("Origin"))
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves registrations and publishes until ctx is done, then closes
// every connection.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.connections {
				c.close()
				delete(h.connections, id)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.connections[c.id] = c
			h.mu.Unlock()
			h.logger.Debug("connection registered", "conn", c.id, "version", c.version)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[c.id]; ok {
				delete(h.connections, c.id)
				c.close()
			}
			h.mu.Unlock()
			removed := h.manager.RemoveConnection(c.id)
			h.reportSubscribers()
			h.logger.Debug("connection unregistered", "conn", c.id, "subscriptions", removed)

		case pass := <-h.published:
			h.deliver(pass)
		}
	}
}

// Publish queues pass for delivery. It never blocks; if the hub is behind,
// only the newest pass is kept.
func (h *Hub) Publish(buf *counts.Buffer) {
	for {
		select {
		case h.published <- buf.Pass:
			return
		default:
		}
		select {
		case <-h.published:
		default:
		}
	}
}

func (h *Hub) deliver(pass uint64) {
	due := h.manager.Due(pass)
	if len(due) == 0 {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range due {
		c, ok := h.connections[sub.ConnID]
		if !ok {
			continue
		}
		c.sendSnapshot(sub.ID, h.reader.View(sub.Options))
	}
}

func (h *Hub) reportSubscribers() {
	if h.gauge != nil {
		h.gauge.SetSubscribers(h.manager.Count())
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HandleWebSocket handles GET /ws.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	requested := r.Header.Get("Sec-WebSocket-Protocol")
	version := negotiateVersion(requested)
	if version == "" {
		h.logger.Debug("protocol negotiation failed", "requested", requested)
		http.Error(w, "Unsupported protocol version", http.StatusBadRequest)
		return
	}

	var responseHeaders http.Header
	if requested != "" {
		responseHeaders = http.Header{}
		responseHeaders.Set("Sec-WebSocket-Protocol", version)
	}

	ws, err := h.upgrader.Upgrade(w, r, responseHeaders)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	c := &Connection{
		id:      fmt.Sprintf("conn_%d", h.seq.Add(1)),
		conn:    ws,
		version: version,
		hub:     h,
		send:    make(chan []byte, sendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = ws.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// negotiateVersion picks the supported subprotocol from a comma-separated
// offer. An empty offer defaults to v1.
func negotiateVersion(requested string) string {
	if requested == "" {
		return ProtocolVersion1
	}
	for _, v := range strings.Split(requested, ",") {
		if strings.TrimSpace(v) == ProtocolVersion1 {
			return ProtocolVersion1
		}
	}
	return ""
}

func (h *Hub) handleMessage(c *Connection, msg *WebSocketMessage) {
	switch msg.Type {
	case "ping":
		c.sendJSON(WebSocketMessage{Type: "pong", ID: msg.ID})
	case "subscribe":
		h.handleSubscribe(c, msg)
	case "update":
		h.handleUpdate(c, msg)
	case "unsubscribe":
		h.handleUnsubscribe(c, msg)
	default:
		c.sendError(msg.ID, "Unknown message type", "UnknownMessageType")
	}
}

func (h *Hub) handleSubscribe(c *Connection, msg *WebSocketMessage) {
	var req streaming.SubscriptionRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.sendError(msg.ID, "Invalid subscribe payload", "InvalidMessageFormat")
			return
		}
	}

	plan, err := h.manager.Subscribe(c.id, req)
	if err != nil {
		c.sendError(msg.ID, err.Error(), "InvalidSubscription")
		return
	}
	h.reportSubscribers()
	if h.manager.Count() == 1 && h.onFirstSubscriber != nil {
		h.onFirstSubscriber()
	}

	c.sendData("subscribed", msg.ID, plan)
	c.sendSnapshot(plan.SubscriptionID, h.reader.View(plan.Options))
}

func (h *Hub) handleUpdate(c *Connection, msg *WebSocketMessage) {
	var req updateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		c.sendError(msg.ID, "Invalid update payload", "InvalidMessageFormat")
		return
	}

	plan, err := h.manager.Update(c.id, req.SubscriptionID, req.SubscriptionRequest)
	if err != nil {
		code := "InvalidSubscription"
		if errors.Is(err, streaming.ErrSubscriptionNotFound) {
			code = "SubscriptionNotFound"
		}
		c.sendError(msg.ID, err.Error(), code)
		return
	}

	c.sendData("subscribed", msg.ID, plan)
	c.sendSnapshot(plan.SubscriptionID, h.reader.View(plan.Options))
}

func (h *Hub) handleUnsubscribe(c *Connection, msg *WebSocketMessage) {
	var req unsubscribeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		c.sendError(msg.ID, "Invalid unsubscribe payload", "InvalidMessageFormat")
		return
	}
	if err := h.manager.Unsubscribe(c.id, req.SubscriptionID); err != nil {
		c.sendError(msg.ID, err.Error(), "SubscriptionNotFound")
		return
	}
	h.reportSubscribers()
	c.sendData("unsubscribed", msg.ID, req)
}

func (c *Connection) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", "conn", c.id, "error", err)
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", "Invalid message format", "InvalidMessageFormat")
			continue
		}
		c.hub.handleMessage(c, &msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(defaultPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands message to the write pump. A full buffer drops the frame;
// the next publish brings the client up to date.
func (c *Connection) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		c.hub.logger.Warn("send buffer full, dropping frame", "conn", c.id)
		return false
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Connection) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.hub.logger.Error("failed to marshal frame", "error", err)
		return
	}
	c.enqueue(data)
}

func (c *Connection) sendData(msgType, id string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.hub.logger.Error("failed to marshal payload", "type", msgType, "error", err)
		return
	}
	c.sendJSON(WebSocketMessage{Type: msgType, ID: id, Data: data})
}

func (c *Connection) sendSnapshot(subscriptionID string, view snapshot.View) {
	c.sendData("snapshot", "", SnapshotMessage{SubscriptionID: subscriptionID, View: view})
}

func (c *Connection) sendError(id, message, code string) {
	c.sendJSON(WebSocketError{
		Type:    "error",
		ID:      id,
		Error:   message,
		Message: message,
		Code:    code,
	})
}
