package websocket

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type outbound struct {
	event   Event
	exclude *Client
}

// Hub maintains the set of display clients and relays events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	cfgMu  sync.RWMutex
	config config.WebSocketConfig

	logger *logger.Logger

	mu    sync.RWMutex
	stats HubStats
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	DroppedEvents      int64     `json:"dropped_events"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}

// NewHub creates a new WebSocket hub
func NewHub(cfg config.WebSocketConfig, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     cfg,
		logger:     log.WithComponent("websocket"),
	}
}

// SetConfig swaps the broadcast toggles and credentials.
func (h *Hub) SetConfig(cfg config.WebSocketConfig) {
	h.cfgMu.Lock()
	h.config = cfg
	h.cfgMu.Unlock()
}

func (h *Hub) currentConfig() config.WebSocketConfig {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()
	return h.config
}

// Run handles registration and broadcasting until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket hub")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case out := <-h.broadcast:
			h.deliver(out)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.LastConnectionTime = time.Now()
	active := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Client connected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int("active_connections", active),
	)

	h.enqueue(h.connectionEvent("connected", client), client)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.Send)
	}
	active := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.logger.Info("Client disconnected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int("active_connections", active),
	)

	h.enqueue(h.connectionEvent("disconnected", client), nil)
}

func (h *Hub) connectionEvent(action string, client *Client) Event {
	return Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:    action,
			ClientID:  client.ID,
			ClientIP:  client.IP,
			UserAgent: client.UserAgent,
			Message:   fmt.Sprintf("Client %s %s", client.ID, action),
		},
	}
}

// deliver sends an event to every subscribed client. Clients whose send
// buffer is full are dropped.
func (h *Hub) deliver(out outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()

	for client := range h.clients {
		if client == out.exclude || !client.wants(out.event.Type) {
			continue
		}
		select {
		case client.Send <- out.event:
			h.stats.TotalMessages++
		default:
			h.logger.Warn("Client send channel full, closing connection",
				zap.String("client_id", client.ID))
			delete(h.clients, client)
			close(client.Send)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
	h.logger.Info("WebSocket hub stopped")
}

// BroadcastEvent queues an event for all clients if its type is enabled.
func (h *Hub) BroadcastEvent(event Event) {
	if !h.shouldBroadcastEvent(event.Type) {
		return
	}
	h.enqueue(event, nil)
}

func (h *Hub) enqueue(event Event, exclude *Client) {
	if event.Type == EventTypeConnection && !h.shouldBroadcastEvent(event.Type) {
		return
	}
	select {
	case h.broadcast <- outbound{event: event, exclude: exclude}:
	default:
		h.mu.Lock()
		h.stats.DroppedEvents++
		h.mu.Unlock()
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("event_type", string(event.Type)))
	}
}

// shouldBroadcastEvent checks the per-type toggles.
func (h *Hub) shouldBroadcastEvent(eventType EventType) bool {
	cfg := h.currentConfig()
	if !cfg.Enabled {
		return false
	}

	switch eventType {
	case EventTypeMaskResult:
		return cfg.Events.BroadcastMasks
	case EventTypeRestoreResult:
		return cfg.Events.BroadcastRestores
	case EventTypePatternUpdate:
		return cfg.Events.BroadcastPatterns
	case EventTypeSnapshotSaved:
		return cfg.Events.BroadcastSnapshots
	case EventTypeConnection:
		return cfg.Events.BroadcastConnections
	default:
		return false
	}
}

// authorized checks basic-auth credentials. With no username configured
// every client is accepted.
func (h *Hub) authorized(r *http.Request) bool {
	cfg := h.currentConfig()
	if cfg.Username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Password)) == 1
	return userOK && passOK
}

// RequireAuth guards next with the relay's basic-auth credentials, so a
// page served through it can open the WebSocket with the same login.
func (h *Hub) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			unauthorized(w)
			return
		}
		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="mask-sentinel"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// HandleWebSocket upgrades a display client connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		unauthorized(w)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		Send:        make(chan Event, 256),
		ConnectedAt: time.Now(),
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
		conn:        conn,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

// writePump pumps events from the hub to the connection
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				h.logger.Error("Failed to write WebSocket message",
					zap.String("client_id", client.ID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client messages until the connection closes
func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error",
					zap.String("client_id", client.ID),
					zap.Error(err))
			}
			return
		}
		h.handleClientMessage(client, msg)
	}
}

func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		client.subscribe(msg.Events)
		h.logger.Debug("Client subscription updated",
			zap.String("client_id", client.ID),
			zap.Int("event_types", len(msg.Events)))
	case "ping":
		h.mu.RLock()
		defer h.mu.RUnlock()
		// the hub closes Send on unregister, so check membership first
		if !h.clients[client] {
			return
		}
		select {
		case client.Send <- Event{Type: EventTypePong, Timestamp: time.Now(), Data: map[string]string{"message": "pong"}}:
		default:
		}
	}
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
