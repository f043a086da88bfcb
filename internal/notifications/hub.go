// Package notifications provides real-time push delivery over per-user
// websocket connections.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"parley/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// Max total connections
	maxTotalConns = 10000
)

// ConnectionStore abstracts the per-user push channel registry. The local
// implementation is Hub; a multi-instance deployment can substitute a
// Redis-backed implementation behind the same interface.
type ConnectionStore interface {
	// Connect registers conn as the single connection for userID, displacing
	// and closing any prior connection. Reports whether one was displaced.
	Connect(userID uint, conn *websocket.Conn) (client *Client, replaced bool, err error)

	// Disconnect removes client if it is still the current connection for
	// userID. Late teardown of a displaced connection is a no-op.
	Disconnect(userID uint, client *Client)

	// Send pushes one event to userID. Best-effort: an offline target or a
	// full send queue drops the event and returns false.
	Send(userID uint, event Event) bool

	// IsConnected reports whether userID has a live connection on this instance.
	IsConnected(userID uint) bool

	// Close shuts down all connections.
	Close() error
}

// Hub is the in-process ConnectionStore: it maps each userID to at most one
// Client. A second Connect for the same user displaces the first.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]*Client
	totalConns int
	shutdown   chan struct{}
	presence   *PresenceTracker
	wsLog      *observability.WSLogger
}

var _ ConnectionStore = (*Hub)(nil)

// NewHub creates a new Hub. An optional Redis client enables cross-instance
// presence mirroring.
func NewHub(redisClients ...*redis.Client) *Hub {
	var redisClient *redis.Client
	if len(redisClients) > 0 {
		redisClient = redisClients[0]
	}

	return &Hub{
		conns:    make(map[uint]*Client),
		shutdown: make(chan struct{}),
		presence: NewPresenceTracker(redisClient, PresenceTrackerConfig{}),
		wsLog:    observability.NewWSLogger("push"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "push" }

// Connect registers conn for userID. Any prior connection for the same user
// is closed and its slot taken over.
func (h *Hub) Connect(userID uint, conn *websocket.Conn) (*Client, bool, error) {
	h.mu.Lock()

	select {
	case <-h.shutdown:
		h.mu.Unlock()
		return nil, false, errors.New("hub is shut down")
	default:
	}

	prior := h.conns[userID]
	if prior == nil && h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, false, errors.New("server connection limit reached")
	}

	client := NewClient(h, conn, userID)
	client.OnActivity = func(uid uint) {
		h.presence.Touch(context.Background(), uid)
	}

	h.conns[userID] = client
	if prior == nil {
		h.totalConns++
	}
	h.mu.Unlock()

	replaced := prior != nil
	if replaced {
		observability.WebSocketConnectionsReplaced.Inc()
		closeClient(prior, websocket.ClosePolicyViolation, "connection replaced")
	} else {
		observability.WebSocketConnectionsTotal.Inc()
	}

	h.presence.Register(context.Background(), userID)
	h.wsLog.LogConnect(context.Background(), userID, replaced)

	return client, replaced, nil
}

// Disconnect removes client if it still owns the user's slot. A displaced
// connection tearing down late finds a newer client in the slot and leaves
// it alone.
func (h *Hub) Disconnect(userID uint, client *Client) {
	h.mu.Lock()
	current, ok := h.conns[userID]
	if !ok || current != client {
		h.mu.Unlock()
		return
	}
	delete(h.conns, userID)
	h.totalConns--
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Dec()
	h.presence.Unregister(context.Background(), userID)
	h.wsLog.LogDisconnect(context.Background(), userID, "closed")
}

// UnregisterClient satisfies WSHub for Client teardown.
func (h *Hub) UnregisterClient(client *Client) {
	h.Disconnect(client.UserID, client)
}

// DisconnectUser force-closes the user's connection, if any. Used when a user
// logs out or gets banned. Reports whether a connection was closed.
func (h *Hub) DisconnectUser(userID uint, reason string) bool {
	h.mu.Lock()
	client, ok := h.conns[userID]
	if ok {
		delete(h.conns, userID)
		h.totalConns--
	}
	h.mu.Unlock()

	if !ok {
		return false
	}

	closeClient(client, websocket.CloseNormalClosure, reason)
	observability.WebSocketConnectionsTotal.Dec()
	h.presence.Unregister(context.Background(), userID)
	h.wsLog.LogDisconnect(context.Background(), userID, reason)
	return true
}

// Send pushes one event to userID's connection, if any.
func (h *Hub) Send(userID uint, event Event) bool {
	h.mu.RLock()
	client := h.conns[userID]
	h.mu.RUnlock()

	if client == nil {
		observability.RecordFanout(string(event.Type), false)
		return false
	}

	data, err := event.Marshal()
	if err != nil {
		h.wsLog.LogError(context.Background(), userID, err, string(event.Type))
		observability.RecordFanout(string(event.Type), false)
		return false
	}

	sent := client.TrySend(data)
	observability.RecordFanout(string(event.Type), sent)
	return sent
}

// IsConnected reports whether userID has a live connection on this instance.
func (h *Hub) IsConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[userID] != nil
}

// IsOnline reports presence across instances when Redis mirroring is active,
// falling back to local connections.
func (h *Hub) IsOnline(userID uint) bool {
	if h.presence != nil {
		return h.presence.IsOnline(context.Background(), userID)
	}
	return h.IsConnected(userID)
}

// Presence exposes the tracker for callbacks and online-user queries.
func (h *Hub) Presence() *PresenceTracker {
	return h.presence
}

// SetPresenceCallbacks installs online/offline transition hooks.
func (h *Hub) SetPresenceCallbacks(onOnline, onOffline func(userID uint)) {
	if h.presence == nil {
		return
	}
	h.presence.SetCallbacks(onOnline, onOffline)
}

// BroadcastAll sends a raw payload to every connected client.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, c := range h.conns {
		c.TrySend(data)
	}
}

// sendRaw delivers a pre-marshaled frame to userID, used by the Redis bridge.
func (h *Hub) sendRaw(userID uint, payload string) {
	h.mu.RLock()
	client := h.conns[userID]
	h.mu.RUnlock()
	if client != nil {
		client.TrySend([]byte(payload))
	}
}

// StartWiring connects the Notifier to this hub: it subscribes to Redis pattern and
// forwards messages to matching userID connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == "notifications:broadcast" {
			h.BroadcastAll(payload)
			return
		}
		if !strings.HasPrefix(channel, "notifications:user:") {
			log.Printf("invalid notification channel: %s", channel)
			return
		}
		// channel form: notifications:user:<id>
		var userID uint
		_, err := fmt.Sscanf(channel, "notifications:user:%d", &userID)
		if err != nil {
			log.Printf("invalid notification channel: %s", channel)
			return
		}
		h.sendRaw(userID, payload)
	})
}

// Close gracefully closes all websocket connections.
func (h *Hub) Close() error {
	h.mu.Lock()
	select {
	case <-h.shutdown:
		h.mu.Unlock()
		return nil
	default:
	}
	close(h.shutdown)

	clients := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		clients = append(clients, c)
	}
	h.conns = make(map[uint]*Client)
	h.totalConns = 0
	h.mu.Unlock()

	if h.presence != nil {
		h.presence.Stop()
	}

	for _, client := range clients {
		closeClient(client, websocket.CloseGoingAway, "Server shutting down")
		observability.WebSocketConnectionsTotal.Dec()
	}

	return nil
}

func closeClient(client *Client, code int, reason string) {
	if client == nil || client.Conn == nil {
		return
	}
	if err := client.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason)); err != nil {
		log.Printf("failed to write close message for user %d: %v", client.UserID, err)
	}
	if err := client.Conn.Close(); err != nil {
		log.Printf("failed to close websocket for user %d: %v", client.UserID, err)
	}
}
